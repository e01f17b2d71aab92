package logic

import (
	"slices"
)

// DefaultMaxPasses bounds the number of refinement passes.
const DefaultMaxPasses = 200

type Player struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Grouping is a partition of players into teams together with the rating
// sum of each team. Sums[i] always equals the total rating of Teams[i].
type Grouping struct {
	Teams [][]Player
	Sums  []int
}

// Spread is the difference between the heaviest and the lightest team.
func (g Grouping) Spread() int { return spread(g.Sums) }

func (g Grouping) clone() Grouping {
	c := Grouping{Teams: make([][]Player, len(g.Teams)), Sums: slices.Clone(g.Sums)}
	for i, t := range g.Teams {
		c.Teams[i] = slices.Clone(t)
	}
	return c
}

// RefineStats describes the work done by Refine.
type RefineStats struct {
	Passes int
	Swaps  int
}

// Result is the outcome of Balance.
type Result struct {
	Teams      [][]Player `json:"teams"`
	Sums       []int      `json:"sums"`
	Spread     *int       `json:"spread"`
	SeedSpread int        `json:"seed_spread"`
	Passes     int        `json:"passes"`
	Swaps      int        `json:"swaps"`
}

// Computable reports whether the result holds an actual assignment. A result
// returned together with a capacity error has empty teams, no sums and a nil
// Spread, which encodes as JSON null.
func (r Result) Computable() bool { return r.Spread != nil }

type Option func(*options)

type options struct {
	maxPasses int
}

// WithMaxPasses overrides DefaultMaxPasses. Values below zero are treated as zero.
func WithMaxPasses(n int) Option {
	return func(o *options) { o.maxPasses = max(n, 0) }
}

// Balance splits players into k teams whose sizes come from TeamSizes and whose
// rating sums are as close as greedy seeding plus pairwise refinement can get.
// The input slice is never modified.
func Balance(players []Player, k int, opts ...Option) (Result, error) {
	o := options{maxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(&o)
	}
	if k < 1 {
		return Result{}, ErrInvalidTeamCount
	}
	sizes, err := TeamSizes(len(players), k)
	if err != nil {
		empty := make([][]Player, k)
		for i := range empty {
			empty[i] = []Player{}
		}
		return Result{Teams: empty}, err
	}
	seeded, err := Seed(players, sizes)
	if err != nil {
		return Result{}, err
	}
	refined, stats := Refine(seeded, o.maxPasses)
	final := refined.Spread()
	return Result{
		Teams:      refined.Teams,
		Sums:       refined.Sums,
		Spread:     &final,
		SeedSpread: seeded.Spread(),
		Passes:     stats.Passes,
		Swaps:      stats.Swaps,
	}, nil
}

// Seed places players, highest rating first, into the team with the lowest
// running sum that still has room. Equal ratings keep their input order and
// equal sums resolve to the lowest team index.
func Seed(players []Player, sizes []int) (Grouping, error) {
	total := 0
	for _, s := range sizes {
		if s < 0 {
			return Grouping{}, ErrSizeMismatch
		}
		total += s
	}
	if total != len(players) {
		return Grouping{}, ErrSizeMismatch
	}

	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b Player) int { return b.Rating - a.Rating })

	g := Grouping{Teams: make([][]Player, len(sizes)), Sums: make([]int, len(sizes))}
	for i, s := range sizes {
		g.Teams[i] = make([]Player, 0, s)
	}
	for _, p := range sorted {
		target := -1
		for i := range g.Teams {
			if len(g.Teams[i]) >= sizes[i] {
				continue
			}
			if target < 0 || g.Sums[i] < g.Sums[target] {
				target = i
			}
		}
		g.Teams[target] = append(g.Teams[target], p)
		g.Sums[target] += p.Rating
	}
	return g, nil
}

// Refine exchanges members between pairs of teams while doing so strictly
// lowers the spread over all teams. For each team pair (a, b), a < b, the
// single best exchange is applied; ties go to the first pair of members in
// index order. Refinement ends after a pass with no exchange or after
// maxPasses passes. The given grouping is left untouched.
func Refine(g Grouping, maxPasses int) (Grouping, RefineStats) {
	g = g.clone()
	var stats RefineStats
	k := len(g.Teams)

	for improved := true; improved && stats.Passes < maxPasses; {
		improved = false
		stats.Passes++
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				baseline := g.Spread()
				bestGain, bestI, bestJ := 0, -1, -1
				for i, pa := range g.Teams[a] {
					for j, pb := range g.Teams[b] {
						delta := pb.Rating - pa.Rating
						gain := baseline - spreadWith(g.Sums, a, g.Sums[a]+delta, b, g.Sums[b]-delta)
						if gain > bestGain {
							bestGain, bestI, bestJ = gain, i, j
						}
					}
				}
				if bestI < 0 {
					continue
				}
				pa, pb := g.Teams[a][bestI], g.Teams[b][bestJ]
				g.Teams[a][bestI], g.Teams[b][bestJ] = pb, pa
				g.Sums[a] += pb.Rating - pa.Rating
				g.Sums[b] += pa.Rating - pb.Rating
				stats.Swaps++
				improved = true
			}
		}
	}
	return g, stats
}

func spread(sums []int) int {
	if len(sums) == 0 {
		return 0
	}
	return slices.Max(sums) - slices.Min(sums)
}

// spreadWith is spread(sums) with sums[a] and sums[b] replaced.
func spreadWith(sums []int, a, sa, b, sb int) int {
	hi, lo := sa, sa
	for i, s := range sums {
		switch i {
		case a:
			s = sa
		case b:
			s = sb
		}
		hi, lo = max(hi, s), min(lo, s)
	}
	return hi - lo
}
