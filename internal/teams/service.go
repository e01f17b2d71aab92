// Package teams runs balancing requests for a chat: it loads the chat roster,
// splits the selected players for every requested team count, stores the
// outcome and applies winner rating updates.
package teams

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mkwab/internal/db"
	"mkwab/internal/logic"
	"mkwab/internal/metrics"
	"mkwab/internal/rating"
	"mkwab/internal/roster"
)

var (
	ErrTooFewPlayers  = errors.New("at least two players must take part")
	ErrTooManyPlayers = errors.New("too many players")
	ErrNoTeamCount    = errors.New("no selected team count fits the roster")
	ErrBadTeamCount   = errors.New("unsupported team count")
	ErrNoResult       = errors.New("no stored result for this team count")
	ErrStaleResult    = errors.New("result was replaced by a newer assignment")
	ErrBadWinner      = errors.New("winning team does not exist")
	ErrOneEntry       = errors.New("exactly one name:rating entry expected")
)

// Store is the persistence the service needs.
type Store interface {
	LoadRoster(chatID int64) (*roster.Roster, error)
	SaveRoster(ctx context.Context, chatID int64, r *roster.Roster) error
	SaveRosterClearResults(ctx context.Context, chatID int64, r *roster.Roster) error
	TeamCounts(chatID int64) ([]int, error)
	SetTeamCounts(ctx context.Context, chatID int64, ks []int) error
	Multiplier(chatID int64) (string, error)
	SetMultiplier(ctx context.Context, chatID int64, m string) error
	SaveResults(ctx context.Context, chatID int64, results map[int]logic.Result, now time.Time) (int64, error)
	LoadResult(chatID int64, k int) (db.StoredResult, error)
}

type Options struct {
	MaxPlayers        int
	MaxPasses         int
	AllowedTeamCounts []int
	DefaultMultiplier decimal.Decimal
	RandomMin         int
	RandomMax         int
}

func DefaultOptions() Options {
	return Options{
		MaxPlayers:        roster.MaxSlots,
		MaxPasses:         logic.DefaultMaxPasses,
		AllowedTeamCounts: []int{2, 3, 4},
		DefaultMultiplier: rating.DefaultMultiplier,
		RandomMin:         5000,
		RandomMax:         5100,
	}
}

type Service struct {
	store   Store
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

func New(store Store, opts Options, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		opts:    opts,
		log:     log,
		metrics: m,
		tracer:  otel.Tracer("mkwab/teams"),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:     time.Now,
	}
}

// Assignment is the set of results produced by one Assign call. Seq
// identifies it among the chat's assignments and grows with every call.
type Assignment struct {
	Players   int
	Results   map[int]logic.Result
	Skipped   []int
	Seq       int64
	CreatedAt time.Time
}

// TeamCounts returns the team counts that have a result, ascending.
func (a Assignment) TeamCounts() []int {
	return slices.Sorted(maps.Keys(a.Results))
}

// Assign balances the chat's selected players for each of its team counts.
// Team counts larger than the roster are skipped and reported; if all are
// skipped the call fails with ErrNoTeamCount and nothing is stored.
func (s *Service) Assign(ctx context.Context, chatID int64) (Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "teams.Assign", trace.WithAttributes(attribute.Int64("chat.id", chatID)))
	defer span.End()

	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return Assignment{}, fmt.Errorf("load roster: %w", err)
	}
	players := r.Selected()
	n := len(players)
	s.metrics.ObservePlayers(n)
	span.SetAttributes(attribute.Int("players", n))
	switch {
	case n > s.opts.MaxPlayers:
		return Assignment{Players: n}, fmt.Errorf("%w: %d > %d", ErrTooManyPlayers, n, s.opts.MaxPlayers)
	case n < 2:
		return Assignment{Players: n}, ErrTooFewPlayers
	}

	ks, err := s.store.TeamCounts(chatID)
	if err != nil {
		return Assignment{}, fmt.Errorf("load team counts: %w", err)
	}
	a := Assignment{Players: n, Results: make(map[int]logic.Result, len(ks))}
	var fit []int
	for _, k := range ks {
		if n < k {
			a.Skipped = append(a.Skipped, k)
			continue
		}
		fit = append(fit, k)
	}
	if len(fit) == 0 {
		return a, ErrNoTeamCount
	}

	results := make([]logic.Result, len(fit))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range fit {
		g.Go(func() error {
			_, span := s.tracer.Start(gctx, "logic.Balance", trace.WithAttributes(attribute.Int("teams", k)))
			defer span.End()
			start := time.Now()
			res, err := logic.Balance(players, k, logic.WithMaxPasses(s.opts.MaxPasses))
			s.metrics.ObserveBalance(k, res, time.Since(start), err)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("balance %d teams: %w", k, err)
			}
			span.SetAttributes(attribute.Int("spread", *res.Spread), attribute.Int("swaps", res.Swaps))
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Assignment{}, err
	}
	for i, k := range fit {
		a.Results[k] = results[i]
	}

	a.CreatedAt = s.now().UTC()
	if a.Seq, err = s.store.SaveResults(ctx, chatID, a.Results, a.CreatedAt); err != nil {
		return Assignment{}, fmt.Errorf("save results: %w", err)
	}
	s.log.Info("teams assigned",
		zap.Int64("chat_id", chatID),
		zap.Int64("seq", a.Seq),
		zap.Int("players", n),
		zap.Ints("team_counts", fit),
		zap.Ints("skipped", a.Skipped))
	return a, nil
}

// Win summarizes a recorded win and the reassignment that followed it.
type Win struct {
	Teams      int
	Winner     int
	Members    []string
	Multiplier decimal.Decimal
	Updated    int
	Next       Assignment
}

// RecordWin rescales the ratings of the winning team of the stored k-team
// result and re-runs Assign with the new ratings. seq, when non-zero, must
// match the Seq of the assignment that produced the stored result.
func (s *Service) RecordWin(ctx context.Context, chatID int64, k, winner int, seq int64) (Win, error) {
	ctx, span := s.tracer.Start(ctx, "teams.RecordWin", trace.WithAttributes(
		attribute.Int64("chat.id", chatID), attribute.Int("teams", k), attribute.Int("winner", winner)))
	defer span.End()

	stored, err := s.store.LoadResult(chatID, k)
	if err != nil {
		return Win{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	if seq != 0 && stored.Seq != seq {
		return Win{}, ErrStaleResult
	}
	res := stored.Result
	if winner < 0 || winner >= len(res.Teams) {
		return Win{}, fmt.Errorf("%w: %d", ErrBadWinner, winner)
	}
	mult, err := s.Multiplier(chatID)
	if err != nil {
		return Win{}, err
	}

	w := Win{Teams: k, Winner: winner, Multiplier: mult}
	for _, p := range res.Teams[winner] {
		w.Members = append(w.Members, p.Name)
	}
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return Win{}, fmt.Errorf("load roster: %w", err)
	}
	w.Updated = rating.ApplyWin(r.Slots, w.Members, mult)
	// the result goes with the rating update so it cannot be applied twice
	if err := s.store.SaveRosterClearResults(ctx, chatID, r); err != nil {
		return Win{}, fmt.Errorf("save roster: %w", err)
	}
	s.metrics.ObserveWin(k)
	s.log.Info("win recorded",
		zap.Int64("chat_id", chatID),
		zap.Int("teams", k),
		zap.Int("winner", winner),
		zap.Stringer("multiplier", mult),
		zap.Int("updated", w.Updated))

	w.Next, err = s.Assign(ctx, chatID)
	return w, err
}

// ApplyBulk parses bulk "name:rating" text into the chat roster.
func (s *Service) ApplyBulk(ctx context.Context, chatID int64, text string) (int, []roster.EntryError, error) {
	entries, problems := roster.Parse(text)
	if len(entries) == 0 {
		return 0, problems, nil
	}
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return 0, problems, fmt.Errorf("load roster: %w", err)
	}
	applied, skipped := r.Apply(entries)
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return 0, problems, fmt.Errorf("save roster: %w", err)
	}
	return applied, append(problems, skipped...), nil
}

// AppendBulk parses bulk "name:rating" text into blank slots, keeping the
// rest of the roster. Names already in the roster get their rating updated.
func (s *Service) AppendBulk(ctx context.Context, chatID int64, text string) (int, []roster.EntryError, error) {
	entries, problems := roster.Parse(text)
	if len(entries) == 0 {
		return 0, problems, nil
	}
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return 0, problems, fmt.Errorf("load roster: %w", err)
	}
	applied, skipped := r.Append(entries)
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return 0, problems, fmt.Errorf("save roster: %w", err)
	}
	return applied, append(problems, skipped...), nil
}

// SetSlot overwrites the 1-based slot with a single "name:rating" entry.
// A malformed entry is returned as a roster.EntryError.
func (s *Service) SetSlot(ctx context.Context, chatID int64, slot int, text string) (roster.Slot, error) {
	entries, problems := roster.Parse(text)
	switch {
	case len(entries)+len(problems) != 1:
		return roster.Slot{}, ErrOneEntry
	case len(problems) == 1:
		return roster.Slot{}, problems[0]
	}
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return roster.Slot{}, fmt.Errorf("load roster: %w", err)
	}
	if err := r.Set(slot-1, entries[0]); err != nil {
		return roster.Slot{}, err
	}
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return roster.Slot{}, fmt.Errorf("save roster: %w", err)
	}
	return r.Slots[slot-1], nil
}

// ClearSlot blanks the 1-based slot.
func (s *Service) ClearSlot(ctx context.Context, chatID int64, slot int) error {
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if err := r.Clear(slot - 1); err != nil {
		return err
	}
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	return nil
}

// Toggle flips participation of the player whose name best matches query.
func (s *Service) Toggle(ctx context.Context, chatID int64, query string) (roster.Slot, error) {
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return roster.Slot{}, fmt.Errorf("load roster: %w", err)
	}
	idx, err := r.Toggle(query)
	if err != nil {
		return roster.Slot{}, err
	}
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return roster.Slot{}, fmt.Errorf("save roster: %w", err)
	}
	return r.Slots[idx], nil
}

// Randomize assigns random ratings in the configured range to named slots.
func (s *Service) Randomize(ctx context.Context, chatID int64) (*roster.Roster, error) {
	r, err := s.store.LoadRoster(chatID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	s.rngMu.Lock()
	err = rating.Randomize(r.Slots, s.opts.RandomMin, s.opts.RandomMax, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveRoster(ctx, chatID, r); err != nil {
		return nil, fmt.Errorf("save roster: %w", err)
	}
	return r, nil
}

// Reset blanks the roster and drops stored results.
func (s *Service) Reset(ctx context.Context, chatID int64) error {
	if err := s.store.SaveRosterClearResults(ctx, chatID, roster.New()); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	return nil
}

func (s *Service) Options() Options { return s.opts }

func (s *Service) Roster(chatID int64) (*roster.Roster, error) {
	return s.store.LoadRoster(chatID)
}

// SetTeamCounts stores the distinct, sorted team counts; each must be allowed.
// An empty list selects the default of two teams.
func (s *Service) SetTeamCounts(ctx context.Context, chatID int64, ks []int) ([]int, error) {
	ks = slices.Clone(ks)
	slices.Sort(ks)
	ks = slices.Compact(ks)
	for _, k := range ks {
		if !slices.Contains(s.opts.AllowedTeamCounts, k) {
			return nil, fmt.Errorf("%w: %d", ErrBadTeamCount, k)
		}
	}
	if len(ks) == 0 {
		ks = []int{2}
	}
	if err := s.store.SetTeamCounts(ctx, chatID, ks); err != nil {
		return nil, err
	}
	return ks, nil
}

func (s *Service) TeamCounts(chatID int64) ([]int, error) {
	return s.store.TeamCounts(chatID)
}

// Multiplier returns the chat multiplier, or the default when none is stored.
func (s *Service) Multiplier(chatID int64) (decimal.Decimal, error) {
	raw, err := s.store.Multiplier(chatID)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == "" {
		return s.opts.DefaultMultiplier, nil
	}
	return rating.ParseMultiplier(raw)
}

func (s *Service) SetMultiplier(ctx context.Context, chatID int64, text string) (decimal.Decimal, error) {
	m, err := rating.ParseMultiplier(text)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.store.SetMultiplier(ctx, chatID, m.String()); err != nil {
		return decimal.Zero, err
	}
	return m, nil
}
