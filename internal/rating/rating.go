// Package rating rescales player ratings between balancing rounds.
package rating

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"mkwab/internal/roster"
)

var (
	ErrBadMultiplier = errors.New("multiplier must be a positive number")
	ErrBadRange      = errors.New("invalid random rating range")
)

// DefaultMultiplier is the winners' rating factor, 3% up.
var DefaultMultiplier = decimal.RequireFromString("1.03")

// ParseMultiplier accepts a positive decimal such as "1.03" or "0,97".
func ParseMultiplier(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	m, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrBadMultiplier, s)
	}
	if !m.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrBadMultiplier, m)
	}
	return m, nil
}

// Scale returns rating*multiplier rounded to the nearest integer, ties to
// even. Results are clamped at zero.
func Scale(r int, multiplier decimal.Decimal) int {
	v := decimal.NewFromInt(int64(r)).Mul(multiplier).RoundBank(0).IntPart()
	return int(max(v, 0))
}

// ApplyWin rescales every named slot whose name appears in winners and
// returns the number of slots changed. A name shared by several slots
// rescales all of them.
func ApplyWin(slots []roster.Slot, winners []string, multiplier decimal.Decimal) int {
	set := make(map[string]struct{}, len(winners))
	for _, w := range winners {
		set[w] = struct{}{}
	}
	changed := 0
	for i, s := range slots {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		if _, ok := set[s.Name]; !ok {
			continue
		}
		slots[i].Rating = Scale(s.Rating, multiplier)
		changed++
	}
	return changed
}

// Randomize gives every named slot a uniform rating in [lo, hi].
func Randomize(slots []roster.Slot, lo, hi int, rng *rand.Rand) error {
	if lo < 0 || hi < lo {
		return fmt.Errorf("%w: [%d, %d]", ErrBadRange, lo, hi)
	}
	for i, s := range slots {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		slots[i].Rating = lo + rng.IntN(hi-lo+1)
	}
	return nil
}
