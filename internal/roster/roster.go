package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"mkwab/internal/logic"
)

const (
	MaxSlots      = 24
	DefaultRating = 2000
)

var (
	// ErrNoMatch is returned by Toggle when no slot name is close to the query.
	ErrNoMatch = errors.New("no matching player")
	ErrBadSlot = errors.New("slot number out of range")
)

type Slot struct {
	Name   string `db:"name"`
	Rating int    `db:"rating"`
	Active bool   `db:"active"`
}

func (s Slot) named() bool { return strings.TrimSpace(s.Name) != "" }

// Roster is the fixed set of player slots kept for one chat.
type Roster struct {
	Slots []Slot
}

// New returns a roster of MaxSlots blank slots.
func New() *Roster {
	r := &Roster{Slots: make([]Slot, MaxSlots)}
	r.Reset()
	return r
}

// FromSlots pads or truncates slots to MaxSlots.
func FromSlots(slots []Slot) *Roster {
	r := New()
	copy(r.Slots, slots)
	return r
}

func (r *Roster) Reset() {
	for i := range r.Slots {
		r.Slots[i] = Slot{Rating: DefaultRating}
	}
}

// Apply writes entries into the slots starting from the first one and marks
// them active. Entries beyond the last slot are returned as errors.
func (r *Roster) Apply(entries []Entry) (applied int, skipped []EntryError) {
	for _, e := range entries {
		if applied >= len(r.Slots) {
			skipped = append(skipped, EntryError{Raw: e.Name, Err: ErrRosterFull})
			continue
		}
		r.Slots[applied] = Slot{Name: e.Name, Rating: e.Rating, Active: true}
		applied++
	}
	return applied, skipped
}

// Append adds entries without touching the other slots. An entry whose name
// is already in the roster updates that slot; any other entry takes the first
// blank slot. Both are marked active. Entries that find no blank slot are
// returned as errors.
func (r *Roster) Append(entries []Entry) (applied int, skipped []EntryError) {
	for _, e := range entries {
		i := r.indexOf(e.Name)
		if i < 0 {
			i = r.firstBlank()
		}
		if i < 0 {
			skipped = append(skipped, EntryError{Raw: e.Name, Err: ErrRosterFull})
			continue
		}
		r.Slots[i] = Slot{Name: e.Name, Rating: e.Rating, Active: true}
		applied++
	}
	return applied, skipped
}

// Set overwrites slot i (zero-based) with e and marks it active.
func (r *Roster) Set(i int, e Entry) error {
	if i < 0 || i >= len(r.Slots) {
		return fmt.Errorf("%w: %d", ErrBadSlot, i+1)
	}
	r.Slots[i] = Slot{Name: e.Name, Rating: e.Rating, Active: true}
	return nil
}

// Clear blanks slot i (zero-based).
func (r *Roster) Clear(i int) error {
	if i < 0 || i >= len(r.Slots) {
		return fmt.Errorf("%w: %d", ErrBadSlot, i+1)
	}
	r.Slots[i] = Slot{Rating: DefaultRating}
	return nil
}

func (r *Roster) indexOf(name string) int {
	name = strings.TrimSpace(name)
	for i, s := range r.Slots {
		if s.named() && strings.TrimSpace(s.Name) == name {
			return i
		}
	}
	return -1
}

func (r *Roster) firstBlank() int {
	for i, s := range r.Slots {
		if !s.named() {
			return i
		}
	}
	return -1
}

// Selected returns the active, named slots in slot order.
func (r *Roster) Selected() []logic.Player {
	var out []logic.Player
	for _, s := range r.Slots {
		if s.Active && s.named() {
			out = append(out, logic.Player{Name: s.Name, Rating: s.Rating})
		}
	}
	return out
}

// Toggle flips participation of the slot whose name is closest to query and
// returns the slot index. An exact case-insensitive match always wins; other
// names must be within a third of their length in edit distance.
func (r *Roster) Toggle(query string) (int, error) {
	idx := r.Find(query)
	if idx < 0 {
		return -1, ErrNoMatch
	}
	r.Slots[idx].Active = !r.Slots[idx].Active
	return idx, nil
}

// Find returns the index of the named slot closest to query, or -1.
func (r *Roster) Find(query string) int {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return -1
	}
	best, bestDist := -1, 0
	for i, s := range r.Slots {
		if !s.named() {
			continue
		}
		name := fold.String(strings.TrimSpace(s.Name))
		if name == q {
			return i
		}
		d := levenshtein.ComputeDistance(q, name)
		limit := max(len([]rune(name))/3, 1)
		if d > limit {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
