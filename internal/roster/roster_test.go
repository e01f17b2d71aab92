package roster

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mkwab/internal/logic"
)

func TestParse(t *testing.T) {
	entries, bad := Parse("あすふぃだ：7000、イシガケ：7100、ウスバキ：6900、エサキモンツノ：7200")

	require.Empty(t, bad)
	require.Equal(t, []Entry{
		{Name: "あすふぃだ", Rating: 7000},
		{Name: "イシガケ", Rating: 7100},
		{Name: "ウスバキ", Rating: 6900},
		{Name: "エサキモンツノ", Rating: 7200},
	}, entries)
}

func TestParse_MixedSeparators(t *testing.T) {
	text := "alice:5000; bob : 5100\ncarol：５２００；dave:0，erin:42\r\n\n,"

	entries, bad := Parse(text)

	require.Empty(t, bad)
	require.Equal(t, []Entry{
		{Name: "alice", Rating: 5000},
		{Name: "bob", Rating: 5100},
		{Name: "carol", Rating: 5200},
		{Name: "dave", Rating: 0},
		{Name: "erin", Rating: 42},
	}, entries)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "missing separator", raw: "alice 5000", want: ErrNoSeparator},
		{name: "empty name", raw: " :5000", want: ErrEmptyName},
		{name: "negative rating", raw: "bob:-5", want: ErrBadRating},
		{name: "decimal rating", raw: "bob:50.5", want: ErrBadRating},
		{name: "empty rating", raw: "bob:", want: ErrBadRating},
		{name: "overflow", raw: "bob:99999999999999999999999", want: ErrBadRating},
		{name: "name too long", raw: strings.Repeat("n", MaxNameLength+1) + ":1", want: ErrNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, bad := Parse(tt.raw)
			require.Empty(t, entries)
			require.Len(t, bad, 1)
			require.ErrorIs(t, bad[0], tt.want)
			require.Equal(t, strings.TrimSpace(tt.raw), bad[0].Raw)
		})
	}
}

func TestParse_KeepsGoodEntriesAroundBadOnes(t *testing.T) {
	entries, bad := Parse("a:1, broken, b:2")

	require.Equal(t, []Entry{{Name: "a", Rating: 1}, {Name: "b", Rating: 2}}, entries)
	require.Len(t, bad, 1)
	require.Contains(t, bad[0].Error(), "broken")
}

func TestRoster_NewIsBlank(t *testing.T) {
	r := New()

	require.Len(t, r.Slots, MaxSlots)
	for _, s := range r.Slots {
		require.Equal(t, Slot{Rating: DefaultRating}, s)
	}
	require.Empty(t, r.Selected())
}

func TestRoster_ApplyOverflow(t *testing.T) {
	var entries []Entry
	for i := 0; i < MaxSlots+2; i++ {
		entries = append(entries, Entry{Name: fmt.Sprintf("p%d", i), Rating: i})
	}
	r := New()

	applied, skipped := r.Apply(entries)

	require.Equal(t, MaxSlots, applied)
	require.Len(t, skipped, 2)
	require.ErrorIs(t, skipped[0], ErrRosterFull)
	require.Len(t, r.Selected(), MaxSlots)
}

func TestRoster_SelectedFiltersInactiveAndBlank(t *testing.T) {
	r := FromSlots([]Slot{
		{Name: "a", Rating: 10, Active: true},
		{Name: "b", Rating: 20},
		{Name: "   ", Rating: 30, Active: true},
		{Name: "d", Rating: 40, Active: true},
	})

	require.Equal(t, []logic.Player{{Name: "a", Rating: 10}, {Name: "d", Rating: 40}}, r.Selected())
}

func TestRoster_FromSlotsTruncates(t *testing.T) {
	slots := make([]Slot, MaxSlots+5)
	for i := range slots {
		slots[i] = Slot{Name: fmt.Sprintf("p%d", i), Rating: 1, Active: true}
	}

	require.Len(t, FromSlots(slots).Slots, MaxSlots)
}

func TestRoster_Toggle(t *testing.T) {
	r := New()
	r.Apply([]Entry{{Name: "Ishigake", Rating: 7100}, {Name: "Usubaki", Rating: 6900}})

	idx, err := r.Toggle("ishigake")
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.False(t, r.Slots[0].Active)

	idx, err = r.Toggle("Usubaky")
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.False(t, r.Slots[1].Active)

	idx, err = r.Toggle("ISHIGAKE")
	require.NoError(t, err)
	require.True(t, r.Slots[idx].Active)

	_, err = r.Toggle("nobody at all")
	require.ErrorIs(t, err, ErrNoMatch)

	_, err = r.Toggle("  ")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestRoster_Reset(t *testing.T) {
	r := New()
	r.Apply([]Entry{{Name: "a", Rating: 1}})

	r.Reset()

	require.Empty(t, r.Selected())
	require.Equal(t, DefaultRating, r.Slots[0].Rating)
}

func TestEntryValidate(t *testing.T) {
	require.NoError(t, Entry{Name: strings.Repeat("名", MaxNameLength), Rating: 0}.Validate())
	require.ErrorIs(t, Entry{Name: strings.Repeat("名", MaxNameLength+1)}.Validate(), ErrNameTooLong)
	require.ErrorIs(t, Entry{Name: "", Rating: 5}.Validate(), ErrEmptyName)
	require.ErrorIs(t, Entry{Name: "a", Rating: -1}.Validate(), ErrBadRating)
}

func TestRoster_AppendKeepsExistingSlots(t *testing.T) {
	r := New()
	r.Apply([]Entry{{Name: "A", Rating: 7000}, {Name: "B", Rating: 7100}, {Name: "C", Rating: 6900}, {Name: "D", Rating: 7200}})
	r.Slots[1] = Slot{Rating: DefaultRating}
	r.Slots[3].Active = false

	applied, skipped := r.Append([]Entry{{Name: "E", Rating: 5000}, {Name: "F", Rating: 5100}, {Name: "D", Rating: 7300}})

	require.Equal(t, 3, applied)
	require.Empty(t, skipped)
	require.Equal(t, Slot{Name: "A", Rating: 7000, Active: true}, r.Slots[0])
	require.Equal(t, Slot{Name: "E", Rating: 5000, Active: true}, r.Slots[1])
	require.Equal(t, Slot{Name: "C", Rating: 6900, Active: true}, r.Slots[2])
	require.Equal(t, Slot{Name: "D", Rating: 7300, Active: true}, r.Slots[3])
	require.Equal(t, Slot{Name: "F", Rating: 5100, Active: true}, r.Slots[4])
}

func TestRoster_AppendFull(t *testing.T) {
	r := New()
	for i := range r.Slots {
		r.Slots[i] = Slot{Name: fmt.Sprintf("p%d", i), Rating: 1, Active: true}
	}

	applied, skipped := r.Append([]Entry{{Name: "p3", Rating: 9}, {Name: "late", Rating: 1}})

	require.Equal(t, 1, applied)
	require.Equal(t, 9, r.Slots[3].Rating)
	require.Len(t, skipped, 1)
	require.ErrorIs(t, skipped[0], ErrRosterFull)
	require.Equal(t, "late", skipped[0].Raw)
}

func TestRoster_SetAndClear(t *testing.T) {
	r := New()
	r.Apply([]Entry{{Name: "A", Rating: 7000}, {Name: "B", Rating: 7100}})
	r.Slots[1].Active = false

	require.NoError(t, r.Set(1, Entry{Name: "Bee", Rating: 7150}))
	require.NoError(t, r.Set(MaxSlots-1, Entry{Name: "Z", Rating: 1}))

	require.Equal(t, Slot{Name: "A", Rating: 7000, Active: true}, r.Slots[0])
	require.Equal(t, Slot{Name: "Bee", Rating: 7150, Active: true}, r.Slots[1])
	require.Equal(t, Slot{Name: "Z", Rating: 1, Active: true}, r.Slots[MaxSlots-1])

	require.NoError(t, r.Clear(0))
	require.Equal(t, Slot{Rating: DefaultRating}, r.Slots[0])
	require.Equal(t, []logic.Player{{Name: "Bee", Rating: 7150}, {Name: "Z", Rating: 1}}, r.Selected())

	require.ErrorIs(t, r.Set(-1, Entry{Name: "x"}), ErrBadSlot)
	require.ErrorIs(t, r.Set(MaxSlots, Entry{Name: "x"}), ErrBadSlot)
	require.ErrorIs(t, r.Clear(MaxSlots), ErrBadSlot)
}
