package logic

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeamSizes(t *testing.T) {
	tests := []struct {
		name string
		n, k int
		want []int
	}{
		{name: "even split", n: 4, k: 2, want: []int{2, 2}},
		{name: "one per team", n: 3, k: 3, want: []int{1, 1, 1}},
		{name: "remainder goes first", n: 5, k: 4, want: []int{2, 1, 1, 1}},
		{name: "full roster three teams", n: 24, k: 3, want: []int{8, 8, 8}},
		{name: "odd roster four teams", n: 23, k: 4, want: []int{6, 6, 6, 5}},
		{name: "single team", n: 7, k: 1, want: []int{7}},
		{name: "team count outside policy", n: 11, k: 6, want: []int{2, 2, 2, 2, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TeamSizes(tt.n, tt.k)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTeamSizes_Invariants(t *testing.T) {
	for k := 1; k <= 6; k++ {
		for n := k; n <= 30; n++ {
			sizes, err := TeamSizes(n, k)
			require.NoError(t, err)
			require.Len(t, sizes, k)

			sum := 0
			for _, s := range sizes {
				sum += s
			}
			require.Equal(t, n, sum, "n=%d k=%d", n, k)
			require.LessOrEqual(t, slices.Max(sizes)-slices.Min(sizes), 1)
			require.Positive(t, slices.Min(sizes))
			require.True(t, slices.IsSortedFunc(sizes, func(a, b int) int { return b - a }),
				"sizes must be non-increasing: %v", sizes)
		}
	}
}

func TestTeamSizes_Errors(t *testing.T) {
	_, err := TeamSizes(5, 0)
	require.ErrorIs(t, err, ErrInvalidTeamCount)

	_, err = TeamSizes(5, -2)
	require.ErrorIs(t, err, ErrInvalidTeamCount)

	_, err = TeamSizes(2, 3)
	require.ErrorIs(t, err, ErrCapacity)

	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	require.Equal(t, 2, capErr.Players)
	require.Equal(t, 3, capErr.Teams)
}
