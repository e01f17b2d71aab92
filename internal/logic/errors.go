package logic

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTeamCount is returned when fewer than one team is requested.
	ErrInvalidTeamCount = errors.New("invalid team count")

	// ErrCapacity matches any *CapacityError via errors.Is.
	ErrCapacity = errors.New("not enough players for team count")

	// ErrSizeMismatch means target sizes do not add up to the number of players.
	ErrSizeMismatch = errors.New("team sizes do not match player count")
)

// CapacityError reports a roster that is shorter than the requested team count.
type CapacityError struct {
	Players int
	Teams   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d players, %d teams", ErrCapacity, e.Players, e.Teams)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }
