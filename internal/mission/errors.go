package mission

import (
	"errors"
	"fmt"
)

// ErrMissionNotFound reports an operation on an unknown mission id. This is
// an integration error upstream, not a recoverable runtime condition.
var ErrMissionNotFound = errors.New("mission not found")

// ErrInvalidTransition reports an operation called out of lifecycle order,
// including any mutation of a mission already in a terminal status.
var ErrInvalidTransition = errors.New("invalid mission transition")

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrMissionNotFound, id)
}

func badTransition(id string, from, to Status) error {
	return fmt.Errorf("%w: mission %s cannot move %s -> %s", ErrInvalidTransition, id, from, to)
}
