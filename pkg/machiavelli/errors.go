package machiavelli

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownArea        = errors.New("unknown area")
	ErrUnknownUnit        = errors.New("unknown unit")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrNotOwner           = errors.New("unit does not belong to player")
	ErrWrongPhase         = errors.New("action not allowed in this phase")
	ErrInsufficientDucats = errors.New("not enough ducats")
	ErrNotAllowed         = errors.New("action not allowed")
	ErrRuleDisabled       = errors.New("rule not enabled in this game")
	ErrWrongUnitCount     = errors.New("wrong unit count in area")
	ErrGameFinished       = errors.New("game is finished")
)

// ValidationError describes why a submitted order was rejected.
type ValidationError struct {
	Order   Order
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order %s for unit %d: %s", e.Order.Code, e.Order.UnitID, e.Message)
}

// InvariantError reports corrupted game data found during a turn. The turn
// must be aborted without committing.
type InvariantError struct {
	Area    string
	Players []string
	Err     error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("area %s held by %s: %v", e.Area, strings.Join(e.Players, ", "), e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
