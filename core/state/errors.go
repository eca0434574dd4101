package state

import (
	"errors"
	"fmt"

	"github.com/kilianp07/harvestplan/core/model"
)

// Reason classifies why an action cannot be applied.
type Reason uint8

const (
	NoFieldAccess Reason = iota + 1
	NoSiloAccess
	NoCapacity
	TurnViolation
	FieldAlreadyFinished
)

func (r Reason) String() string {
	switch r {
	case NoFieldAccess:
		return "no_field_access"
	case NoSiloAccess:
		return "no_silo_access"
	case NoCapacity:
		return "no_capacity"
	case TurnViolation:
		return "turn_violation"
	case FieldAlreadyFinished:
		return "field_already_finished"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Infeasible reports an action that violates a precondition. The state is
// left unchanged when it is returned.
type Infeasible struct {
	Reason Reason
	Action model.Action
	Detail string
}

func (e *Infeasible) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("infeasible %s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("infeasible %s: %s: %s", e.Action, e.Reason, e.Detail)
}

func infeasible(r Reason, a model.Action, format string, args ...any) *Infeasible {
	return &Infeasible{Reason: r, Action: a, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the infeasibility reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var inf *Infeasible
	if errors.As(err, &inf) {
		return inf.Reason, true
	}
	return 0, false
}

// ErrInvalidTiming is returned when an action carries embedded timestamps that
// are not monotonic or start before the machine is free.
var ErrInvalidTiming = errors.New("invalid embedded timing")
