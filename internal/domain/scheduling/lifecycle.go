package scheduling

import (
	"time"

	"github.com/hms/hms/internal/platform/apperr"
)

// Lifecycle:
//
//	pending -> confirmed -> completed
//	pending | confirmed -> cancelled | no_show
//
// completed, cancelled and no_show are terminal. Staff may move a
// non-terminal appointment to any status.

var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

func (s Status) Terminal() bool { return terminal[s] }

// CheckTransition reports whether an appointment in from may be set to
// to. Re-setting the current status is always allowed.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return apperr.Validationf("invalid appointment status: %q", to)
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return apperr.Validationf("Cannot change status of a %s appointment", from)
	}
	return nil
}

// CheckFuture rejects appointment times at or before now.
func CheckFuture(at, now time.Time) error {
	if !at.After(now) {
		return apperr.Validation("Appointment date must be in the future")
	}
	return nil
}
