package appointment

import (
	"errors"
	"fmt"

	"turnero/database"
)

// Validation codes let callers map failures without parsing messages.
const (
	CodeInvalidInput     = "invalid_input"
	CodeInvalidField     = "invalid_field"
	CodeLeadTime         = "lead_time"
	CodeAgentUnavailable = "agent_unavailable"
	CodeSlotUnavailable  = "slot_unavailable"
	CodeNoCapacity       = "no_capacity"
	CodeDailyLimit       = "daily_limit"
	CodeCancelWindow     = "cancel_window"
)

const (
	ReasonLeadTime    = "lead time violation"
	ReasonTooLate     = "too late to cancel"
	ReasonNotActive   = "appointment is not active"
	ReasonClientEmpty = "client is required"
)

// ValidationError is a recoverable rejection; Message is human readable.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, msg string) error {
	return &ValidationError{Code: code, Message: msg}
}

// AsValidation unwraps a *ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

var (
	// ErrNotFound is returned for unknown appointments.
	ErrNotFound = database.ErrNotFound
	// ErrInvalidTransition is returned when the status table forbids a change.
	ErrInvalidTransition = errors.New("invalid status transition")
)
