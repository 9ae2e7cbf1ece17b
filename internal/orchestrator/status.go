package orchestrator

import "fmt"

// Handler outcome classes. Workers use these to decide what lands on the
// ledger: failures set error_message, warnings and skips only log.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusWarning = "warning"
	StatusSkipped = "skipped"
)

// StatusError carries a handler outcome class alongside the message.
type StatusError interface {
	Error() string
	Status() string
	Message() string
}

type statusError struct {
	status  string
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %s", e.status, e.message)
}

func (e *statusError) Status() string  { return e.status }
func (e *statusError) Message() string { return e.message }

func NewFailure(err error) StatusError {
	return &statusError{status: StatusFailure, message: err.Error()}
}

func NewWarning(message string) StatusError {
	return &statusError{status: StatusWarning, message: message}
}

func NewSkipped(message string) StatusError {
	return &statusError{status: StatusSkipped, message: message}
}
