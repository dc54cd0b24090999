package session

import "errors"

var (
	// ErrNotFound is returned for an unknown session id
	ErrNotFound = errors.New("session not found")
	// ErrNoContent is returned when a session has produced no result yet
	ErrNoContent = errors.New("no content available")
	// ErrRejected is wrapped by every RejectionError
	ErrRejected = errors.New("request rejected")
)

// Upload and practice rejection reasons
const (
	ReasonTooLarge    = "File too large"
	ReasonUnsupported = "Unsupported file type"
	ReasonNoSection   = "No section to practice"
)

// RejectionError reports invalid user input with a reason meant for the caller
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func (e *RejectionError) Unwrap() error {
	return ErrRejected
}

func reject(reason string) error {
	return &RejectionError{Reason: reason}
}
