package tracker

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an assignment ID is unknown.
var ErrNotFound = errors.New("assignment not found")

// ContactInUseError reports a registration with an email or phone that
// already belongs to another user.
type ContactInUseError struct {
	Contact string
}

func (e *ContactInUseError) Error() string {
	return fmt.Sprintf("contact %s is already registered", e.Contact)
}

// AlreadyAssignedError reports a second assignment of the same text to
// the same user.
type AlreadyAssignedError struct {
	UserID string
	TextID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("user %s is already assigned text %s", e.UserID, e.TextID)
}

// UnknownPortionError reports a submission for an index outside the
// text's portion range.
type UnknownPortionError struct {
	Index        int
	PortionCount int
}

func (e *UnknownPortionError) Error() string {
	return fmt.Sprintf("unknown portion %d: text has %d portions", e.Index, e.PortionCount)
}

// NotYetSentError reports a submission for a portion that has not been
// dispatched yet.
type NotYetSentError struct {
	Index  int
	Cursor int
}

func (e *NotYetSentError) Error() string {
	return fmt.Sprintf("portion %d not yet sent: cursor is at %d", e.Index, e.Cursor)
}

// DuplicateSubmissionError reports a second submission for an index
// under the reject-duplicate policy.
type DuplicateSubmissionError struct {
	Index int
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("duplicate submission for portion %d", e.Index)
}
