package service

import (
	"errors"
	"fmt"

	"github.com/driptext/driptext/internal/assembler"
	"github.com/driptext/driptext/internal/intake"
	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
	"github.com/driptext/driptext/pkg/log"
)

// ErrorType classifies service failures so API handlers can map them
// to status codes without string matching.
type ErrorType string

const (
	ErrorTypeInvalidPolicy       ErrorType = "invalid_policy"
	ErrorTypeInvalidInput        ErrorType = "invalid_input"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeConflict            ErrorType = "conflict"
	ErrorTypeUnknownPortion      ErrorType = "unknown_portion"
	ErrorTypeNotYetSent          ErrorType = "not_yet_sent"
	ErrorTypeDuplicateSubmission ErrorType = "duplicate_submission"
	ErrorTypeIncomplete          ErrorType = "incomplete_translation"
	ErrorTypeUnresolvedReply     ErrorType = "unresolved_reply"
	ErrorTypeDispatch            ErrorType = "dispatch_failed"
	ErrorTypeStore               ErrorType = "store_failed"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// RelayError is the error type returned by Service operations.
type RelayError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

func NewError(t ErrorType, message string) *RelayError {
	return &RelayError{Type: t, Message: message}
}

func WrapError(t ErrorType, message string, cause error) *RelayError {
	return &RelayError{Type: t, Message: message, Cause: cause}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *RelayError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var re *RelayError
	if !errors.As(err, &re) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(re)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *RelayError) string {
	switch err.Type {
	case ErrorTypeInvalidPolicy:
		return "Check the segmentation policy: max units must be at least 1 and the unit must be chars or words"
	case ErrorTypeInvalidInput:
		return "Verify the request parameters: titles, content and contact details cannot be empty"
	case ErrorTypeNotFound:
		return "The referenced text, user or assignment does not exist; list the resource to find the right id"
	case ErrorTypeConflict:
		return "The resource already exists: titles, contacts and (user, text) pairs are unique"
	case ErrorTypeUnknownPortion:
		return "The reply names a portion index outside the text; ask the translator to keep the original tags"
	case ErrorTypeNotYetSent:
		return "The reply translates a portion that has not been dispatched yet; it will be accepted after the portion goes out"
	case ErrorTypeDuplicateSubmission:
		return "This portion already has a translation and the assignment rejects duplicates"
	case ErrorTypeIncomplete:
		return "Portions are still untranslated; use export to get a partial document with gap markers"
	case ErrorTypeUnresolvedReply:
		return "The sender or text could not be matched; register the contact or keep the original subject line in the reply"
	case ErrorTypeDispatch:
		return "Check SMTP and SMS gateway credentials and network connectivity"
	case ErrorTypeStore:
		return "Check that the database path exists and is writable"
	default:
		return "Review the detailed error information and check the relevant configuration"
	}
}

// IsErrorType reports whether err carries the given classification.
func IsErrorType(err error, t ErrorType) bool {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Type == t
	}
	return false
}

// classify wraps errors from the inner packages into a RelayError with
// the matching type. A RelayError passes through unchanged.
func classify(err error, message string) *RelayError {
	if err == nil {
		return nil
	}

	var re *RelayError
	if errors.As(err, &re) {
		return re
	}

	t := ErrorTypeUnknown
	var (
		policyErr     *textseg.PolicyError
		unknownErr    *tracker.UnknownPortionError
		notSentErr    *tracker.NotYetSentError
		duplicateErr  *tracker.DuplicateSubmissionError
		contactErr    *tracker.ContactInUseError
		assignedErr   *tracker.AlreadyAssignedError
		incompleteErr *assembler.IncompleteError
		unresolvedErr *intake.UnresolvedReplyError
	)
	switch {
	case errors.As(err, &policyErr):
		t = ErrorTypeInvalidPolicy
	case errors.As(err, &unknownErr):
		t = ErrorTypeUnknownPortion
	case errors.As(err, &notSentErr):
		t = ErrorTypeNotYetSent
	case errors.As(err, &duplicateErr):
		t = ErrorTypeDuplicateSubmission
	case errors.As(err, &contactErr), errors.As(err, &assignedErr):
		t = ErrorTypeConflict
	case errors.As(err, &incompleteErr):
		t = ErrorTypeIncomplete
	case errors.As(err, &unresolvedErr):
		t = ErrorTypeUnresolvedReply
	case errors.Is(err, tracker.ErrNotFound):
		t = ErrorTypeNotFound
	}
	return WrapError(t, message, err)
}
