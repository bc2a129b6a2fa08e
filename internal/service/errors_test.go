package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driptext/driptext/internal/assembler"
	"github.com/driptext/driptext/internal/tracker"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{
			name: "unknown portion",
			err:  &tracker.UnknownPortionError{Index: 9, PortionCount: 3},
			want: ErrorTypeUnknownPortion,
		},
		{
			name: "not yet sent",
			err:  &tracker.NotYetSentError{Index: 2, Cursor: 1},
			want: ErrorTypeNotYetSent,
		},
		{
			name: "duplicate",
			err:  &tracker.DuplicateSubmissionError{Index: 0},
			want: ErrorTypeDuplicateSubmission,
		},
		{
			name: "contact in use",
			err:  &tracker.ContactInUseError{Contact: "maria@example.com"},
			want: ErrorTypeConflict,
		},
		{
			name: "already assigned",
			err:  &tracker.AlreadyAssignedError{UserID: "usr-1", TextID: "txt-1"},
			want: ErrorTypeConflict,
		},
		{
			name: "incomplete",
			err:  &assembler.IncompleteError{Missing: []int{1}},
			want: ErrorTypeIncomplete,
		},
		{
			name: "not found",
			err:  tracker.ErrNotFound,
			want: ErrorTypeNotFound,
		},
		{
			name: "wrapped stays typed",
			err:  fmt.Errorf("outer: %w", &tracker.DuplicateSubmissionError{Index: 0}),
			want: ErrorTypeDuplicateSubmission,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			want: ErrorTypeUnknown,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err, "op")
			assert.True(t, IsErrorType(got, tt.want))
		})
	}
}

func TestClassify_PassesRelayErrorThrough(t *testing.T) {
	t.Parallel()

	orig := NewError(ErrorTypeConflict, "taken")
	got := classify(orig, "op")
	assert.Same(t, orig, got)
}

func TestDefaultErrorHandler(t *testing.T) {
	t.Parallel()

	h := NewDefaultErrorHandler()
	assert.True(t, h.Handle(NewError(ErrorTypeDispatch, "smtp down")))
	assert.False(t, h.Handle(fmt.Errorf("plain")))

	re := NewError(ErrorTypeNotYetSent, "portion 3")
	require.NotEmpty(t, h.GetAdvice(re))
}
