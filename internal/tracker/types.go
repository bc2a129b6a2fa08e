package tracker

import (
	"maps"
	"sort"
	"time"
)

// DuplicatePolicy decides what happens when a submission arrives for a
// portion that already has one.
type DuplicatePolicy string

const (
	// OverwriteLatest keeps the submission with the latest ReceivedAt.
	OverwriteLatest DuplicatePolicy = "overwrite"
	// RejectDuplicate fails the second submission for an index.
	RejectDuplicate DuplicatePolicy = "reject"
)

func (p DuplicatePolicy) Valid() bool {
	return p == OverwriteLatest || p == RejectDuplicate
}

// Submission is a user's translated content for one portion of one
// assignment.
type Submission struct {
	AssignmentID string    `json:"assignment_id"`
	PortionIndex int       `json:"portion_index"`
	Content      string    `json:"content"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Assignment pairs one user with one text and tracks the dispatch
// cursor and the submissions received so far. The cursor is the index
// of the next portion to send; it only moves on confirmed dispatch,
// never on receipt of a translation.
type Assignment struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	TextID       string              `json:"text_id"`
	Cursor       int                 `json:"cursor"`
	PortionCount int                 `json:"portion_count"`
	Policy       DuplicatePolicy     `json:"policy"`
	Submissions  map[int]Submission  `json:"submissions"`
	// Version increments on every mutation; assembled-document caches
	// key on it for invalidation.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullySent reports whether every portion has been dispatched.
func (a *Assignment) FullySent() bool {
	return a.Cursor >= a.PortionCount
}

// Complete reports whether every portion index has a submission.
func (a *Assignment) Complete() bool {
	return len(a.MissingIndices()) == 0
}

// MissingIndices lists the portion indices without a submission, in
// ascending order.
func (a *Assignment) MissingIndices() []int {
	missing := make([]int, 0)
	for i := 0; i < a.PortionCount; i++ {
		if _, ok := a.Submissions[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

func cloneAssignment(a *Assignment) *Assignment {
	if a == nil {
		return nil
	}
	tmp := *a
	tmp.Submissions = maps.Clone(a.Submissions)
	return &tmp
}
