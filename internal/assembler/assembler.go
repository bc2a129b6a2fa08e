package assembler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
)

// Document is the full translated text for one assignment, derived
// from its submissions once every portion has one.
type Document struct {
	AssignmentID string    `json:"assignment_id"`
	TextID       string    `json:"text_id"`
	Content      string    `json:"content"`
	Version      int64     `json:"version"`
	AssembledAt  time.Time `json:"assembled_at"`
}

// IncompleteError reports an assembly attempt before every portion has
// a submission. Retryable: it names exactly the missing indices.
type IncompleteError struct {
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("translation incomplete: missing portions %v", e.Missing)
}

// Assembler merges per-portion submissions into completed documents.
// Results are cached per assignment and keyed on the assignment
// version, so any later submission invalidates the cached document.
type Assembler struct {
	mu    sync.Mutex
	cache map[string]*Document
}

func New() *Assembler {
	return &Assembler{cache: make(map[string]*Document)}
}

// Assemble joins the submissions in portion-index order, each trimmed
// and separated by a single space. Source portions carry their own
// trailing whitespace, so the separator rule for translations is the
// documented join: trim each submission, join with " ". Assembling
// twice without an intervening submission yields identical output.
func (s *Assembler) Assemble(a *tracker.Assignment) (*Document, error) {
	if missing := a.MissingIndices(); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	s.mu.Lock()
	if cached, ok := s.cache[a.ID]; ok && cached.Version == a.Version {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	parts := make([]string, a.PortionCount)
	for i := 0; i < a.PortionCount; i++ {
		parts[i] = strings.TrimSpace(a.Submissions[i].Content)
	}

	doc := &Document{
		AssignmentID: a.ID,
		TextID:       a.TextID,
		Content:      strings.Join(parts, " "),
		Version:      a.Version,
		AssembledAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.cache[a.ID] = doc
	s.mu.Unlock()
	return doc, nil
}

// Status reports how far an assignment's translation has come.
type Status struct {
	Title      string  `json:"title"`
	Total      int     `json:"total_portions"`
	Translated int     `json:"translated_portions"`
	Remaining  int     `json:"remaining_portions"`
	Percent    float64 `json:"completion_percent"`
}

func (s *Assembler) Status(t *textseg.Text, a *tracker.Assignment) Status {
	total := a.PortionCount
	translated := total - len(a.MissingIndices())
	st := Status{
		Title:      t.Title,
		Total:      total,
		Translated: translated,
		Remaining:  total - translated,
	}
	if total > 0 {
		st.Percent = float64(translated) / float64(total) * 100
	}
	return st
}
