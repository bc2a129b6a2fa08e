package textseg

import "fmt"

// Unit is the measure a segmentation policy sizes portions by.
type Unit string

const (
	UnitChars Unit = "chars"
	UnitWords Unit = "words"
)

// Policy controls how a text is split into portions.
type Policy struct {
	// MaxUnits is the size budget of one portion, in Unit.
	MaxUnits int  `json:"max_units"`
	Unit     Unit `json:"unit"`
	// SentenceAligned accumulates whole sentences up to the budget
	// instead of cutting at the budget boundary. A single sentence
	// larger than the budget is still split at word boundaries.
	SentenceAligned bool `json:"sentence_aligned"`
}

// PolicyError reports an invalid segmentation request.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid segmentation policy: %s", e.Reason)
}

func (p Policy) Validate() error {
	if p.MaxUnits < 1 {
		return &PolicyError{Reason: fmt.Sprintf("max units must be >= 1, got %d", p.MaxUnits)}
	}
	switch p.Unit {
	case UnitChars, UnitWords:
	default:
		return &PolicyError{Reason: fmt.Sprintf("unknown unit %q", p.Unit)}
	}
	return nil
}
