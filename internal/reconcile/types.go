// Package reconcile folds a document's change log into one original→final
// substitution per logical citation or reference.
package reconcile

import "github.com/s4cindia/ninja-backend-sub007/internal/changes"

// Mode selects how substitutions are written back into the container.
type Mode string

const (
	ModeClean   Mode = "clean"
	ModeTracked Mode = "tracked"
)

// ParseMode maps a request value to a Mode, defaulting to clean.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeClean:
		return ModeClean, true
	case ModeTracked:
		return ModeTracked, true
	}
	return "", false
}

// Scope says where in the document an operation applies.
type Scope string

const (
	ScopeInText    Scope = "in_text"
	ScopeReference Scope = "reference"
)

// Citation is the current snapshot of one in-text citation instance.
type Citation struct {
	ID             string
	ParagraphIndex int
	StartOffset    int
	Text           string
}

// Reference is the current snapshot of one bibliography entry.
type Reference struct {
	ID        string
	SortKey   int
	Formatted map[string]string
	Deleted   bool
}

// Input is everything reconciliation reads. It is never mutated.
type Input struct {
	Active     []changes.Record
	Reverted   []changes.Record
	Citations  []Citation
	References []Reference
	// StyleKey is the canonical key of the document's configured style.
	StyleKey string
	Mode     Mode
}

// Operation is one substitution to perform against the pristine container.
type Operation struct {
	SubjectKey   string `json:"subjectKey"`
	Scope        Scope  `json:"scope"`
	OriginalText string `json:"originalText"`
	// FinalText is nil when the subject is deleted.
	FinalText *string  `json:"finalText"`
	Mode      Mode     `json:"mode"`
	Sources   []string `json:"sources,omitempty"`
}

// IsDelete reports whether the operation removes OriginalText.
func (o Operation) IsDelete() bool {
	return o.FinalText == nil
}

// Replacement returns the text that replaces OriginalText.
func (o Operation) Replacement() string {
	if o.FinalText == nil {
		return ""
	}
	return *o.FinalText
}

// SkipKind classifies why a subject produced no operation.
type SkipKind string

const (
	// SkipChain marks a cyclic or over-long chain of text transformations.
	SkipChain SkipKind = "chain"
	// SkipConfig marks missing style-format data.
	SkipConfig SkipKind = "config"
	// SkipAbsent marks an original text that was not found in the container.
	SkipAbsent SkipKind = "absent"
	// SkipConflict marks two subjects mapping the same original text differently.
	SkipConflict SkipKind = "conflict"
)

// Skip records a subject that could not be resolved safely.
type Skip struct {
	SubjectKey string   `json:"subjectKey"`
	Kind       SkipKind `json:"kind"`
	Reason     string   `json:"reason"`
	Sources    []string `json:"sources,omitempty"`
}

// Outcome holds exactly one of Op or Skip.
type Outcome struct {
	Op   *Operation
	Skip *Skip
}

// Plan is the result of reconciling one document.
type Plan struct {
	Outcomes []Outcome
	// OrderAffecting is set when an active edit reorders or deletes a
	// bibliography entry.
	OrderAffecting bool
}

// Operations returns the resolved operations in plan order.
func (p Plan) Operations() []Operation {
	ops := make([]Operation, 0, len(p.Outcomes))
	for _, o := range p.Outcomes {
		if o.Op != nil {
			ops = append(ops, *o.Op)
		}
	}
	return ops
}

// Skips returns the skipped subjects in plan order.
func (p Plan) Skips() []Skip {
	skips := make([]Skip, 0)
	for _, o := range p.Outcomes {
		if o.Skip != nil {
			skips = append(skips, *o.Skip)
		}
	}
	return skips
}

// ByScope returns the operations that apply in scope.
func (p Plan) ByScope(scope Scope) []Operation {
	ops := make([]Operation, 0)
	for _, o := range p.Outcomes {
		if o.Op != nil && o.Op.Scope == scope {
			ops = append(ops, *o.Op)
		}
	}
	return ops
}
