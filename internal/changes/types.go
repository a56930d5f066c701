// Package changes defines the append-only change record model for citation
// and reference edits.
package changes

import (
	"errors"
	"time"
)

// Type identifies the kind of edit a record describes.
type Type string

const (
	TypeRenumber        Type = "RENUMBER"
	TypeStyleConversion Type = "STYLE_CONVERSION"
	TypeDelete          Type = "DELETE"
	TypeReferenceEdit   Type = "REFERENCE_EDIT"
	TypeReorder         Type = "REORDER"
)

// Types lists every known change type in a stable order.
var Types = []Type{TypeRenumber, TypeStyleConversion, TypeDelete, TypeReferenceEdit, TypeReorder}

// Valid reports whether t is a known change type.
func (t Type) Valid() bool {
	switch t {
	case TypeRenumber, TypeStyleConversion, TypeDelete, TypeReferenceEdit, TypeReorder:
		return true
	}
	return false
}

// Record is one committed edit. Records are immutable once appended; undo
// only flips IsReverted.
type Record struct {
	ID         string
	DocumentID string
	Type       Type
	// CitationID is nil for text-based records that are matched to citation
	// instances by content.
	CitationID *string
	BeforeText string
	// AfterText is nil when the edit deleted the text.
	AfterText  *string
	Metadata   Metadata
	IsReverted bool
	Seq        int64
	CreatedBy  string
	AppliedAt  time.Time
}

// IsBound reports whether the record targets a known citation instance.
func (r Record) IsBound() bool {
	return r.CitationID != nil && *r.CitationID != ""
}

// ReferenceID returns the reference the record targets, if any.
func (r Record) ReferenceID() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.referenceID()
}

// IsReferenceSection reports whether the record edits the bibliography rather
// than an in-text marker.
func (r Record) IsReferenceSection() bool {
	if r.IsBound() {
		return false
	}
	switch m := r.Metadata.(type) {
	case ReferenceEditMeta:
		return m.ReferenceID != ""
	case DeleteMeta:
		return m.ReferenceID != ""
	case StyleConversionMeta:
		return m.Scope == ScopeReference && m.ReferenceID != ""
	}
	return false
}

// IsOrderAffecting reports whether the record changes the relative order of
// bibliography entries or removes one.
func (r Record) IsOrderAffecting() bool {
	switch m := r.Metadata.(type) {
	case ReorderMeta:
		return true
	case DeleteMeta:
		return m.ReferenceID != ""
	}
	return r.Type == TypeReorder
}

// Str returns a pointer to s. It keeps literal after-texts readable.
func Str(s string) *string {
	return &s
}

var (
	// ErrInvalidRecord is returned when a record fails ingestion checks.
	ErrInvalidRecord = errors.New("invalid change record")
	// ErrUnknownType is returned when metadata is decoded for an unknown change type.
	ErrUnknownType = errors.New("unknown change type")
)
