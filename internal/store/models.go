package store

import "time"

type Document struct {
	ID             string
	Filename       string
	StoragePath    string
	StorageBackend string
	// CitationStyle is the free-form style label recorded at upload.
	CitationStyle string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Citation kinds.
const (
	CitationNumeric       = "numeric"
	CitationParenthetical = "parenthetical"
	CitationNarrative     = "narrative"
	CitationFootnote      = "footnote"
	CitationEndnote       = "endnote"
)

// Citation is the current state of one in-text citation instance.
type Citation struct {
	ID             string
	DocumentID     string
	ParagraphIndex int
	StartOffset    int
	EndOffset      int
	Text           string
	Kind           string
	ReferenceIDs   []string
}

// Reference is the current state of one bibliography entry.
type Reference struct {
	ID         string
	DocumentID string
	SortKey    int
	// Formatted maps canonical style keys to the entry's formatted text.
	Formatted map[string]string
	Authors   []string
	Year      string
	Title     string
	Journal   string
	DOI       string
	Deleted   bool
}
