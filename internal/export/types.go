// Package export re-materializes a document's reconciled citation edits into
// its original DOCX container.
package export

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/reorder"
)

// Request contains parameters for an export operation
type Request struct {
	DocumentID string
	// Mode is "clean" or "tracked"; empty means clean.
	Mode string
	// Author attributes tracked revisions. Empty uses the service default.
	Author string
}

// Result contains the export output
type Result struct {
	Data      []byte
	Filename  string
	MimeType  string
	Mode      reconcile.Mode
	Author    string
	Timestamp time.Time
	Applied   int
	Skipped   []reconcile.Skip
	// Fallback is set when the container could not be patched and Data is
	// the unmodified original.
	Fallback bool
}

// PlanView is a dry run of an export.
type PlanView struct {
	DocumentID     string
	Mode           reconcile.Mode
	StyleKey       string
	Operations     []reconcile.Operation
	Skips          []reconcile.Skip
	Placements     []reorder.Placement
	OrderAffecting bool
}

var (
	// ErrApplyFailed wraps any failure while patching the container.
	ErrApplyFailed = errors.New("export apply failed")
	// ErrInvalidMode is returned for an unknown export mode.
	ErrInvalidMode = errors.New("invalid export mode")
)

// originalFilename is the name the artifact is returned under: the stored
// filename itself, or a generic one when none was recorded.
func originalFilename(filename string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "document.docx"
	}
	return name
}
