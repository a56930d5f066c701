package changes

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

const (
	MaxCitationTextBytes  = 4 << 10
	MaxReferenceTextBytes = 32 << 10
	// MaxCitationRange bounds the width of a numeric range such as "[3-9]".
	MaxCitationRange = 1000
)

var numericRangePattern = regexp.MustCompile(`(\d{1,9})\s*[-\x{2013}\x{2014}]\s*(\d{1,9})`)

// Validate checks a record before it is appended to the log. Pathological
// input is rejected here so that reconciliation and patching never see it.
// A nil Metadata is replaced with the empty payload for the record type.
func Validate(r *Record) error {
	if r.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidRecord)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, r.Type)
	}
	if r.Metadata == nil {
		m, err := EmptyMetadata(r.Type)
		if err != nil {
			return err
		}
		r.Metadata = m
	}
	if r.Metadata.Type() != r.Type {
		return fmt.Errorf("%w: %s metadata on %s record", ErrInvalidRecord, r.Metadata.Type(), r.Type)
	}
	if !utf8.ValidString(r.BeforeText) || (r.AfterText != nil && !utf8.ValidString(*r.AfterText)) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidRecord)
	}

	limit := MaxCitationTextBytes
	if r.Type == TypeReferenceEdit || r.IsReferenceSection() {
		limit = MaxReferenceTextBytes
	}
	if len(r.BeforeText) > limit || (r.AfterText != nil && len(*r.AfterText) > limit) {
		return fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidRecord, limit)
	}

	switch m := r.Metadata.(type) {
	case ReferenceEditMeta:
		if m.ReferenceID == "" {
			return fmt.Errorf("%w: reference edit without reference id", ErrInvalidRecord)
		}
		for key, text := range m.BeforeFormatted {
			if len(text) > MaxReferenceTextBytes {
				return fmt.Errorf("%w: formatted %s text exceeds %d bytes", ErrInvalidRecord, key, MaxReferenceTextBytes)
			}
		}
		for key, text := range m.AfterFormatted {
			if len(text) > MaxReferenceTextBytes {
				return fmt.Errorf("%w: formatted %s text exceeds %d bytes", ErrInvalidRecord, key, MaxReferenceTextBytes)
			}
		}
		return nil
	case ReorderMeta:
		if m.ReferenceID == "" {
			return fmt.Errorf("%w: reorder without reference id", ErrInvalidRecord)
		}
		if m.FromPosition < 0 || m.ToPosition < 0 {
			return fmt.Errorf("%w: negative reorder position", ErrInvalidRecord)
		}
		return nil
	case StyleConversionMeta:
		if m.Scope != ScopeInText && m.Scope != ScopeReference {
			return fmt.Errorf("%w: unknown style conversion scope %q", ErrInvalidRecord, m.Scope)
		}
	}

	if r.IsReferenceSection() {
		return nil
	}
	if r.BeforeText == "" {
		return fmt.Errorf("%w: %s record requires before text", ErrInvalidRecord, r.Type)
	}
	if err := checkRanges(r.BeforeText); err != nil {
		return err
	}
	if r.AfterText != nil {
		if err := checkRanges(*r.AfterText); err != nil {
			return err
		}
	}
	return nil
}

func checkRanges(text string) error {
	for _, m := range numericRangePattern.FindAllStringSubmatch(text, -1) {
		lo, err1 := strconv.Atoi(m[1])
		hi, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("%w: unreadable range %q", ErrInvalidRecord, m[0])
		}
		if hi-lo > MaxCitationRange {
			return fmt.Errorf("%w: citation range %q spans more than %d entries", ErrInvalidRecord, m[0], MaxCitationRange)
		}
	}
	return nil
}
