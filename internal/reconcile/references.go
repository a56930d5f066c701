package reconcile

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
)

// orderedReferences returns the snapshot entries in sort order followed by any
// edited reference missing from the snapshot, ordered by first edit.
func orderedReferences(snapshot []Reference, edited map[string][]changes.Record) []Reference {
	out := make([]Reference, len(snapshot))
	copy(out, snapshot)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		return out[i].ID < out[j].ID
	})

	known := make(map[string]struct{}, len(out))
	for _, ref := range out {
		known[ref.ID] = struct{}{}
	}
	var missing []string
	for id := range edited {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		si, sj := edited[missing[i]][0].Seq, edited[missing[j]][0].Seq
		if si != sj {
			return si < sj
		}
		return missing[i] < missing[j]
	})
	for _, id := range missing {
		out = append(out, Reference{ID: id})
	}
	return out
}

func (e *Engine) reconcileReference(ref Reference, records []changes.Record, styleKey string, mode Mode) Outcome {
	if len(records) == 0 {
		return Outcome{}
	}
	subject := referenceSubject(ref.ID)
	sources := recordIDs(records)
	skip := func(reason string) Outcome {
		e.log.Warn("Reference edit skipped", zap.String("subject", subject), zap.String("reason", reason))
		return Outcome{Skip: &Skip{SubjectKey: subject, Kind: SkipConfig, Reason: reason, Sources: sources}}
	}

	if styleKey == "" {
		return skip("document has no configured citation style")
	}

	origin, ok := formattedBefore(records[0], ref, styleKey)
	if !ok {
		return skip(fmt.Sprintf("no %s formatted text before first edit", styleKey))
	}

	deleted := ref.Deleted
	for _, r := range records {
		if _, isDelete := r.Metadata.(changes.DeleteMeta); isDelete {
			deleted = true
		}
	}
	if deleted {
		return Outcome{Op: &Operation{
			SubjectKey:   subject,
			Scope:        ScopeReference,
			OriginalText: origin,
			Mode:         mode,
			Sources:      sources,
		}}
	}

	final, ok := formattedAfter(records[len(records)-1], ref, styleKey)
	if !ok {
		return skip(fmt.Sprintf("no %s formatted text after last edit", styleKey))
	}
	return Outcome{Op: &Operation{
		SubjectKey:   subject,
		Scope:        ScopeReference,
		OriginalText: origin,
		FinalText:    &final,
		Mode:         mode,
		Sources:      sources,
	}}
}

// formattedBefore resolves the entry's text as it stood before the first
// edit. A delete that is the first edit left the style column untouched, so
// the snapshot's column still holds that text.
func formattedBefore(r changes.Record, ref Reference, styleKey string) (string, bool) {
	switch m := r.Metadata.(type) {
	case changes.ReferenceEditMeta:
		text := m.BeforeFormatted[styleKey]
		return text, text != ""
	case changes.StyleConversionMeta:
		return r.BeforeText, r.BeforeText != ""
	case changes.DeleteMeta:
		if r.BeforeText != "" {
			return r.BeforeText, true
		}
		text := ref.Formatted[styleKey]
		return text, text != ""
	}
	return "", false
}

// formattedAfter prefers the last record's own after text and falls back to
// the snapshot's style column.
func formattedAfter(r changes.Record, ref Reference, styleKey string) (string, bool) {
	switch m := r.Metadata.(type) {
	case changes.ReferenceEditMeta:
		if text := m.AfterFormatted[styleKey]; text != "" {
			return text, true
		}
	case changes.StyleConversionMeta:
		if r.AfterText != nil && *r.AfterText != "" {
			return *r.AfterText, true
		}
	}
	text := ref.Formatted[styleKey]
	return text, text != ""
}
