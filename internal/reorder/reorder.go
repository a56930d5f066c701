// Package reorder plans the bibliography paragraph order after reference
// moves and deletions.
package reorder

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
)

// FingerprintRunes bounds the length of a fingerprint.
const FingerprintRunes = 48

// minPrefixRunes is the shortest fingerprint allowed to match by prefix.
const minPrefixRunes = 16

var enumerationLabel = regexp.MustCompile(`^(\[\d+\]|\(\d+\)|\d+\.)\s*`)

// Placement puts the reference whose paragraph matches Fingerprint at
// TargetPosition (zero based) among the placed paragraphs.
type Placement struct {
	ReferenceID    string
	TargetPosition int
	Fingerprint    string
}

// Plan returns one placement per live reference in sort order, or nil when no
// order-affecting change is active. References without formatted text in
// styleKey cannot be located and are left out.
func Plan(refs []reconcile.Reference, styleKey string, orderAffecting bool) []Placement {
	if !orderAffecting {
		return nil
	}
	sorted := make([]reconcile.Reference, 0, len(refs))
	for _, ref := range refs {
		if !ref.Deleted {
			sorted = append(sorted, ref)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortKey != sorted[j].SortKey {
			return sorted[i].SortKey < sorted[j].SortKey
		}
		return sorted[i].ID < sorted[j].ID
	})

	var placements []Placement
	for _, ref := range sorted {
		fp := Fingerprint(ref.Formatted[styleKey])
		if fp == "" {
			continue
		}
		placements = append(placements, Placement{
			ReferenceID:    ref.ID,
			TargetPosition: len(placements),
			Fingerprint:    fp,
		})
	}
	return placements
}

// Fingerprint reduces text to a stable, comparable key.
func Fingerprint(text string) string {
	s := norm.NFKC.String(text)
	s = cases.Fold().String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = enumerationLabel.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) > FingerprintRunes {
		s = string([]rune(s)[:FingerprintRunes])
		s = strings.TrimRight(s, " ")
	}
	return s
}

// Matches reports whether fingerprint identifies paragraphText. Either side
// may be a prefix of the other, provided the shorter one is long enough to be
// distinctive.
func Matches(fingerprint, paragraphText string) bool {
	if fingerprint == "" {
		return false
	}
	other := Fingerprint(paragraphText)
	if other == "" {
		return false
	}
	if other == fingerprint {
		return true
	}
	shorter, longer := fingerprint, other
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) < minPrefixRunes {
		return false
	}
	return strings.HasPrefix(longer, shorter)
}
