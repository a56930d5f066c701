package reorder

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Smith, J. Title", "smith, j. title"},
		{"bracket label", "[12] Smith, J.", "smith, j."},
		{"dot label", "12. Smith, J.", "smith, j."},
		{"paren label", "(3)  Smith,\tJ.", "smith, j."},
		{"fullwidth", "ＳＭＩＴＨ", "smith"},
		{"surrounding space", "  Doe  ", "doe"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.in))
		})
	}
}

func TestFingerprintTruncates(t *testing.T) {
	fp := Fingerprint(strings.Repeat("ab", 100))
	assert.Equal(t, FingerprintRunes, utf8.RuneCountInString(fp))
}

func TestMatches(t *testing.T) {
	fp := Fingerprint("Smith, J. (2020). A study of things. Journal of Stuff, 3, 1-10.")

	assert.True(t, Matches(fp, "[4] Smith, J. (2020). A study of things. Journal of Stuff, 3, 1-10."))
	assert.True(t, Matches(fp, "Smith, J. (2020). A study of things. Journal of Stuff, 3, 1-10. Retrieved later."))
	assert.True(t, Matches(Fingerprint("Short"), "short"))
	assert.False(t, Matches(Fingerprint("Short"), "Shorter text"))
	assert.False(t, Matches(fp, "Jones, K. (2019). Something else."))
	assert.False(t, Matches(fp, "   "))
	assert.False(t, Matches("", "anything"))
}

func TestPlan(t *testing.T) {
	refs := []reconcile.Reference{
		{ID: "r3", SortKey: 3, Formatted: map[string]string{"apa": "Cole, A. Third."}},
		{ID: "r1", SortKey: 1, Formatted: map[string]string{"apa": "Abel, B. First."}},
		{ID: "r2", SortKey: 2, Formatted: map[string]string{"apa": "Baker, C. Second."}, Deleted: true},
		{ID: "r4", SortKey: 4, Formatted: map[string]string{"mla": "Dunn. Fourth."}},
	}

	assert.Nil(t, Plan(refs, "apa", false))

	placements := Plan(refs, "apa", true)
	require.Len(t, placements, 2)
	assert.Equal(t, Placement{ReferenceID: "r1", TargetPosition: 0, Fingerprint: "abel, b. first."}, placements[0])
	assert.Equal(t, Placement{ReferenceID: "r3", TargetPosition: 1, Fingerprint: "cole, a. third."}, placements[1])
}
