package textpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leavesOf(texts ...string) []Leaf {
	leaves := make([]Leaf, len(texts))
	for i, t := range texts {
		leaves[i] = &StringLeaf{Value: t}
	}
	return leaves
}

func textsOf(leaves []Leaf) []string {
	out := make([]string, len(leaves))
	for i, l := range leaves {
		out[i] = l.Text()
	}
	return out
}

func TestReplace(t *testing.T) {
	tests := []struct {
		name    string
		leaves  []string
		search  string
		replace string
		want    []string
		count   int
	}{
		{
			name:    "single leaf",
			leaves:  []string{"before(1)after"},
			search:  "(1)",
			replace: "(2)",
			want:    []string{"before(2)after"},
			count:   1,
		},
		{
			name:    "two leaves",
			leaves:  []string{"(", "1)"},
			search:  "(1)",
			replace: "(2)",
			want:    []string{"(2)", ""},
			count:   1,
		},
		{
			name:    "interior leaves blanked",
			leaves:  []string{"see [", "1", ",", " 2] here"},
			search:  "[1, 2]",
			replace: "[1-2]",
			want:    []string{"see [1-2]", "", "", " here"},
			count:   1,
		},
		{
			name:    "no match",
			leaves:  []string{"nothing", " to see"},
			search:  "(9)",
			replace: "(10)",
			want:    []string{"nothing", " to see"},
			count:   0,
		},
		{
			name:    "several occurrences",
			leaves:  []string{"(1) and (", "1) again (1)"},
			search:  "(1)",
			replace: "[1]",
			want:    []string{"[1] and [1]", " again [1]"},
			count:   3,
		},
		{
			name:    "non-overlapping",
			leaves:  []string{"aaaa"},
			search:  "aa",
			replace: "b",
			want:    []string{"bb"},
			count:   2,
		},
		{
			name:    "deletion",
			leaves:  []string{"text (", "3)", " more"},
			search:  " (3)",
			replace: "",
			want:    []string{"text", "", " more"},
			count:   1,
		},
		{
			name:    "empty leaves in between",
			leaves:  []string{"(", "", "4)"},
			search:  "(4)",
			replace: "(5)",
			want:    []string{"(5)", "", ""},
			count:   1,
		},
		{
			name:    "multibyte text",
			leaves:  []string{"Müller ", "(2020", ")"},
			search:  "Müller (2020)",
			replace: "Müller & Ça (2020)",
			want:    []string{"Müller & Ça (2020)", "", ""},
			count:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaves := leavesOf(tt.leaves...)
			count := Replace(leaves, tt.search, tt.replace)
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.want, textsOf(leaves))
		})
	}
}

func TestApplyIsSimultaneous(t *testing.T) {
	leaves := leavesOf("(1) then (", "2)")
	counts := Apply(leaves, []Substitution{
		{Search: "(1)", Replace: "(2)"},
		{Search: "(2)", Replace: "(1)"},
	})

	assert.Equal(t, []int{1, 1}, counts)
	assert.Equal(t, []string{"(2) then (1)", ""}, textsOf(leaves))
}

func TestFindEarliestListedWinsAtSamePosition(t *testing.T) {
	matches := Find([]string{"[1, 2]"}, []Substitution{
		{Search: "[1, 2]", Replace: "x"},
		{Search: "[1", Replace: "y"},
	})

	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Sub)
	assert.Equal(t, []Segment{{Leaf: 0, Start: 0, End: 6}}, matches[0].Segments)
}

func TestFindSegments(t *testing.T) {
	matches := Find([]string{"ab(", "1", ")cd"}, []Substitution{{Search: "(1)"}})

	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Start)
	assert.Equal(t, 5, matches[0].End)
	assert.Equal(t, []Segment{
		{Leaf: 0, Start: 2, End: 3},
		{Leaf: 1, Start: 0, End: 1},
		{Leaf: 2, Start: 0, End: 1},
	}, matches[0].Segments)
}

func TestFindIgnoresEmptySearch(t *testing.T) {
	assert.Empty(t, Find([]string{"abc"}, []Substitution{{Search: ""}}))
	assert.Empty(t, Find(nil, []Substitution{{Search: "a"}}))
}

func TestStreamLocate(t *testing.T) {
	s := NewStream([]string{"ab", "", "cde"})
	assert.Equal(t, "abcde", s.Text())
	leaf, off := s.Locate(3)
	assert.Equal(t, 2, leaf)
	assert.Equal(t, 1, off)
}
