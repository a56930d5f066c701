// Package textpatch finds and rewrites text that may straddle several adjacent
// text leaves, leaving each leaf's formatting owner untouched.
package textpatch

import "strings"

// Leaf is one text-bearing node. Its formatting lives outside the text.
type Leaf interface {
	Text() string
	SetText(string)
}

// Substitution replaces every non-overlapping occurrence of Search.
type Substitution struct {
	Search  string
	Replace string
}

// Segment is the part of one leaf covered by a match, as byte offsets into
// that leaf's text.
type Segment struct {
	Leaf  int
	Start int
	End   int
}

// Match is one occurrence of a substitution's search text in the stream.
type Match struct {
	Sub      int
	Start    int
	End      int
	Segments []Segment
}

// Stream is the concatenated text of a leaf sequence with a per-byte
// back-reference to the owning leaf.
type Stream struct {
	text   string
	starts []int
	owner  []int
}

// NewStream flattens texts into one logical stream.
func NewStream(texts []string) Stream {
	var b strings.Builder
	s := Stream{starts: make([]int, len(texts))}
	for i, t := range texts {
		s.starts[i] = b.Len()
		b.WriteString(t)
		for j := 0; j < len(t); j++ {
			s.owner = append(s.owner, i)
		}
	}
	s.text = b.String()
	return s
}

// Text returns the flattened text.
func (s Stream) Text() string {
	return s.text
}

// Locate maps stream byte offset pos to (leaf index, offset within leaf).
func (s Stream) Locate(pos int) (int, int) {
	leaf := s.owner[pos]
	return leaf, pos - s.starts[leaf]
}

func (s Stream) segments(start, end int) []Segment {
	first, last := s.owner[start], s.owner[end-1]
	segs := make([]Segment, 0, last-first+1)
	for leaf := first; leaf <= last; leaf++ {
		leafStart := s.starts[leaf]
		leafEnd := leafStart
		if leaf+1 < len(s.starts) {
			leafEnd = s.starts[leaf+1]
		} else {
			leafEnd = len(s.text)
		}
		from, to := max(start, leafStart), min(end, leafEnd)
		if to < from {
			to = from
		}
		segs = append(segs, Segment{Leaf: leaf, Start: from - leafStart, End: to - leafStart})
	}
	return segs
}

// Find scans texts left to right for non-overlapping occurrences of the
// substitutions. When several substitutions match at the same position the
// earliest listed wins. Empty search strings never match.
func Find(texts []string, subs []Substitution) []Match {
	stream := NewStream(texts)
	return stream.Find(subs)
}

// Find is Find over an existing stream.
func (s Stream) Find(subs []Substitution) []Match {
	var matches []Match
	if len(s.text) == 0 {
		return matches
	}

	// next[i] caches the next occurrence of subs[i] at or after pos.
	next := make([]int, len(subs))
	for i, sub := range subs {
		next[i] = indexFrom(s.text, sub.Search, 0)
	}

	pos := 0
	for pos < len(s.text) {
		best := -1
		for i, sub := range subs {
			if next[i] >= 0 && next[i] < pos {
				next[i] = indexFrom(s.text, sub.Search, pos)
			}
			if next[i] < 0 {
				continue
			}
			if best < 0 || next[i] < next[best] {
				best = i
			}
		}
		if best < 0 {
			break
		}
		start := next[best]
		end := start + len(subs[best].Search)
		matches = append(matches, Match{
			Sub:      best,
			Start:    start,
			End:      end,
			Segments: s.segments(start, end),
		})
		pos = end
	}
	return matches
}

func indexFrom(text, search string, from int) int {
	if search == "" || from > len(text) {
		return -1
	}
	idx := strings.Index(text[from:], search)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// Apply rewrites every occurrence of subs in leaves and returns the number of
// matches per substitution. Matches are rewritten in reverse document order
// so offsets computed for earlier matches stay valid.
func Apply(leaves []Leaf, subs []Substitution) []int {
	texts := make([]string, len(leaves))
	for i, leaf := range leaves {
		texts[i] = leaf.Text()
	}
	counts := make([]int, len(subs))
	matches := Find(texts, subs)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		rewrite(leaves, m.Segments, subs[m.Sub].Replace)
		counts[m.Sub]++
	}
	return counts
}

// Replace is Apply for a single substitution.
func Replace(leaves []Leaf, search, replace string) int {
	return Apply(leaves, []Substitution{{Search: search, Replace: replace}})[0]
}

func rewrite(leaves []Leaf, segs []Segment, replacement string) {
	if len(segs) == 1 {
		seg := segs[0]
		text := leaves[seg.Leaf].Text()
		leaves[seg.Leaf].SetText(text[:seg.Start] + replacement + text[seg.End:])
		return
	}

	first := segs[0]
	text := leaves[first.Leaf].Text()
	leaves[first.Leaf].SetText(text[:first.Start] + replacement)

	for _, seg := range segs[1 : len(segs)-1] {
		leaves[seg.Leaf].SetText("")
	}

	last := segs[len(segs)-1]
	text = leaves[last.Leaf].Text()
	leaves[last.Leaf].SetText(text[last.End:])
}

// StringLeaf is an in-memory Leaf.
type StringLeaf struct {
	Value string
}

func (l *StringLeaf) Text() string     { return l.Value }
func (l *StringLeaf) SetText(s string) { l.Value = s }
