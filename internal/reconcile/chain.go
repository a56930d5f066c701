package reconcile

import (
	"errors"
	"sort"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
)

var (
	errChainCycle = errors.New("text transformations form a cycle")
	errChainHops  = errors.New("text transformation chain exceeds hop bound")
)

type link struct {
	after    *string
	recordID string
	seq      int64
}

// textChain is the before→after map built from text-based records. Later
// records replace earlier ones that share a before text.
type textChain struct {
	next  map[string]link
	roots []string
}

func buildTextChain(records []changes.Record) textChain {
	c := textChain{next: make(map[string]link)}
	for _, r := range records {
		c.next[r.BeforeText] = link{after: r.AfterText, recordID: r.ID, seq: r.Seq}
	}

	produced := make(map[string]struct{}, len(c.next))
	for _, l := range c.next {
		if l.after != nil {
			produced[*l.after] = struct{}{}
		}
	}
	for before := range c.next {
		if _, ok := produced[before]; !ok {
			c.roots = append(c.roots, before)
		}
	}
	c.sortBySeq(c.roots)
	return c
}

func (c textChain) sortBySeq(befores []string) {
	sort.Slice(befores, func(i, j int) bool {
		si, sj := c.next[befores[i]].seq, c.next[befores[j]].seq
		if si != sj {
			return si < sj
		}
		return befores[i] < befores[j]
	})
}

// maxHops is the most steps any walk may take: one per distinct before text.
func (c textChain) maxHops() int {
	return len(c.next)
}

type walkResult struct {
	value   *string
	sources []string
	// path lists every value stepped into after start, in order.
	path []string
	// reachedStop is false when the map ran out before stop matched.
	reachedStop bool
}

// walk follows the map from start until stop reports true for the current
// value, the value is deleted, or no further mapping exists. It never takes
// more than maxHops steps and never revisits a value.
func (c textChain) walk(start string, stop func(string) bool) (walkResult, error) {
	value := start
	res := walkResult{value: &value}
	if stop(value) {
		res.reachedStop = true
		return res, nil
	}

	visited := map[string]struct{}{start: {}}
	for hops := 0; ; hops++ {
		l, ok := c.next[value]
		if !ok {
			return res, nil
		}
		if hops >= c.maxHops() {
			return res, errChainHops
		}
		res.sources = append(res.sources, l.recordID)
		if l.after == nil {
			res.value = nil
			res.reachedStop = true
			return res, nil
		}
		next := *l.after
		if _, seen := visited[next]; seen {
			return res, errChainCycle
		}
		visited[next] = struct{}{}
		res.path = append(res.path, next)
		value = next
		res.value = &value
		if stop(value) {
			res.reachedStop = true
			return res, nil
		}
	}
}

// starts orders the before texts that text-based reconciliation walks from:
// chain roots first, then every other before text by record sequence.
func (c textChain) starts() []string {
	isRoot := make(map[string]struct{}, len(c.roots))
	for _, root := range c.roots {
		isRoot[root] = struct{}{}
	}
	rest := make([]string, 0, len(c.next)-len(c.roots))
	for before := range c.next {
		if _, ok := isRoot[before]; !ok {
			rest = append(rest, before)
		}
	}
	c.sortBySeq(rest)
	return append(append([]string{}, c.roots...), rest...)
}
