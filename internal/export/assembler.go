package export

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/docx"
	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/reorder"
	"github.com/s4cindia/ninja-backend-sub007/internal/textpatch"
)

// Job is one assembly request.
type Job struct {
	Original   []byte
	Operations []reconcile.Operation
	Placements []reorder.Placement
	Mode       reconcile.Mode
	Author     string
	Date       time.Time
}

// Assembly is the outcome of Assemble.
type Assembly struct {
	Data           []byte
	Applied        int
	AppliedByScope map[reconcile.Scope]int
	Skips          []reconcile.Skip
	Moved          int
	Fallback       bool
	// Err is the cause of a fallback.
	Err error
}

// Assembler drives the patcher over a container.
type Assembler struct {
	log          *zap.Logger
	maxPartBytes int64
}

func NewAssembler(log *zap.Logger, maxPartBytes int64) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{log: log, maxPartBytes: maxPartBytes}
}

// Assemble applies job to its original container. It never fails: on any
// error or panic the original bytes come back with Fallback set.
func (a *Assembler) Assemble(job Job) (out Assembly) {
	defer func() {
		if r := recover(); r != nil {
			out = a.fallback(job, fmt.Errorf("%w: panic: %v", ErrApplyFailed, r))
		}
	}()

	out, err := a.assemble(job)
	if err != nil {
		return a.fallback(job, fmt.Errorf("%w: %w", ErrApplyFailed, err))
	}
	return out
}

func (a *Assembler) fallback(job Job, err error) Assembly {
	a.log.Warn("Export fell back to original container", zap.Error(err))
	return Assembly{Data: job.Original, Fallback: true, Err: err}
}

// batch is a deduplicated substitution list plus, per substitution, the
// operations it serves.
type batch struct {
	subs   []textpatch.Substitution
	owners [][]int
}

// newBatch orders substitutions longest search first so that a longer
// original wins over any of its prefixes at the same position.
func newBatch(ops []reconcile.Operation) batch {
	var b batch
	index := make(map[textpatch.Substitution]int)
	for i, op := range ops {
		sub := textpatch.Substitution{Search: op.OriginalText, Replace: op.Replacement()}
		if at, ok := index[sub]; ok {
			b.owners[at] = append(b.owners[at], i)
			continue
		}
		index[sub] = len(b.subs)
		b.subs = append(b.subs, sub)
		b.owners = append(b.owners, []int{i})
	}

	order := make([]int, len(b.subs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(b.subs[order[i]].Search) > len(b.subs[order[j]].Search)
	})
	sorted := batch{subs: make([]textpatch.Substitution, len(order)), owners: make([][]int, len(order))}
	for to, from := range order {
		sorted.subs[to] = b.subs[from]
		sorted.owners[to] = b.owners[from]
	}
	return sorted
}

func addCounts(dst, src []int) bool {
	touched := false
	for i, n := range src {
		dst[i] += n
		if n > 0 {
			touched = true
		}
	}
	return touched
}

func (a *Assembler) assemble(job Job) (Assembly, error) {
	out := Assembly{AppliedByScope: make(map[reconcile.Scope]int)}
	c, err := docx.Open(job.Original, a.maxPartBytes)
	if err != nil {
		return out, err
	}
	tracked := job.Mode == reconcile.ModeTracked
	patcher := &docx.Patcher{Tracked: tracked, Author: job.Author, Date: job.Date}
	dirty := false

	var inText, refs []reconcile.Operation
	for _, op := range job.Operations {
		if op.Scope == reconcile.ScopeReference {
			refs = append(refs, op)
		} else {
			inText = append(inText, op)
		}
	}

	// In-text markers can sit in the body or in notes.
	inTextBatch := newBatch(inText)
	inTextCounts := make([]int, len(inTextBatch.subs))
	if len(inTextBatch.subs) > 0 {
		for _, name := range append([]string{c.MainPart()}, c.NotesParts()...) {
			doc, err := c.Part(name)
			if err != nil {
				return out, err
			}
			res := patcher.ApplyPart(doc, inTextBatch.subs)
			if addCounts(inTextCounts, res.Counts) {
				c.MarkDirty(name)
				dirty = true
			}
		}
	}

	refBatch := newBatch(refs)
	refCounts := make([]int, len(refBatch.subs))
	if len(refBatch.subs) > 0 {
		doc, err := c.Part(c.MainPart())
		if err != nil {
			return out, err
		}
		res := patcher.ApplyPart(doc, refBatch.subs)
		if addCounts(refCounts, res.Counts) {
			c.MarkDirty(c.MainPart())
			dirty = true
		}
		if !tracked {
			for _, p := range res.Emptied {
				docx.RemoveParagraph(p)
			}
		}
	}

	a.tally(&out, inText, inTextBatch, inTextCounts)
	a.tally(&out, refs, refBatch, refCounts)

	if len(job.Placements) > 0 {
		doc, err := c.Part(c.MainPart())
		if err != nil {
			return out, err
		}
		placements := make([]docx.Placement, len(job.Placements))
		for i, p := range job.Placements {
			placements[i] = docx.Placement{Key: p.ReferenceID, Fingerprint: p.Fingerprint}
		}
		res := docx.ReorderParagraphs(doc, placements, reorder.Matches)
		out.Moved = res.Moved
		if res.Moved > 0 {
			c.MarkDirty(c.MainPart())
			dirty = true
		}
		for _, id := range res.Unmatched {
			out.Skips = append(out.Skips, reconcile.Skip{
				SubjectKey: "reference:" + id,
				Kind:       reconcile.SkipAbsent,
				Reason:     "bibliography paragraph not found for reordering",
			})
		}
	}

	if !dirty {
		out.Data = job.Original
		return out, nil
	}

	if tracked {
		if name := c.CorePropertiesPart(); name != "" {
			doc, err := c.Part(name)
			if err != nil {
				return out, err
			}
			docx.SetCoreProperties(doc, job.Author, job.Date)
			c.MarkDirty(name)
		}
	}

	data, err := c.Bytes()
	if err != nil {
		return out, err
	}
	out.Data = data
	return out, nil
}

// tally records each operation, in plan order, as applied or absent.
func (a *Assembler) tally(out *Assembly, ops []reconcile.Operation, b batch, counts []int) {
	matched := make([]int, len(ops))
	for i, owners := range b.owners {
		for _, idx := range owners {
			matched[idx] = counts[i]
		}
	}
	for i, op := range ops {
		if matched[i] > 0 {
			out.Applied++
			out.AppliedByScope[op.Scope]++
			continue
		}
		a.log.Warn("Operation original text not found",
			zap.String("subject", op.SubjectKey),
			zap.String("scope", string(op.Scope)))
		out.Skips = append(out.Skips, reconcile.Skip{
			SubjectKey: op.SubjectKey,
			Kind:       reconcile.SkipAbsent,
			Reason:     "original text not found in document",
			Sources:    op.Sources,
		})
	}
}
