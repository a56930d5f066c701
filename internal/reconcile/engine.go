package reconcile

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
)

// Engine computes reconciliation plans. It holds no per-document state, so
// one Engine serves concurrent exports.
type Engine struct {
	log *zap.Logger
}

// New creates an Engine. A nil logger disables logging.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Reconcile folds the log in into a Plan. The same input always yields the
// same Plan.
func (e *Engine) Reconcile(in Input) Plan {
	mode := in.Mode
	if mode == "" {
		mode = ModeClean
	}

	active := sortedBySeq(in.Active)
	reverted := sortedBySeq(in.Reverted)

	var (
		bound      = make(map[string][]changes.Record)
		textBased  []changes.Record
		references = make(map[string][]changes.Record)
		plan       Plan
	)
	for _, r := range active {
		if r.IsOrderAffecting() {
			plan.OrderAffecting = true
		}
		switch {
		case r.Type == changes.TypeReorder:
			// order-only; consumed by the reference order planner
		case r.IsBound():
			bound[*r.CitationID] = append(bound[*r.CitationID], r)
		case r.IsReferenceSection():
			references[r.ReferenceID()] = append(references[r.ReferenceID()], r)
		case r.Type == changes.TypeReferenceEdit:
			// reference edits always carry a reference id after validation
		default:
			textBased = append(textBased, r)
		}
	}

	revertedBound := make(map[string][]changes.Record)
	for _, r := range reverted {
		if r.IsBound() {
			revertedBound[*r.CitationID] = append(revertedBound[*r.CitationID], r)
		}
	}

	chain := buildTextChain(textBased)
	citations := sortedCitations(in.Citations)

	b := newBuilder(mode)

	// Citation-bound records are authoritative for their instance.
	present := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		present[c.ID] = struct{}{}
		records := bound[c.ID]
		if len(records) == 0 {
			continue
		}
		b.add(e.reconcileBound(c, records, revertedBound[c.ID], chain, mode))
	}
	// Bound records whose instance left the snapshot (a deleted citation row)
	// resolve from the records alone: there is no present text to walk to.
	for _, id := range orphanedCitations(bound, present) {
		e.log.Info("Citation missing from snapshot, using its records alone",
			zap.String("subject", citationSubject(id)), zap.Int("records", len(bound[id])))
		b.add(e.reconcileBound(Citation{ID: id}, bound[id], revertedBound[id], chain, mode))
	}

	// Text-based records are matched to instances without bound records by
	// content. Every before text is a walk start unless an earlier walk
	// already passed through it.
	unclaimed := make(map[string]struct{})
	for _, c := range citations {
		if len(bound[c.ID]) == 0 && c.Text != "" {
			unclaimed[c.Text] = struct{}{}
		}
	}
	stopAtInstance := func(v string) bool {
		_, ok := unclaimed[v]
		return ok
	}
	consumed := make(map[string]struct{})
	for _, start := range chain.starts() {
		if _, ok := consumed[start]; ok {
			continue
		}
		outcome, passed := e.reconcileTextRoot(start, chain, stopAtInstance, mode)
		for _, v := range passed {
			consumed[v] = struct{}{}
		}
		b.add(outcome)
	}

	for _, ref := range orderedReferences(in.References, references) {
		b.add(e.reconcileReference(ref, references[ref.ID], in.StyleKey, mode))
	}

	plan.Outcomes = b.outcomes()
	return plan
}

func (e *Engine) reconcileBound(c Citation, records, reverted []changes.Record, chain textChain, mode Mode) Outcome {
	subject := citationSubject(c.ID)
	first, last := records[0], records[len(records)-1]
	sources := recordIDs(records)

	origin, recovered := recoverOrigin(first.BeforeText, reverted)
	sources = append(sources, recovered...)

	final := last.AfterText
	if final != nil && c.Text != "" && *final != c.Text {
		res, err := chain.walk(*final, func(v string) bool { return v == c.Text })
		if err != nil {
			e.log.Warn("Citation chain skipped", zap.String("subject", subject), zap.Error(err))
			return Outcome{Skip: &Skip{SubjectKey: subject, Kind: SkipChain, Reason: err.Error(), Sources: sources}}
		}
		sources = append(sources, res.sources...)
		if res.reachedStop {
			final = res.value
		} else {
			e.log.Debug("Chain ended before current text, using current text",
				zap.String("subject", subject), zap.String("current", c.Text))
			present := c.Text
			final = &present
		}
	}

	return Outcome{Op: &Operation{
		SubjectKey:   subject,
		Scope:        ScopeInText,
		OriginalText: origin,
		FinalText:    final,
		Mode:         mode,
		Sources:      sources,
	}}
}

// recoverOrigin walks back through reverted records whose after text produced
// origin, so the result is text that exists in the pristine container.
func recoverOrigin(origin string, reverted []changes.Record) (string, []string) {
	var sources []string
	visited := map[string]struct{}{origin: {}}
	for {
		var found *changes.Record
		for i := len(reverted) - 1; i >= 0; i-- {
			r := reverted[i]
			if r.AfterText != nil && *r.AfterText == origin {
				found = &reverted[i]
				break
			}
		}
		if found == nil {
			return origin, sources
		}
		if _, seen := visited[found.BeforeText]; seen {
			return origin, sources
		}
		visited[found.BeforeText] = struct{}{}
		sources = append(sources, found.ID)
		origin = found.BeforeText
	}
}

// reconcileTextRoot walks the chain from root. It also returns the before
// texts the walk passed through without stopping; those belong to this
// subject rather than to an instance of their own.
func (e *Engine) reconcileTextRoot(root string, chain textChain, stop func(string) bool, mode Mode) (Outcome, []string) {
	subject := textSubject(root)
	l := chain.next[root]
	if l.after == nil {
		return Outcome{Op: &Operation{
			SubjectKey:   subject,
			Scope:        ScopeInText,
			OriginalText: root,
			Mode:         mode,
			Sources:      []string{l.recordID},
		}}, nil
	}

	res, err := chain.walk(*l.after, stop)
	sources := append([]string{l.recordID}, res.sources...)
	if err != nil {
		e.log.Warn("Text chain skipped", zap.String("subject", subject), zap.Error(err))
		return Outcome{Skip: &Skip{SubjectKey: subject, Kind: SkipChain, Reason: err.Error(), Sources: sources}}, nil
	}
	passed := append([]string{*l.after}, res.path...)
	if res.value != nil {
		passed = passed[:len(passed)-1]
	}
	return Outcome{Op: &Operation{
		SubjectKey:   subject,
		Scope:        ScopeInText,
		OriginalText: root,
		FinalText:    res.value,
		Mode:         mode,
		Sources:      sources,
	}}, passed
}

// builder deduplicates outcomes by subject and drops no-op substitutions.
type builder struct {
	mode     Mode
	order    []string
	bySubj   map[string]Outcome
	original map[Scope]map[string]string
}

func newBuilder(mode Mode) *builder {
	return &builder{
		mode:     mode,
		bySubj:   make(map[string]Outcome),
		original: map[Scope]map[string]string{ScopeInText: {}, ScopeReference: {}},
	}
}

func (b *builder) add(o Outcome) {
	subject := ""
	switch {
	case o.Op != nil:
		subject = o.Op.SubjectKey
		if o.Op.FinalText != nil && *o.Op.FinalText == o.Op.OriginalText {
			return
		}
		if o.Op.OriginalText == "" {
			o = Outcome{Skip: &Skip{SubjectKey: subject, Kind: SkipConfig, Reason: "empty original text", Sources: o.Op.Sources}}
			break
		}
		final := "\x00delete"
		if o.Op.FinalText != nil {
			final = *o.Op.FinalText
		}
		seen := b.original[o.Op.Scope]
		if prev, ok := seen[o.Op.OriginalText]; ok && prev != final {
			o = Outcome{Skip: &Skip{
				SubjectKey: subject,
				Kind:       SkipConflict,
				Reason:     fmt.Sprintf("original text %q already maps to a different final text", o.Op.OriginalText),
				Sources:    o.Op.Sources,
			}}
			break
		}
		seen[o.Op.OriginalText] = final
	case o.Skip != nil:
		subject = o.Skip.SubjectKey
	default:
		return
	}
	if _, exists := b.bySubj[subject]; !exists {
		b.order = append(b.order, subject)
	}
	b.bySubj[subject] = o
}

func (b *builder) outcomes() []Outcome {
	out := make([]Outcome, 0, len(b.order))
	for _, subject := range b.order {
		out = append(out, b.bySubj[subject])
	}
	return out
}

func citationSubject(id string) string { return "citation:" + id }
func textSubject(text string) string   { return "text:" + text }
func referenceSubject(id string) string {
	return "reference:" + id
}

func sortedBySeq(records []changes.Record) []changes.Record {
	out := make([]changes.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedCitations(citations []Citation) []Citation {
	out := make([]Citation, len(citations))
	copy(out, citations)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ParagraphIndex != b.ParagraphIndex {
			return a.ParagraphIndex < b.ParagraphIndex
		}
		if a.StartOffset != b.StartOffset {
			return a.StartOffset < b.StartOffset
		}
		return a.ID < b.ID
	})
	return out
}

// orphanedCitations returns the bound citation ids absent from the snapshot,
// ordered by their first record.
func orphanedCitations(bound map[string][]changes.Record, present map[string]struct{}) []string {
	var ids []string
	for id := range bound {
		if _, ok := present[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := bound[ids[i]][0].Seq, bound[ids[j]][0].Seq
		if si != sj {
			return si < sj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func recordIDs(records []changes.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
