package docx

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/s4cindia/ninja-backend-sub007/internal/textpatch"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func isW(e *etree.Element, tag string) bool {
	if e == nil || e.Tag != tag {
		return false
	}
	return e.Space == "w" || e.NamespaceURI() == wordNS
}

func childW(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if isW(c, tag) {
			return c
		}
	}
	return nil
}

// textLeaf adapts a w:t element to textpatch.Leaf.
type textLeaf struct {
	t *etree.Element
}

func (l textLeaf) Text() string { return l.t.Text() }

func (l textLeaf) SetText(s string) { setText(l.t, s) }

func setText(t *etree.Element, s string) {
	t.SetText(s)
	if s != strings.TrimSpace(s) {
		t.CreateAttr("xml:space", "preserve")
	}
}

// Paragraphs returns every w:p under root in document order, including
// paragraphs nested in tables, text boxes, and notes.
func Paragraphs(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if isW(c, "p") {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		if isW(root, "p") {
			out = append(out, root)
		}
		walk(root)
	}
	return out
}

// textElements returns the visible w:t elements of a paragraph. Deleted and
// moved-away content is skipped, as are nested paragraphs, which are visited
// on their own.
func textElements(p *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch {
			case isW(c, "p"), isW(c, "pPr"), isW(c, "del"), isW(c, "moveFrom"):
				continue
			case isW(c, "r"):
				for _, rc := range c.ChildElements() {
					switch {
					case isW(rc, "t"):
						out = append(out, rc)
					case isW(rc, "rPr"):
					default:
						walk(rc)
					}
				}
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return out
}

// ParagraphText returns the visible text of a paragraph.
func ParagraphText(p *etree.Element) string {
	var b strings.Builder
	for _, t := range textElements(p) {
		b.WriteString(t.Text())
	}
	return b.String()
}

// PartResult reports what a patch pass did to one part.
type PartResult struct {
	// Counts holds the number of matches per substitution.
	Counts []int
	// Emptied lists paragraphs that a deletion left with whitespace only.
	Emptied []*etree.Element
}

// Patcher applies substitution batches to parsed parts. In tracked mode it
// records every change as a w:del/w:ins pair attributed to Author at Date.
type Patcher struct {
	Tracked bool
	Author  string
	Date    time.Time

	nextID int
}

// ApplyPart rewrites every paragraph of doc. Substitutions within one call are
// applied simultaneously: replacement text is never rescanned.
func (p *Patcher) ApplyPart(doc *etree.Document, subs []textpatch.Substitution) PartResult {
	res := PartResult{Counts: make([]int, len(subs))}
	if doc.Root() == nil || len(subs) == 0 {
		return res
	}
	if p.Tracked {
		p.reserveIDs(doc.Root())
	}

	for _, para := range Paragraphs(doc.Root()) {
		ts := textElements(para)
		if len(ts) == 0 {
			continue
		}
		texts := make([]string, len(ts))
		for i, t := range ts {
			texts[i] = t.Text()
		}
		matches := textpatch.NewStream(texts).Find(subs)
		if len(matches) == 0 {
			continue
		}

		deleted := false
		for _, m := range matches {
			res.Counts[m.Sub]++
			if subs[m.Sub].Replace == "" {
				deleted = true
			}
		}

		if p.Tracked {
			for i := len(matches) - 1; i >= 0; i-- {
				p.trackMatch(ts, matches[i], subs[matches[i].Sub].Replace)
			}
		} else {
			leaves := make([]textpatch.Leaf, len(ts))
			for i, t := range ts {
				leaves[i] = textLeaf{t: t}
			}
			textpatch.Apply(leaves, subs)
		}

		if deleted && strings.TrimSpace(ParagraphText(para)) == "" {
			res.Emptied = append(res.Emptied, para)
		}
	}
	return res
}

func (p *Patcher) reserveIDs(root *etree.Element) {
	maxID := 0
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if v := e.SelectAttrValue("w:id", ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > maxID {
				maxID = n
			}
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	if p.nextID <= maxID {
		p.nextID = maxID + 1
	}
}

func (p *Patcher) revisionElement(tag string) *etree.Element {
	e := etree.NewElement(tag)
	e.CreateAttr("w:id", strconv.Itoa(p.nextID))
	e.CreateAttr("w:author", p.Author)
	e.CreateAttr("w:date", p.Date.UTC().Format(time.RFC3339))
	p.nextID++
	return e
}

// trackMatch marks the matched text as deleted and inserts the replacement
// after it. Segments are split from the right so earlier offsets stay valid.
func (p *Patcher) trackMatch(ts []*etree.Element, m textpatch.Match, replacement string) {
	var mids []*etree.Element
	for i := len(m.Segments) - 1; i >= 0; i-- {
		seg := m.Segments[i]
		if seg.End <= seg.Start {
			continue
		}
		if mid := splitRun(ts[seg.Leaf], seg.Start, seg.End); mid != nil {
			mids = append([]*etree.Element{mid}, mids...)
		}
	}
	if len(mids) == 0 {
		return
	}

	var rPr *etree.Element
	if first := childW(mids[0], "rPr"); first != nil {
		rPr = first.Copy()
	}

	var lastDel *etree.Element
	for _, group := range siblingGroups(mids) {
		del := p.revisionElement("w:del")
		parent := group[0].Parent()
		at := group[0].Index()
		for _, r := range group {
			parent.RemoveChild(r)
			if t := childW(r, "t"); t != nil {
				t.Tag = "delText"
			}
			del.AddChild(r)
		}
		parent.InsertChildAt(at, del)
		lastDel = del
	}

	if replacement == "" {
		return
	}
	ins := p.revisionElement("w:ins")
	run := ins.CreateElement("w:r")
	if rPr != nil {
		run.AddChild(rPr)
	}
	setText(run.CreateElement("w:t"), replacement)
	lastDel.Parent().InsertChildAt(lastDel.Index()+1, ins)
}

// siblingGroups partitions runs into maximal groups of adjacent element
// siblings under the same parent.
func siblingGroups(runs []*etree.Element) [][]*etree.Element {
	var groups [][]*etree.Element
	for _, r := range runs {
		if n := len(groups); n > 0 {
			prev := groups[n-1][len(groups[n-1])-1]
			if prev.Parent() == r.Parent() && nextElement(prev) == r {
				groups[n-1] = append(groups[n-1], r)
				continue
			}
		}
		groups = append(groups, []*etree.Element{r})
	}
	return groups
}

func nextElement(e *etree.Element) *etree.Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	for _, tok := range parent.Child[e.Index()+1:] {
		if el, ok := tok.(*etree.Element); ok {
			return el
		}
	}
	return nil
}

// splitRun isolates t's text[start:end] into its own run inserted after t's
// run and returns it. The original run keeps everything before the cut; the
// remainder moves to a trailing run with the same properties.
func splitRun(t *etree.Element, start, end int) *etree.Element {
	run := t.Parent()
	if run == nil || run.Parent() == nil {
		return nil
	}
	parent := run.Parent()
	text := t.Text()

	mid := runShell(run)
	setText(mid.CreateElement("w:t"), text[start:end])

	post := runShell(run)
	if suffix := text[end:]; suffix != "" {
		setText(post.CreateElement("w:t"), suffix)
	}
	for _, tok := range append([]etree.Token(nil), run.Child[t.Index()+1:]...) {
		run.RemoveChild(tok)
		post.AddChild(tok)
	}

	if start > 0 {
		setText(t, text[:start])
	} else {
		run.RemoveChild(t)
	}

	at := run.Index() + 1
	parent.InsertChildAt(at, mid)
	if hasContent(post) {
		parent.InsertChildAt(at+1, post)
	}
	if !hasContent(run) {
		parent.RemoveChild(run)
	}
	return mid
}

func runShell(run *etree.Element) *etree.Element {
	r := etree.NewElement(run.FullTag())
	for _, a := range run.Attr {
		r.CreateAttr(a.FullKey(), a.Value)
	}
	if rPr := childW(run, "rPr"); rPr != nil {
		r.AddChild(rPr.Copy())
	}
	return r
}

func hasContent(run *etree.Element) bool {
	for _, c := range run.ChildElements() {
		if !isW(c, "rPr") {
			return true
		}
	}
	return false
}

// RemoveParagraph detaches p from its parent.
func RemoveParagraph(p *etree.Element) {
	if parent := p.Parent(); parent != nil {
		parent.RemoveChild(p)
	}
}
