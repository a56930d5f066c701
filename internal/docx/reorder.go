package docx

import (
	"sort"

	"github.com/beevik/etree"
)

// Placement names a body paragraph by fingerprint. Key identifies the
// placement in results.
type Placement struct {
	Key         string
	Fingerprint string
}

// ReorderResult reports the outcome of ReorderParagraphs.
type ReorderResult struct {
	Moved     int
	Unmatched []string
}

// ReorderParagraphs permutes body-level paragraphs so that the paragraphs
// matched by placements appear in placement order, reusing the slots those
// paragraphs already occupy. Each paragraph is matched at most once; match
// decides whether a fingerprint identifies a paragraph's text.
func ReorderParagraphs(doc *etree.Document, placements []Placement, match func(fingerprint, text string) bool) ReorderResult {
	var res ReorderResult
	body := bodyOf(doc)
	if body == nil {
		for _, pl := range placements {
			res.Unmatched = append(res.Unmatched, pl.Key)
		}
		return res
	}

	type candidate struct {
		el   *etree.Element
		text string
		used bool
	}
	var candidates []*candidate
	for _, c := range body.ChildElements() {
		if isW(c, "p") {
			candidates = append(candidates, &candidate{el: c, text: ParagraphText(c)})
		}
	}

	var ordered []*etree.Element
	var slots []int
	for _, pl := range placements {
		var found *candidate
		for _, cand := range candidates {
			if !cand.used && match(pl.Fingerprint, cand.text) {
				found = cand
				break
			}
		}
		if found == nil {
			res.Unmatched = append(res.Unmatched, pl.Key)
			continue
		}
		found.used = true
		ordered = append(ordered, found.el)
		slots = append(slots, found.el.Index())
	}
	if len(ordered) < 2 {
		return res
	}

	sort.Ints(slots)
	for i, el := range ordered {
		if el.Index() != slots[i] {
			res.Moved++
		}
	}
	if res.Moved == 0 {
		return res
	}

	for i := len(slots) - 1; i >= 0; i-- {
		body.RemoveChildAt(slots[i])
	}
	for i, el := range ordered {
		body.InsertChildAt(slots[i], el)
	}
	return res
}

func bodyOf(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	return childW(root, "body")
}
