package docx

import (
	"time"

	"github.com/beevik/etree"
)

const (
	dctermsNS = "http://purl.org/dc/terms/"
	xsiNS     = "http://www.w3.org/2001/XMLSchema-instance"
)

// SetCoreProperties stamps cp:lastModifiedBy and dcterms:modified.
func SetCoreProperties(doc *etree.Document, author string, modified time.Time) {
	root := doc.Root()
	if root == nil {
		return
	}

	by := coreChild(root, "lastModifiedBy")
	if by == nil {
		by = root.CreateElement("cp:lastModifiedBy")
	}
	by.SetText(author)

	mod := coreChild(root, "modified")
	if mod == nil {
		if root.SelectAttr("xmlns:dcterms") == nil {
			root.CreateAttr("xmlns:dcterms", dctermsNS)
		}
		if root.SelectAttr("xmlns:xsi") == nil {
			root.CreateAttr("xmlns:xsi", xsiNS)
		}
		mod = root.CreateElement("dcterms:modified")
		mod.CreateAttr("xsi:type", "dcterms:W3CDTF")
	}
	mod.SetText(modified.UTC().Format(time.RFC3339))
}

func coreChild(root *etree.Element, tag string) *etree.Element {
	for _, c := range root.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}
