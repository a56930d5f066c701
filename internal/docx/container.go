// Package docx reads and rewrites WordprocessingML containers in memory.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
)

const (
	MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	relsPart         = "_rels/.rels"
	defaultMainPart  = "word/document.xml"
	corePropsPart    = "docProps/core.xml"
	relTypeOfficeDoc = "/officeDocument"
	relTypeFootnotes = "/footnotes"
	relTypeEndnotes  = "/endnotes"
	relTypeCoreProps = "/metadata/core-properties"
)

var (
	// ErrNotContainer is returned when the bytes are not a readable zip package.
	ErrNotContainer = errors.New("not a docx container")
	// ErrPartTooLarge is returned when a part decompresses beyond the configured bound.
	ErrPartTooLarge = errors.New("docx part too large")
	// ErrPartMissing is returned when a required part does not exist.
	ErrPartMissing = errors.New("docx part missing")
)

// Container is an opened package. Parts are parsed on first access and only
// parts marked dirty are re-serialized; every other entry is copied raw.
type Container struct {
	files    []*zip.File
	byName   map[string]*zip.File
	parsed   map[string]*etree.Document
	dirty    map[string]bool
	maxPart  int64
	mainPart string
}

// Open reads a container from data. maxPartBytes bounds the decompressed size
// of any single part; zero disables the bound.
func Open(data []byte, maxPartBytes int64) (*Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	c := &Container{
		byName:  make(map[string]*zip.File, len(zr.File)),
		parsed:  make(map[string]*etree.Document),
		dirty:   make(map[string]bool),
		maxPart: maxPartBytes,
	}
	for _, f := range zr.File {
		if !isSafePath(f.Name) {
			return nil, fmt.Errorf("%w: unsafe entry %q", ErrNotContainer, f.Name)
		}
		c.files = append(c.files, f)
		c.byName[f.Name] = f
	}
	c.mainPart = c.resolveMainPart()
	if _, ok := c.byName[c.mainPart]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartMissing, c.mainPart)
	}
	return c, nil
}

// isSafePath rejects absolute entries and entries with ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// Has reports whether the container holds a part.
func (c *Container) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// MainPart returns the name of the main document part.
func (c *Container) MainPart() string {
	return c.mainPart
}

// NotesParts returns the footnotes and endnotes parts that exist.
func (c *Container) NotesParts() []string {
	var parts []string
	for _, relType := range []string{relTypeFootnotes, relTypeEndnotes} {
		for _, target := range c.relationshipTargets(relsPathFor(c.mainPart), relType, path.Dir(c.mainPart)) {
			if c.Has(target) {
				parts = append(parts, target)
			}
		}
	}
	return parts
}

// CorePropertiesPart returns the core properties part name, or "" if absent.
func (c *Container) CorePropertiesPart() string {
	for _, target := range c.relationshipTargets(relsPart, relTypeCoreProps, "") {
		if c.Has(target) {
			return target
		}
	}
	if c.Has(corePropsPart) {
		return corePropsPart
	}
	return ""
}

// Part returns the parsed XML of a part.
func (c *Container) Part(name string) (*etree.Document, error) {
	if doc, ok := c.parsed[name]; ok {
		return doc, nil
	}
	f, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartMissing, name)
	}
	data, err := c.read(f)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	c.parsed[name] = doc
	return doc, nil
}

// MarkDirty schedules a parsed part for re-serialization.
func (c *Container) MarkDirty(name string) {
	c.dirty[name] = true
}

func (c *Container) read(f *zip.File) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() {
		err = multierr.Append(err, rc.Close())
	}()

	var r io.Reader = rc
	if c.maxPart > 0 {
		r = io.LimitReader(rc, c.maxPart+1)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if c.maxPart > 0 && int64(len(data)) > c.maxPart {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrPartTooLarge, f.Name, c.maxPart)
	}
	return data, nil
}

// Bytes repackages the container, preserving entry order and headers.
func (c *Container) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range c.files {
		if !c.dirty[f.Name] {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		header := f.FileHeader
		header.CompressedSize64 = 0
		header.UncompressedSize64 = 0
		header.CRC32 = 0
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(&header)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := c.parsed[f.Name].WriteTo(w); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close container: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Container) resolveMainPart() string {
	for _, target := range c.relationshipTargets(relsPart, relTypeOfficeDoc, "") {
		if c.Has(target) {
			return target
		}
	}
	return defaultMainPart
}

func relsPathFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// relationshipTargets returns the targets of relationships in relsName whose
// type ends with typeSuffix, resolved against baseDir.
func (c *Container) relationshipTargets(relsName, typeSuffix, baseDir string) []string {
	if !c.Has(relsName) {
		return nil
	}
	doc, err := c.Part(relsName)
	if err != nil || doc.Root() == nil {
		return nil
	}
	var targets []string
	for _, rel := range doc.Root().SelectElements("Relationship") {
		if !strings.HasSuffix(rel.SelectAttrValue("Type", ""), typeSuffix) {
			continue
		}
		if rel.SelectAttrValue("TargetMode", "") == "External" {
			continue
		}
		target := rel.SelectAttrValue("Target", "")
		if target == "" {
			continue
		}
		if strings.HasPrefix(target, "/") {
			targets = append(targets, strings.TrimPrefix(target, "/"))
			continue
		}
		targets = append(targets, path.Clean(path.Join(baseDir, target)))
	}
	return targets
}
