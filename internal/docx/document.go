package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const nsWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// transparent lists wrappers whose content belongs to the enclosing block,
// row or paragraph (content controls, custom XML, hyperlinks, tracked inserts).
var transparent = map[string]bool{
	"sdt":        true,
	"sdtContent": true,
	"customXml":  true,
	"hyperlink":  true,
	"smartTag":   true,
	"ins":        true,
	"moveTo":     true,
	"fldSimple":  true,
	"dir":        true,
	"bdo":        true,
}

// Document is one editable copy of a .docx package.
type Document struct {
	pkg  *pkg
	root *node
	body *node
	w    string

	media     *mediaRegistry
	mainDirty bool
}

// Open reads a .docx file from disk.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return OpenBytes(data)
}

// OpenBytes parses a .docx package held in memory. The returned document
// shares no state with data or with other documents opened from it.
func OpenBytes(data []byte) (*Document, error) {
	p, err := openPackage(data)
	if err != nil {
		return nil, err
	}

	raw, _ := p.get(documentPart)
	root, err := parseXML(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", documentPart, err)
	}

	docEl := root.rootElement()
	if docEl == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", documentPart)
	}
	w := docEl.namespacePrefix(nsWordML, "w")
	body := docEl.firstElement(w, "body")
	if body == nil {
		return nil, fmt.Errorf("failed to parse %s: missing body", documentPart)
	}

	return &Document{pkg: p, root: root, body: body, w: w}, nil
}

// wName returns the qualified WordprocessingML element name for local.
func (d *Document) wName(local string) string {
	return qualifiedName(xml.Name{Space: d.w, Local: local})
}

func (d *Document) isW(n *node, local string) bool {
	return n.is(d.w, local)
}

// collect returns the elements named in locals that sit directly under
// container, looking through transparent wrappers, in document order.
func (d *Document) collect(container *node, locals ...string) []*node {
	var out []*node
	stack := pushReversed(nil, container.children)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.kind != elementNode || c.name.Space != d.w {
			continue
		}
		if matchesLocal(c, locals) {
			out = append(out, c)
			continue
		}
		if transparent[c.name.Local] {
			stack = pushReversed(stack, c.children)
		}
	}
	return out
}

func pushReversed(stack, nodes []*node) []*node {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	return stack
}

func matchesLocal(n *node, locals []string) bool {
	for _, l := range locals {
		if n.name.Local == l {
			return true
		}
	}
	return false
}

// cells returns every cell of a table, row by row.
func (d *Document) cells(tbl *node) []*node {
	var out []*node
	for _, tr := range d.collect(tbl, "tr") {
		out = append(out, d.collect(tr, "tc")...)
	}
	return out
}

// eachParagraph visits every paragraph of the body, including paragraphs in
// table cells and in tables nested inside cells, in document order.
func (d *Document) eachParagraph(fn func(p *node)) {
	stack := []*node{d.body}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case d.isW(cur, "p"):
			fn(cur)
		case d.isW(cur, "tbl"):
			cells := d.cells(cur)
			for i := len(cells) - 1; i >= 0; i-- {
				stack = append(stack, cells[i])
			}
		default:
			blocks := d.collect(cur, "p", "tbl")
			for i := len(blocks) - 1; i >= 0; i-- {
				stack = append(stack, blocks[i])
			}
		}
	}
}

func (d *Document) runs(p *node) []*node {
	return d.collect(p, "r")
}

func (d *Document) textNodes(r *node) []*node {
	var out []*node
	for _, c := range r.children {
		if d.isW(c, "t") {
			out = append(out, c)
		}
	}
	return out
}

func (d *Document) runText(r *node) string {
	var sb strings.Builder
	for _, t := range d.textNodes(r) {
		sb.WriteString(t.textContent())
	}
	return sb.String()
}

func (d *Document) paragraphText(p *node) string {
	var sb strings.Builder
	for _, r := range d.runs(p) {
		sb.WriteString(d.runText(r))
	}
	return sb.String()
}

// Text returns the visible text of the document, one line per paragraph.
func (d *Document) Text() string {
	var lines []string
	d.eachParagraph(func(p *node) {
		lines = append(lines, d.paragraphText(p))
	})
	return strings.Join(lines, "\n")
}

// Contains reports whether s occurs within a single paragraph's text.
func (d *Document) Contains(s string) bool {
	found := false
	d.eachParagraph(func(p *node) {
		if !found && strings.Contains(d.paragraphText(p), s) {
			found = true
		}
	})
	return found
}

// PictureCount returns the number of inline drawings in the document body.
func (d *Document) PictureCount() int {
	count := 0
	d.body.walkElements(func(n *node) {
		if n.name.Local == "inline" || n.name.Local == "anchor" {
			count++
		}
	})
	return count
}

// XML returns the current serialized main document part.
func (d *Document) XML() []byte {
	return d.root.bytes()
}

// Part returns the raw content of a package part after pending edits are
// flushed.
func (d *Document) Part(name string) ([]byte, bool) {
	d.flush()
	return d.pkg.get(name)
}

func (d *Document) flush() {
	if d.mainDirty {
		d.pkg.put(documentPart, d.root.bytes())
	}
	if d.media != nil {
		d.media.flush(d.pkg)
	}
}

// Bytes serializes the whole package.
func (d *Document) Bytes() ([]byte, error) {
	d.flush()
	var buf bytes.Buffer
	if err := d.pkg.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path, creating parent directories as needed.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
