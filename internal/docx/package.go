package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

type part struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

// pkg is the in-memory OPC zip container. Part order and compression
// settings of the source archive are kept so unchanged parts round-trip.
type pkg struct {
	parts    []*part
	index    map[string]*part
	modified time.Time
}

func openPackage(data []byte) (*pkg, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	p := &pkg{index: make(map[string]*part)}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}

		pt := &part{name: f.Name, method: f.Method, modified: f.Modified, data: content}
		p.parts = append(p.parts, pt)
		p.index[f.Name] = pt
		if f.Name == documentPart {
			p.modified = f.Modified
		}
	}

	if _, ok := p.index[documentPart]; !ok {
		return nil, fmt.Errorf("not a valid DOCX file: missing %s", documentPart)
	}
	return p, nil
}

func (p *pkg) get(name string) ([]byte, bool) {
	pt, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return pt.data, true
}

func (p *pkg) has(name string) bool {
	_, ok := p.index[name]
	return ok
}

func (p *pkg) put(name string, data []byte) {
	if pt, ok := p.index[name]; ok {
		pt.data = data
		return
	}
	pt := &part{name: name, method: zip.Deflate, modified: p.modified, data: data}
	p.parts = append(p.parts, pt)
	p.index[name] = pt
}

func (p *pkg) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, pt := range p.parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     pt.name,
			Method:   pt.method,
			Modified: pt.modified,
		})
		if err != nil {
			return fmt.Errorf("failed to create part %s: %w", pt.name, err)
		}
		if _, err := fw.Write(pt.data); err != nil {
			return fmt.Errorf("failed to write part %s: %w", pt.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip file: %w", err)
	}
	return nil
}
