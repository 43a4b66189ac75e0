package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	imageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relationshipsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
	contentTypesNS        = "http://schemas.openxmlformats.org/package/2006/content-types"

	nsWPDrawing    = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsDrawingML    = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPicture      = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsOfficeDocRel = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	emuPerInch = 914400

	// DefaultImageWidth is the picture width in inches when none is given.
	DefaultImageWidth = 1.0
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

var imageExtensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
}

type picture struct {
	relID     string
	name      string
	widthEMU  int64
	heightEMU int64
}

type embeddedMedia struct {
	relID  string
	name   string
	width  int
	height int
}

// mediaRegistry tracks the package parts touched by picture insertion.
type mediaRegistry struct {
	rels         *node
	contentTypes *node
	byPath       map[string]*embeddedMedia
	nextDocPrID  int
	dirty        bool
}

func (d *Document) registry() (*mediaRegistry, error) {
	if d.media != nil {
		return d.media, nil
	}

	rels, err := d.partTree(documentRelsPart,
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
			`<Relationships xmlns="`+relationshipsNS+`"></Relationships>`)
	if err != nil {
		return nil, err
	}
	ct, err := d.partTree(contentTypesPart,
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
			`<Types xmlns="`+contentTypesNS+`"></Types>`)
	if err != nil {
		return nil, err
	}

	maxID := 0
	d.root.walkElements(func(n *node) {
		if n.name.Local != "docPr" {
			return
		}
		if v, ok := n.attrValue("id"); ok {
			if id, err := strconv.Atoi(v); err == nil && id > maxID {
				maxID = id
			}
		}
	})

	d.media = &mediaRegistry{
		rels:         rels,
		contentTypes: ct,
		byPath:       make(map[string]*embeddedMedia),
		nextDocPrID:  maxID + 1,
	}
	return d.media, nil
}

func (d *Document) partTree(name, fallback string) (*node, error) {
	raw, ok := d.pkg.get(name)
	if !ok {
		raw = []byte(fallback)
	}
	tree, err := parseXML(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if tree.rootElement() == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", name)
	}
	return tree, nil
}

func (m *mediaRegistry) flush(p *pkg) {
	if !m.dirty {
		return
	}
	p.put(documentRelsPart, m.rels.bytes())
	p.put(contentTypesPart, m.contentTypes.bytes())
	m.dirty = false
}

// embedPicture stores the image as a media part (once per path) and returns
// the sizing for an inline drawing of widthInches.
func (d *Document) embedPicture(imagePath string, widthInches float64) (*picture, error) {
	reg, err := d.registry()
	if err != nil {
		return nil, err
	}
	if widthInches <= 0 {
		widthInches = DefaultImageWidth
	}

	media, ok := reg.byPath[imagePath]
	if !ok {
		media, err = d.addMedia(reg, imagePath)
		if err != nil {
			return nil, err
		}
		reg.byPath[imagePath] = media
	}

	cx := int64(widthInches * emuPerInch)
	cy := cx
	if media.width > 0 {
		cy = cx * int64(media.height) / int64(media.width)
	}
	return &picture{relID: media.relID, name: media.name, widthEMU: cx, heightEMU: cy}, nil
}

func (d *Document) addMedia(reg *mediaRegistry, imagePath string) (*embeddedMedia, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", imagePath, err)
	}
	contentType, ok := imageContentTypes[format]
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q: %s", format, imagePath)
	}
	ext := imageExtensions[format]

	name := ""
	for i := len(reg.byPath) + 1; ; i++ {
		name = fmt.Sprintf("acta_image%d.%s", i, ext)
		if !d.pkg.has("word/media/" + name) {
			break
		}
	}
	d.pkg.put("word/media/"+name, data)

	relID := nextRelationshipID(reg.rels.rootElement())
	rel := newElement("", "Relationship",
		attr("", "Id", relID),
		attr("", "Type", imageRelationshipType),
		attr("", "Target", path.Join("media", name)),
	)
	reg.rels.rootElement().appendChild(rel)

	ensureDefaultContentType(reg.contentTypes.rootElement(), ext, contentType)
	reg.dirty = true

	return &embeddedMedia{
		relID:  relID,
		name:   filepath.Base(imagePath),
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

// nextRelationshipID returns rId<max+1> over the existing relationships.
func nextRelationshipID(rels *node) string {
	maxID := 0
	for _, c := range rels.children {
		if c.kind != elementNode {
			continue
		}
		id, _ := c.attrValue("Id")
		if strings.HasPrefix(id, "rId") {
			if n, err := strconv.Atoi(id[3:]); err == nil && n > maxID {
				maxID = n
			}
		}
	}
	return fmt.Sprintf("rId%d", maxID+1)
}

func ensureDefaultContentType(types *node, ext, contentType string) {
	for _, c := range types.children {
		if c.kind != elementNode || c.name.Local != "Default" {
			continue
		}
		if v, _ := c.attrValue("Extension"); strings.EqualFold(v, ext) {
			return
		}
	}
	types.insertAt(0, newElement("", "Default",
		attr("", "Extension", ext),
		attr("", "ContentType", contentType),
	))
}

// pictureRun builds a w:r holding an inline DrawingML picture. Drawing
// namespaces are declared on the elements that use them so the fragment is
// valid whatever the template root declares.
func (d *Document) pictureRun(pic *picture) (*node, error) {
	reg, err := d.registry()
	if err != nil {
		return nil, err
	}
	id := reg.nextDocPrID
	reg.nextDocPrID++

	fragment := fmt.Sprintf(
		`<%[1]s><%[11]s>`+
			`<wp:inline xmlns:wp="%[2]s" distT="0" distB="0" distL="0" distR="0">`+
			`<wp:extent cx="%[3]d" cy="%[4]d"/>`+
			`<wp:docPr id="%[5]d" name="Picture %[5]d"/>`+
			`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="%[6]s" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
			`<a:graphic xmlns:a="%[6]s"><a:graphicData uri="%[7]s">`+
			`<pic:pic xmlns:pic="%[7]s">`+
			`<pic:nvPicPr><pic:cNvPr id="0" name="%[8]s"/><pic:cNvPicPr/></pic:nvPicPr>`+
			`<pic:blipFill><a:blip xmlns:r="%[9]s" r:embed="%[10]s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
			`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[3]d" cy="%[4]d"/></a:xfrm>`+
			`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
			`</pic:pic></a:graphicData></a:graphic></wp:inline>`+
			`</%[11]s></%[1]s>`,
		d.wName("r"), nsWPDrawing, pic.widthEMU, pic.heightEMU, id, nsDrawingML, nsPicture,
		escapeAttr(pic.name), nsOfficeDocRel, pic.relID, d.wName("drawing"),
	)

	nodes, err := parseFragment(fragment)
	if err != nil {
		return nil, fmt.Errorf("failed to build picture run: %w", err)
	}
	return nodes[0], nil
}
