package docx

import (
	"strings"
)

// SubstituteText replaces token with value in every run that holds the whole
// token, at body level and in table cells at any nesting depth. Run
// properties are untouched. It returns the number of runs changed; zero
// means the token was not found in one piece and the document is unchanged.
func (d *Document) SubstituteText(token, value string) int {
	if token == "" {
		return 0
	}

	changed := 0
	d.eachParagraph(func(p *node) {
		if !strings.Contains(d.paragraphText(p), token) {
			return
		}
		for _, r := range d.runs(p) {
			if d.replaceInRun(r, token, value) {
				changed++
			}
		}
	})
	if changed > 0 {
		d.mainDirty = true
	}
	return changed
}

func (d *Document) replaceInRun(r *node, token, value string) bool {
	texts := d.textNodes(r)
	if len(texts) == 0 || !strings.Contains(d.runText(r), token) {
		return false
	}

	var touched []*node
	for _, t := range texts {
		s := t.textContent()
		if strings.Contains(s, token) {
			d.setRunText(t, strings.ReplaceAll(s, token, value))
			touched = append(touched, t)
		}
	}

	if len(touched) == 0 {
		// The token spans adjacent w:t elements of the same run: fold each
		// such group into its first element. A w:br or w:tab between them
		// splits the token.
		for _, group := range d.textGroups(r) {
			if len(group) < 2 {
				continue
			}
			var sb strings.Builder
			for _, t := range group {
				sb.WriteString(t.textContent())
			}
			if !strings.Contains(sb.String(), token) {
				continue
			}
			for _, t := range group[1:] {
				r.removeChild(t)
			}
			d.setRunText(group[0], strings.ReplaceAll(sb.String(), token, value))
			touched = append(touched, group[0])
		}
		if len(touched) == 0 {
			return false
		}
	}

	for _, t := range touched {
		d.expandControlChars(r, t)
	}
	return true
}

// textGroups splits the w:t children of r into runs of siblings with no
// other element between them.
func (d *Document) textGroups(r *node) [][]*node {
	var groups [][]*node
	var cur []*node
	for _, c := range r.children {
		if c.kind != elementNode {
			continue
		}
		if d.isW(c, "t") {
			cur = append(cur, c)
			continue
		}
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func (d *Document) setRunText(t *node, s string) {
	t.setTextContent(s)
	t.setAttr("xml", "space", "preserve")
}

// expandControlChars turns line feeds and tabs inside a w:t into w:br and
// w:tab siblings, as Word does when typing them.
func (d *Document) expandControlChars(r, t *node) {
	s := t.textContent()
	if !strings.ContainsAny(s, "\n\t") {
		return
	}

	var nodes []*node
	var seg strings.Builder
	emit := func() {
		if seg.Len() == 0 {
			return
		}
		nt := newElement(d.w, "t", attr("xml", "space", "preserve"))
		nt.setTextContent(seg.String())
		nodes = append(nodes, nt)
		seg.Reset()
	}
	for _, ch := range strings.ReplaceAll(s, "\r\n", "\n") {
		switch ch {
		case '\n':
			emit()
			nodes = append(nodes, newElement(d.w, "br"))
		case '\t':
			emit()
			nodes = append(nodes, newElement(d.w, "tab"))
		default:
			seg.WriteRune(ch)
		}
	}
	emit()

	i := r.indexOf(t)
	r.removeChild(t)
	r.insertAt(i, nodes...)
}

// SubstituteImage replaces every container whose visible text holds token
// with a single inline picture of widthInches (height follows the image
// aspect ratio). Body paragraphs are cleared in place; table cells matching
// through their own paragraphs are emptied to one paragraph. Cells that do
// not match are searched for nested tables. The image is read only when a
// match exists; no match leaves the document unchanged.
func (d *Document) SubstituteImage(token, imagePath string, widthInches float64) (int, error) {
	if token == "" {
		return 0, nil
	}

	paragraphs, cells := d.imageTargets(token)
	if len(paragraphs) == 0 && len(cells) == 0 {
		return 0, nil
	}

	pic, err := d.embedPicture(imagePath, widthInches)
	if err != nil {
		return 0, err
	}

	for _, p := range paragraphs {
		d.clearParagraph(p)
		run, err := d.pictureRun(pic)
		if err != nil {
			return 0, err
		}
		p.appendChild(run)
	}
	for _, tc := range cells {
		p := d.clearCell(tc)
		run, err := d.pictureRun(pic)
		if err != nil {
			return 0, err
		}
		p.appendChild(run)
	}

	d.mainDirty = true
	return len(paragraphs) + len(cells), nil
}

// imageTargets collects matches before any mutation so clearing one
// container cannot disturb the traversal.
func (d *Document) imageTargets(token string) (paragraphs, cells []*node) {
	stack := pushReversed(nil, d.collect(d.body, "p", "tbl"))
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case d.isW(cur, "p"):
			if strings.Contains(d.paragraphText(cur), token) {
				paragraphs = append(paragraphs, cur)
			}
		case d.isW(cur, "tbl"):
			stack = pushReversed(stack, d.cells(cur))
		case d.isW(cur, "tc"):
			blocks := d.collect(cur, "p", "tbl")
			matched := false
			for _, b := range blocks {
				if d.isW(b, "p") && strings.Contains(d.paragraphText(b), token) {
					matched = true
					break
				}
			}
			if matched {
				cells = append(cells, cur)
				continue
			}
			var nested []*node
			for _, b := range blocks {
				if d.isW(b, "tbl") {
					nested = append(nested, b)
				}
			}
			stack = pushReversed(stack, nested)
		}
	}
	return paragraphs, cells
}

func (d *Document) clearParagraph(p *node) {
	var kept []*node
	for _, c := range p.children {
		if d.isW(c, "pPr") {
			kept = append(kept, c)
			continue
		}
		c.parent = nil
	}
	p.children = kept
}

// clearCell empties a table cell down to one paragraph that keeps the
// formatting of the cell's first paragraph, and returns that paragraph.
func (d *Document) clearCell(tc *node) *node {
	var pPr *node
	if ps := d.collect(tc, "p"); len(ps) > 0 {
		if props := ps[0].firstElement(d.w, "pPr"); props != nil {
			pPr = props.clone()
		}
	}

	var kept []*node
	for _, c := range tc.children {
		if d.isW(c, "tcPr") {
			kept = append(kept, c)
			continue
		}
		c.parent = nil
	}
	tc.children = kept

	p := newElement(d.w, "p")
	if pPr != nil {
		p.appendChild(pPr)
	}
	tc.appendChild(p)
	return p
}
