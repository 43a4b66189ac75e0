package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type nodeKind int

const (
	documentNode nodeKind = iota
	elementNode
	textNode
	procInstNode
	commentNode
	directiveNode
)

// node is a prefix-preserving XML tree. Names keep the raw prefix in
// Name.Space (decoded with RawToken), so writing the tree back reproduces the
// original qualified names without namespace rewriting.
type node struct {
	kind     nodeKind
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	parent   *node
	data     string
}

func parseXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{kind: documentNode}
	cur := root

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{kind: elementNode, name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			cur.appendChild(n)
			cur = n
		case xml.EndElement:
			if cur == root || cur.name != t.Name {
				return nil, fmt.Errorf("failed to parse xml: unexpected </%s>", qualifiedName(t.Name))
			}
			cur = cur.parent
		case xml.CharData:
			cur.appendChild(&node{kind: textNode, data: string(t)})
		case xml.Comment:
			cur.appendChild(&node{kind: commentNode, data: string(t)})
		case xml.ProcInst:
			cur.appendChild(&node{kind: procInstNode, name: xml.Name{Local: t.Target}, data: string(t.Inst)})
		case xml.Directive:
			cur.appendChild(&node{kind: directiveNode, data: string(t)})
		}
	}

	if cur != root {
		return nil, fmt.Errorf("failed to parse xml: unclosed <%s>", qualifiedName(cur.name))
	}
	return root, nil
}

// parseFragment parses a sequence of sibling elements.
func parseFragment(s string) ([]*node, error) {
	doc, err := parseXML([]byte(s))
	if err != nil {
		return nil, err
	}
	nodes := doc.children
	for _, n := range nodes {
		n.parent = nil
	}
	return nodes, nil
}

func (n *node) bytes() []byte {
	var buf bytes.Buffer
	n.write(&buf)
	return buf.Bytes()
}

func (n *node) write(buf *bytes.Buffer) {
	switch n.kind {
	case documentNode:
		for _, c := range n.children {
			c.write(buf)
		}
	case elementNode:
		buf.WriteByte('<')
		buf.WriteString(qualifiedName(n.name))
		for _, a := range n.attrs {
			buf.WriteByte(' ')
			buf.WriteString(qualifiedName(a.Name))
			buf.WriteString(`="`)
			buf.WriteString(escapeAttr(a.Value))
			buf.WriteByte('"')
		}
		if len(n.children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for _, c := range n.children {
			c.write(buf)
		}
		buf.WriteString("</")
		buf.WriteString(qualifiedName(n.name))
		buf.WriteByte('>')
	case textNode:
		buf.WriteString(escapeText(n.data))
	case procInstNode:
		buf.WriteString("<?")
		buf.WriteString(n.name.Local)
		if n.data != "" {
			buf.WriteByte(' ')
			buf.WriteString(n.data)
		}
		buf.WriteString("?>")
	case commentNode:
		buf.WriteString("<!--")
		buf.WriteString(n.data)
		buf.WriteString("-->")
	case directiveNode:
		buf.WriteString("<!")
		buf.WriteString(n.data)
		buf.WriteByte('>')
	}
}

func newElement(prefix, local string, attrs ...xml.Attr) *node {
	return &node{kind: elementNode, name: xml.Name{Space: prefix, Local: local}, attrs: attrs}
}

func attr(prefix, local, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: value}
}

func (n *node) is(prefix, local string) bool {
	return n.kind == elementNode && n.name.Space == prefix && n.name.Local == local
}

func (n *node) appendChild(c *node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *node) insertAt(i int, nodes ...*node) {
	for _, c := range nodes {
		c.parent = n
	}
	rest := append([]*node(nil), n.children[i:]...)
	n.children = append(append(n.children[:i], nodes...), rest...)
}

func (n *node) indexOf(c *node) int {
	for i, child := range n.children {
		if child == c {
			return i
		}
	}
	return -1
}

func (n *node) removeChild(c *node) {
	if i := n.indexOf(c); i >= 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
		c.parent = nil
	}
}

// firstElement returns the first child element with the given name.
func (n *node) firstElement(prefix, local string) *node {
	for _, c := range n.children {
		if c.is(prefix, local) {
			return c
		}
	}
	return nil
}

// rootElement returns the first element child of a document node.
func (n *node) rootElement() *node {
	for _, c := range n.children {
		if c.kind == elementNode {
			return c
		}
	}
	return nil
}

// attrValue matches on the local name only; OPC parts use unprefixed attributes.
func (n *node) attrValue(local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) setAttr(prefix, local, value string) {
	for i, a := range n.attrs {
		if a.Name.Space == prefix && a.Name.Local == local {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, attr(prefix, local, value))
}

// textContent concatenates the character data directly under n.
func (n *node) textContent() string {
	var sb strings.Builder
	for _, c := range n.children {
		if c.kind == textNode {
			sb.WriteString(c.data)
		}
	}
	return sb.String()
}

func (n *node) setTextContent(s string) {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
	if s != "" {
		n.appendChild(&node{kind: textNode, data: s})
	}
}

func (n *node) clone() *node {
	c := &node{kind: n.kind, name: n.name, data: n.data, attrs: append([]xml.Attr(nil), n.attrs...)}
	for _, child := range n.children {
		c.appendChild(child.clone())
	}
	return c
}

// walkElements visits every element below n in document order.
func (n *node) walkElements(fn func(*node)) {
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.kind == elementNode {
			fn(cur)
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i])
		}
	}
}

// namespacePrefix returns the prefix bound to uri on n, or fallback. A
// default namespace binding yields "".
func (n *node) namespacePrefix(uri, fallback string) string {
	for _, a := range n.attrs {
		if a.Value != uri {
			continue
		}
		switch {
		case a.Name.Space == "xmlns":
			return a.Name.Local
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			return ""
		}
	}
	return fallback
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
