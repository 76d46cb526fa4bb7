package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

type NodeKind uint8

const (
	ElementNode NodeKind = iota + 1
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Node is one node of a parsed feed. Element and attribute names are kept
// exactly as written, prefix included, so the document re-serializes with
// the same namespace declarations it was read with.
type Node struct {
	Kind     NodeKind
	Name     string
	Attr     []xml.Attr
	Target   string
	Data     []byte
	Children []*Node
}

// Document is a parsed feed. Prolog and Epilog hold the comments,
// processing instructions and directives around the root element.
type Document struct {
	Prolog []*Node
	Root   *Node
	Epilog []*Node
}

// Child returns the first child element called name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child element called name, in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var ret []*Node
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Name == name {
			ret = append(ret, c)
		}
	}
	return ret
}

// Text concatenates the node's direct text children.
func (n *Node) Text() string {
	var buf bytes.Buffer
	for _, c := range n.Children {
		if c.Kind == TextNode {
			buf.Write(c.Data)
		}
	}
	return buf.String()
}

// SetText replaces all children with a single text node.
func (n *Node) SetText(s string) {
	n.Children = []*Node{{Kind: TextNode, Data: []byte(s)}}
}

// Items returns rss > channel > item as a list, whether the channel holds
// none, one or many items.
func (d *Document) Items() []*Node {
	if d.Root == nil || d.Root.Name != "rss" {
		return nil
	}
	channel := d.Root.Child("channel")
	if channel == nil {
		return nil
	}
	return channel.ChildrenNamed("item")
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Parse reads a well-formed XML document. A leading UTF-8 byte order mark is
// skipped. Character sets other than UTF-8 are converted when the declaration
// names one.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	dec.Entity = xml.HTMLEntity

	doc := &Document{}
	var stack []*Node

	place := func(n *Node) {
		switch {
		case len(stack) > 0:
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
		case doc.Root == nil:
			doc.Prolog = append(doc.Prolog, n)
		default:
			doc.Epilog = append(doc.Epilog, n)
		}
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Kind: ElementNode, Name: rawName(t.Name), Attr: rawAttrs(t.Attr)}
			if len(stack) == 0 {
				if doc.Root != nil {
					return nil, fmt.Errorf("second root element <%s> after <%s>", n.Name, doc.Root.Name)
				}
				doc.Root = n
			} else {
				place(n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			name := rawName(t.Name)
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element </%s>", name)
			}
			if top := stack[len(stack)-1]; top.Name != name {
				return nil, fmt.Errorf("element <%s> closed by </%s>", top.Name, name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, errors.New("text outside the root element")
				}
				continue
			}
			place(&Node{Kind: TextNode, Data: bytes.Clone(t)})
		case xml.Comment:
			place(&Node{Kind: CommentNode, Data: bytes.Clone(t)})
		case xml.ProcInst:
			// The declaration is always rewritten on output.
			if t.Target == "xml" {
				continue
			}
			place(&Node{Kind: ProcInstNode, Target: t.Target, Data: bytes.Clone(t.Inst)})
		case xml.Directive:
			place(&Node{Kind: DirectiveNode, Data: bytes.Clone(t)})
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("document ends inside <%s>", stack[len(stack)-1].Name)
	}
	if doc.Root == nil {
		return nil, errors.New("no root element")
	}
	return doc, nil
}

// Encode serializes the document as UTF-8 with a fresh XML declaration.
func (d *Document) Encode() ([]byte, error) {
	if d.Root == nil {
		return nil, errors.New("document has no root element")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	for _, n := range d.Prolog {
		if err := encodeNode(enc, n); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(xml.CharData("\n")); err != nil {
			return nil, err
		}
	}
	if err := encodeNode(enc, d.Root); err != nil {
		return nil, err
	}
	for _, n := range d.Epilog {
		if err := enc.EncodeToken(xml.CharData("\n")); err != nil {
			return nil, err
		}
		if err := encodeNode(enc, n); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(enc *xml.Encoder, n *Node) error {
	switch n.Kind {
	case ElementNode:
		start := xml.StartElement{Name: xml.Name{Local: n.Name}, Attr: n.Attr}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := encodeNode(enc, c); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	case TextNode:
		return enc.EncodeToken(xml.CharData(n.Data))
	case CommentNode:
		return enc.EncodeToken(xml.Comment(n.Data))
	case ProcInstNode:
		return enc.EncodeToken(xml.ProcInst{Target: n.Target, Inst: n.Data})
	case DirectiveNode:
		return enc.EncodeToken(xml.Directive(n.Data))
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

func rawName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func rawAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}
	ret := make([]xml.Attr, len(attrs))
	for i, a := range attrs {
		ret[i] = xml.Attr{Name: xml.Name{Local: rawName(a.Name)}, Value: a.Value}
	}
	return ret
}
