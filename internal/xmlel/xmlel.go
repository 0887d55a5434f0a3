// Package xmlel is a small declarative XML element tree. Dialects
// build trees with El/Child/Text and render them in one pass; Parse
// reads a rendered document back for round-trip checks.
package xmlel

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Attr is one attribute on an element.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of the tree. An element carries either text or
// children; mixing both is not supported.
type Element struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// El creates an element with optional attributes given as
// name/value pairs.
func El(name string, attrPairs ...string) *Element {
	e := &Element{Name: name}
	for i := 0; i+1 < len(attrPairs); i += 2 {
		e.Attrs = append(e.Attrs, Attr{Name: attrPairs[i], Value: attrPairs[i+1]})
	}
	return e
}

// Child appends children and returns the receiver for chaining.
func (e *Element) Child(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// TextEl creates a leaf element holding text.
func TextEl(name, text string) *Element {
	return &Element{Name: name, Text: text}
}

// ChildText appends a text leaf when text is non-empty, and returns
// the receiver. Optional schema elements drop out naturally.
func (e *Element) ChildText(name, text string) *Element {
	if text != "" {
		e.Children = append(e.Children, TextEl(name, text))
	}
	return e
}

// MustChildText appends a text leaf even when text is empty, for
// schema positions that require the element to exist.
func (e *Element) MustChildText(name, text string) *Element {
	e.Children = append(e.Children, TextEl(name, text))
	return e
}

// RenderOptions controls document rendering.
type RenderOptions struct {
	Indent      string // empty = two spaces
	Declaration bool
}

// DefaultRenderOptions returns an indented UTF-8 document with the
// XML declaration.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Indent: "  ", Declaration: true}
}

// Render serializes the tree to UTF-8 bytes.
func (e *Element) Render(opts RenderOptions) ([]byte, error) {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	var buf bytes.Buffer
	if opts.Declaration {
		buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	}
	if err := e.write(&buf, 0, indent); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func (e *Element) write(buf *bytes.Buffer, depth int, indent string) error {
	pad := strings.Repeat(indent, depth)
	buf.WriteString(pad + "<" + e.Name)
	for _, a := range e.Attrs {
		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(a.Value)); err != nil {
			return fmt.Errorf("escaping attribute %s: %w", a.Name, err)
		}
		buf.WriteString(fmt.Sprintf(" %s=%q", a.Name, escaped.String()))
	}

	switch {
	case len(e.Children) > 0:
		buf.WriteString(">\n")
		for _, c := range e.Children {
			if err := c.write(buf, depth+1, indent); err != nil {
				return err
			}
			buf.WriteString("\n")
		}
		buf.WriteString(pad + "</" + e.Name + ">")
	case e.Text != "":
		buf.WriteString(">")
		if err := xml.EscapeText(buf, []byte(e.Text)); err != nil {
			return fmt.Errorf("escaping text of %s: %w", e.Name, err)
		}
		buf.WriteString("</" + e.Name + ">")
	default:
		buf.WriteString("/>")
	}
	return nil
}

// Parse reads an XML document produced by Render back into a tree.
// Whitespace-only character data between elements is dropped.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: qname(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qname(a.Name), Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			} else {
				return nil, fmt.Errorf("multiple root elements")
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", qname(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(stack) == 0 {
				continue
			}
			stack[len(stack)-1].Text += text
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

func qname(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}
