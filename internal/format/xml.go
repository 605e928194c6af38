package format

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// XMLCodec reads and writes the XML rendition of the element tree.
//
// Names are kept exactly as written (prefix included); namespace
// declarations are ordinary attributes. This keeps unknown elements
// byte-stable across a load/save cycle.
//
// Mixed content is not kept in order: the text segments of an element are
// joined and written before its children. Comments and processing
// instructions are dropped, and CDATA sections come back as escaped text.
// Elements holding either text or children, which is all the format
// writes, round-trip exactly.
type XMLCodec struct {
	// Indent pretty-prints the output with two-space indentation.
	Indent bool
}

// Name implements Codec.
func (c *XMLCodec) Name() string { return "xml" }

// Decode implements Codec.
func (c *XMLCodec) Decode(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		stack []*Element
		texts []strings.Builder
		root  *Element
	)

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: rawName(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: rawName(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			texts = append(texts, strings.Builder{})

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected </%s>", ErrMalformed, rawName(t.Name))
			}
			el := stack[len(stack)-1]
			if el.Name != rawName(t.Name) {
				return nil, fmt.Errorf("%w: <%s> closed by </%s>", ErrMalformed, el.Name, rawName(t.Name))
			}
			text := texts[len(texts)-1].String()
			if len(el.Children) == 0 || strings.TrimSpace(text) != "" {
				el.Text = text
			}
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]

		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unclosed <%s>", ErrMalformed, stack[len(stack)-1].Name)
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

// Encode implements Codec.
func (c *XMLCodec) Encode(w io.Writer, root *Element) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	if err := c.writeElement(bw, root, 0); err != nil {
		return err
	}
	if c.Indent {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (c *XMLCodec) writeElement(w *bufio.Writer, el *Element, depth int) error {
	if c.Indent && depth > 0 {
		w.WriteByte('\n')
		w.WriteString(strings.Repeat("  ", depth))
	}
	w.WriteByte('<')
	w.WriteString(el.Name)
	for _, a := range el.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(a.Value)); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	if len(el.Children) == 0 && el.Text == "" {
		_, err := w.WriteString("/>")
		return err
	}
	w.WriteByte('>')
	if el.Text != "" {
		if err := escapeCharData(w, el.Text); err != nil {
			return err
		}
	}
	for _, child := range el.Children {
		if err := c.writeElement(w, child, depth+1); err != nil {
			return err
		}
	}
	if c.Indent && len(el.Children) > 0 {
		w.WriteByte('\n')
		w.WriteString(strings.Repeat("  ", depth))
	}
	w.WriteString("</")
	w.WriteString(el.Name)
	_, err := w.WriteString(">")
	return err
}

// escapeCharData escapes markup characters but leaves newlines and tabs
// alone so that multi-line text content survives unchanged.
func escapeCharData(w *bufio.Writer, s string) error {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	_, err := r.WriteString(w, s)
	return err
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
