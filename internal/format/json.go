package format

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// JSONCodec reads and writes the JSON rendition of the element tree.
//
// Each element is an object:
//
//	{"name": "ShowPoint", "attrs": [["point", "0,0,0"]], "children": [...], "text": "..."}
//
// Attributes are a list of pairs rather than an object so that their
// order survives a round trip.
type JSONCodec struct {
	// Indent pretty-prints the output.
	Indent bool
}

// Name implements Codec.
func (c *JSONCodec) Name() string { return "json" }

// Decode implements Codec.
func (c *JSONCodec) Decode(r io.Reader) (*Element, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: root is not an object", ErrMalformed)
	}
	return decodeJSONElement(res)
}

func decodeJSONElement(res gjson.Result) (*Element, error) {
	name := res.Get("name")
	if name.Type != gjson.String || name.String() == "" {
		return nil, fmt.Errorf("%w: element without name", ErrMalformed)
	}
	el := &Element{
		Name: name.String(),
		Text: res.Get("text").String(),
	}

	var err error
	res.Get("attrs").ForEach(func(_, pair gjson.Result) bool {
		kv := pair.Array()
		if len(kv) != 2 {
			err = fmt.Errorf("%w: attribute of %s is not a pair", ErrMalformed, el.Name)
			return false
		}
		el.Attrs = append(el.Attrs, Attr{Name: kv[0].String(), Value: kv[1].String()})
		return true
	})
	if err != nil {
		return nil, err
	}

	res.Get("children").ForEach(func(_, child gjson.Result) bool {
		var c *Element
		c, err = decodeJSONElement(child)
		if err != nil {
			return false
		}
		el.Children = append(el.Children, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

// Encode implements Codec.
func (c *JSONCodec) Encode(w io.Writer, root *Element) error {
	out, err := encodeJSONElement(root)
	if err != nil {
		return err
	}
	if c.Indent {
		out = pretty.Pretty(out)
	} else {
		out = append(out, '\n')
	}
	_, err = w.Write(out)
	return err
}

func encodeJSONElement(el *Element) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "name", el.Name)
	if err != nil {
		return nil, err
	}
	if len(el.Attrs) > 0 {
		pairs := make([][2]string, len(el.Attrs))
		for i, a := range el.Attrs {
			pairs[i] = [2]string{a.Name, a.Value}
		}
		out, err = sjson.SetBytes(out, "attrs", pairs)
		if err != nil {
			return nil, err
		}
	}
	if el.Text != "" {
		out, err = sjson.SetBytes(out, "text", el.Text)
		if err != nil {
			return nil, err
		}
	}
	if len(el.Children) > 0 {
		raw := []byte{'['}
		for i, child := range el.Children {
			c, err := encodeJSONElement(child)
			if err != nil {
				return nil, err
			}
			if i > 0 {
				raw = append(raw, ',')
			}
			raw = append(raw, c...)
		}
		raw = append(raw, ']')
		out, err = sjson.SetRawBytes(out, "children", raw)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
