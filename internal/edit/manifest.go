package edit

import (
	"fmt"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

const (
	manifestationElement = "Manifestation"
	refElement           = "Ref"
)

func marshalManifestation(e model.Element) *format.Element {
	el := format.NewElement(manifestationElement).
		SetAttr("kind", e.Kind.String()).
		SetAttr("points", model.PointsString(e.Points))
	if e.Color != "" {
		el.SetAttr("color", e.Color)
	}
	if e.Hidden {
		el.SetBool("hidden", true)
	}
	return el
}

func unmarshalManifestation(el *format.Element) (model.Element, error) {
	kind, err := model.ParseKind(el.Attr("kind"))
	if err != nil {
		return model.Element{}, err
	}
	points, err := model.ParsePoints(el.Attr("points"))
	if err != nil {
		return model.Element{}, err
	}
	hidden, err := el.Bool("hidden", false)
	if err != nil {
		return model.Element{}, err
	}
	return model.Element{Kind: kind, Points: points, Color: el.Attr("color"), Hidden: hidden}, nil
}

func appendManifestations(parent *format.Element, elems []model.Element) {
	for _, e := range elems {
		parent.Append(marshalManifestation(e))
	}
}

func unmarshalManifestations(parent *format.Element) ([]model.Element, error) {
	var out []model.Element
	for _, child := range parent.Children {
		if child.Name != manifestationElement {
			continue
		}
		e, err := unmarshalManifestation(child)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", parent.Name, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func appendRefs(parent *format.Element, keys []string) {
	for _, k := range keys {
		parent.Append(format.NewElement(refElement).SetAttr("key", k))
	}
}

func unmarshalRefs(parent *format.Element) []string {
	var out []string
	for _, child := range parent.Children {
		if child.Name == refElement {
			out = append(out, child.Attr("key"))
		}
	}
	return out
}

// selectedElements resolves the selection against the model, in
// selection order, skipping keys no longer present.
func selectedElements(ctx *Context) []model.Element {
	keys := ctx.Selection.Keys()
	out := make([]model.Element, 0, len(keys))
	for _, k := range keys {
		if e, ok := ctx.Model.Get(k); ok {
			out = append(out, e)
		}
	}
	return out
}

func selectedBalls(ctx *Context) []model.Vector {
	var out []model.Vector
	for _, e := range selectedElements(ctx) {
		if e.Kind == model.Ball {
			out = append(out, e.Points[0])
		}
	}
	return out
}
