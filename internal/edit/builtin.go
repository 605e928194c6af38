package edit

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

// ShowPoint manifests a ball at a point.
type ShowPoint struct {
	Point model.Vector
	added bool
}

// NewShowPoint creates a ShowPoint edit.
func NewShowPoint(p model.Vector) *ShowPoint {
	return &ShowPoint{Point: p}
}

// Name implements Edit.
func (s *ShowPoint) Name() string { return OpShowPoint.String() }

// Perform implements Edit.
func (s *ShowPoint) Perform(ctx *Context) error {
	s.added = ctx.Model.Add(model.NewBall(s.Point))
	return nil
}

// Undo implements Edit.
func (s *ShowPoint) Undo(ctx *Context) error {
	if s.added {
		key := model.NewBall(s.Point).Key()
		ctx.Model.Remove(key)
		ctx.Selection.Deselect(key)
	}
	return nil
}

// Marshal implements Edit.
func (s *ShowPoint) Marshal() *format.Element {
	return format.NewElement(s.Name()).SetAttr("point", s.Point.String())
}

// Unmarshal implements Unmarshaler.
func (s *ShowPoint) Unmarshal(el *format.Element, _ *Factory) error {
	p, err := model.ParseVector(el.Attr("point"))
	if err != nil {
		return err
	}
	s.Point = p
	return nil
}

// StrutCreation connects two explicit points.
type StrutCreation struct {
	From, To model.Vector
	added    bool
}

// NewStrutCreation creates a StrutCreation edit.
func NewStrutCreation(from, to model.Vector) *StrutCreation {
	return &StrutCreation{From: from, To: to}
}

// Name implements Edit.
func (s *StrutCreation) Name() string { return OpStrutCreation.String() }

// Perform implements Edit.
func (s *StrutCreation) Perform(ctx *Context) error {
	s.added = false
	if s.From == s.To {
		return Failf("points are coincident")
	}
	s.added = ctx.Model.Add(model.NewStrut(s.From, s.To))
	return nil
}

// Undo implements Edit.
func (s *StrutCreation) Undo(ctx *Context) error {
	if s.added {
		ctx.Model.Remove(model.NewStrut(s.From, s.To).Key())
	}
	return nil
}

// Marshal implements Edit.
func (s *StrutCreation) Marshal() *format.Element {
	return format.NewElement(s.Name()).
		SetAttr("from", s.From.String()).
		SetAttr("to", s.To.String())
}

// Unmarshal implements Unmarshaler.
func (s *StrutCreation) Unmarshal(el *format.Element, _ *Factory) error {
	from, err := model.ParseVector(el.Attr("from"))
	if err != nil {
		return err
	}
	to, err := model.ParseVector(el.Attr("to"))
	if err != nil {
		return err
	}
	s.From, s.To = from, to
	return nil
}

// JoinMode selects how JoinPoints connects the selected balls.
type JoinMode string

// Join modes.
const (
	JoinClosedLoop JoinMode = "closedLoop"
	JoinChain      JoinMode = "chainBalls"
	JoinAllToFirst JoinMode = "allToFirst"
)

// JoinPoints connects the selected balls with struts.
type JoinPoints struct {
	Mode   JoinMode
	Points []model.Vector

	captured bool
	added    []string
}

// NewJoinPoints creates a JoinPoints edit.
func NewJoinPoints(mode JoinMode) *JoinPoints {
	return &JoinPoints{Mode: mode}
}

// Name implements Edit.
func (j *JoinPoints) Name() string { return OpJoinPoints.String() }

// Perform implements Edit.
func (j *JoinPoints) Perform(ctx *Context) error {
	j.added = j.added[:0]
	if !j.captured {
		j.Points = selectedBalls(ctx)
		j.captured = true
	}
	if len(j.Points) < 2 {
		return Failf("select at least two balls to join")
	}
	segments, err := j.segments()
	if err != nil {
		return err
	}
	for _, s := range segments {
		strut := model.NewStrut(s[0], s[1])
		if ctx.Model.Add(strut) {
			j.added = append(j.added, strut.Key())
		}
	}
	return nil
}

func (j *JoinPoints) segments() ([][2]model.Vector, error) {
	var out [][2]model.Vector
	pts := j.Points
	switch j.Mode {
	case JoinAllToFirst:
		for _, p := range pts[1:] {
			out = append(out, [2]model.Vector{pts[0], p})
		}
	case JoinChain, JoinClosedLoop:
		for i := 1; i < len(pts); i++ {
			out = append(out, [2]model.Vector{pts[i-1], pts[i]})
		}
		if j.Mode == JoinClosedLoop && len(pts) > 2 {
			out = append(out, [2]model.Vector{pts[len(pts)-1], pts[0]})
		}
	default:
		return nil, fmt.Errorf("join points: unknown mode %q", j.Mode)
	}
	for _, s := range out {
		if s[0] == s[1] {
			return nil, Failf("points are coincident")
		}
	}
	return out, nil
}

// Undo implements Edit.
func (j *JoinPoints) Undo(ctx *Context) error {
	for _, k := range j.added {
		ctx.Model.Remove(k)
	}
	return nil
}

// Marshal implements Edit.
func (j *JoinPoints) Marshal() *format.Element {
	return format.NewElement(j.Name()).
		SetAttr("mode", string(j.Mode)).
		SetAttr("points", model.PointsString(j.Points))
}

// Unmarshal implements Unmarshaler.
func (j *JoinPoints) Unmarshal(el *format.Element, _ *Factory) error {
	pts, err := model.ParsePoints(el.Attr("points"))
	if err != nil {
		return err
	}
	j.Mode = JoinMode(el.Attr("mode"))
	if j.Mode == "" {
		j.Mode = JoinClosedLoop
	}
	j.Points = pts
	j.captured = true
	return nil
}

// Delete removes the selected elements.
type Delete struct {
	Targets []model.Element

	captured bool
	removed  []model.Element
	selected []string
}

// Name implements Edit.
func (d *Delete) Name() string { return OpDelete.String() }

// Perform implements Edit.
func (d *Delete) Perform(ctx *Context) error {
	d.removed, d.selected = d.removed[:0], d.selected[:0]
	if !d.captured {
		d.Targets = selectedElements(ctx)
		d.captured = true
	}
	if len(d.Targets) == 0 {
		return &Failure{Message: "nothing to delete", Cause: ErrEmptySelection}
	}
	for _, t := range d.Targets {
		key := t.Key()
		e, ok := ctx.Model.Remove(key)
		if !ok {
			continue
		}
		d.removed = append(d.removed, e)
		if ctx.Selection.Deselect(key) {
			d.selected = append(d.selected, key)
		}
	}
	return nil
}

// Undo implements Edit.
func (d *Delete) Undo(ctx *Context) error {
	for _, e := range d.removed {
		ctx.Model.Add(e)
	}
	for _, k := range d.selected {
		ctx.Selection.Select(k)
	}
	return nil
}

// Marshal implements Edit.
func (d *Delete) Marshal() *format.Element {
	el := format.NewElement(d.Name())
	appendManifestations(el, d.Targets)
	return el
}

// Unmarshal implements Unmarshaler.
func (d *Delete) Unmarshal(el *format.Element, _ *Factory) error {
	targets, err := unmarshalManifestations(el)
	if err != nil {
		return err
	}
	d.Targets = targets
	d.captured = true
	return nil
}

// SetItemColor colours the selected elements.
type SetItemColor struct {
	Color   string
	Targets []string

	captured bool
	prev     map[string]string
}

// NewSetItemColor creates a SetItemColor edit for a hex colour.
func NewSetItemColor(color string) *SetItemColor {
	return &SetItemColor{Color: color}
}

// NormalizeColor parses a hex colour, with or without the leading '#',
// and returns it in lower-case #rrggbb form.
func NormalizeColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// Name implements Edit.
func (s *SetItemColor) Name() string { return OpSetItemColor.String() }

// Perform implements Edit.
func (s *SetItemColor) Perform(ctx *Context) error {
	s.prev = nil
	color, err := NormalizeColor(s.Color)
	if err != nil {
		return &Failure{Message: fmt.Sprintf("invalid color %q", s.Color), Cause: err}
	}
	s.Color = color
	if !s.captured {
		s.Targets = ctx.Selection.Keys()
		s.captured = true
	}
	if len(s.Targets) == 0 {
		return &Failure{Message: "select something to color", Cause: ErrEmptySelection}
	}
	s.prev = make(map[string]string, len(s.Targets))
	for _, k := range s.Targets {
		if prev, ok := ctx.Model.SetColor(k, color); ok {
			s.prev[k] = prev
		}
	}
	return nil
}

// Undo implements Edit.
func (s *SetItemColor) Undo(ctx *Context) error {
	for k, prev := range s.prev {
		ctx.Model.SetColor(k, prev)
	}
	return nil
}

// Marshal implements Edit.
func (s *SetItemColor) Marshal() *format.Element {
	el := format.NewElement(s.Name()).SetAttr("color", s.Color)
	appendRefs(el, s.Targets)
	return el
}

// Unmarshal implements Unmarshaler.
func (s *SetItemColor) Unmarshal(el *format.Element, _ *Factory) error {
	s.Color = el.Attr("color")
	s.Targets = unmarshalRefs(el)
	s.captured = true
	return nil
}

// SelectManifestation toggles one element in the selection.
type SelectManifestation struct {
	Key string

	applied  bool
	selected bool
}

// NewSelectManifestation creates a toggle for key.
func NewSelectManifestation(key string) *SelectManifestation {
	return &SelectManifestation{Key: key}
}

// Name implements Edit.
func (s *SelectManifestation) Name() string { return OpSelectManifestation.String() }

// Perform implements Edit.
func (s *SelectManifestation) Perform(ctx *Context) error {
	s.applied = false
	if _, ok := ctx.Model.Get(s.Key); !ok {
		return Failf("no element %s", s.Key)
	}
	if ctx.Selection.Contains(s.Key) {
		ctx.Selection.Deselect(s.Key)
		s.selected = false
	} else {
		ctx.Selection.Select(s.Key)
		s.selected = true
	}
	s.applied = true
	return nil
}

// Undo implements Edit. It does nothing if the toggle was not applied.
func (s *SelectManifestation) Undo(ctx *Context) error {
	if !s.applied {
		return nil
	}
	s.applied = false
	if s.selected {
		ctx.Selection.Deselect(s.Key)
	} else {
		ctx.Selection.Select(s.Key)
	}
	return nil
}

// SelectionOnly implements SelectionChanger.
func (s *SelectManifestation) SelectionOnly() bool { return true }

// Marshal implements Edit.
func (s *SelectManifestation) Marshal() *format.Element {
	return format.NewElement(s.Name()).SetAttr("key", s.Key)
}

// Unmarshal implements Unmarshaler.
func (s *SelectManifestation) Unmarshal(el *format.Element, _ *Factory) error {
	s.Key = el.Attr("key")
	if s.Key == "" {
		return fmt.Errorf("select: missing key")
	}
	return nil
}

// SelectAll selects every visible element.
type SelectAll struct {
	added []string
}

// Name implements Edit.
func (s *SelectAll) Name() string { return OpSelectAll.String() }

// Perform implements Edit.
func (s *SelectAll) Perform(ctx *Context) error {
	s.added = s.added[:0]
	for _, e := range ctx.Model.Elements() {
		if e.Hidden {
			continue
		}
		if ctx.Selection.Select(e.Key()) {
			s.added = append(s.added, e.Key())
		}
	}
	return nil
}

// Undo implements Edit.
func (s *SelectAll) Undo(ctx *Context) error {
	for _, k := range s.added {
		ctx.Selection.Deselect(k)
	}
	return nil
}

// SelectionOnly implements SelectionChanger.
func (s *SelectAll) SelectionOnly() bool { return true }

// Marshal implements Edit.
func (s *SelectAll) Marshal() *format.Element { return format.NewElement(s.Name()) }

// DeselectAll clears the selection.
type DeselectAll struct {
	prev []string
}

// Name implements Edit.
func (d *DeselectAll) Name() string { return OpDeselectAll.String() }

// Perform implements Edit.
func (d *DeselectAll) Perform(ctx *Context) error {
	d.prev = ctx.Selection.Clear()
	return nil
}

// Undo implements Edit.
func (d *DeselectAll) Undo(ctx *Context) error {
	ctx.Selection.Set(d.prev)
	return nil
}

// SelectionOnly implements SelectionChanger.
func (d *DeselectAll) SelectionOnly() bool { return true }

// Marshal implements Edit.
func (d *DeselectAll) Marshal() *format.Element { return format.NewElement(d.Name()) }

// HideManifestation hides the selected elements.
type HideManifestation struct {
	Targets []string

	captured bool
	hidden   []string
	selected []string
}

// Name implements Edit.
func (h *HideManifestation) Name() string { return OpHideManifestation.String() }

// Perform implements Edit.
func (h *HideManifestation) Perform(ctx *Context) error {
	h.hidden, h.selected = h.hidden[:0], h.selected[:0]
	if !h.captured {
		h.Targets = ctx.Selection.Keys()
		h.captured = true
	}
	if len(h.Targets) == 0 {
		return &Failure{Message: "nothing to hide", Cause: ErrEmptySelection}
	}
	for _, k := range h.Targets {
		if prev, ok := ctx.Model.SetHidden(k, true); ok && !prev {
			h.hidden = append(h.hidden, k)
		}
		if ctx.Selection.Deselect(k) {
			h.selected = append(h.selected, k)
		}
	}
	return nil
}

// Undo implements Edit.
func (h *HideManifestation) Undo(ctx *Context) error {
	for _, k := range h.hidden {
		ctx.Model.SetHidden(k, false)
	}
	for _, k := range h.selected {
		ctx.Selection.Select(k)
	}
	return nil
}

// Marshal implements Edit.
func (h *HideManifestation) Marshal() *format.Element {
	el := format.NewElement(h.Name())
	appendRefs(el, h.Targets)
	return el
}

// Unmarshal implements Unmarshaler.
func (h *HideManifestation) Unmarshal(el *format.Element, _ *Factory) error {
	h.Targets = unmarshalRefs(el)
	h.captured = true
	return nil
}

// ShowHidden reveals every hidden element.
type ShowHidden struct {
	shown []string
}

// Name implements Edit.
func (s *ShowHidden) Name() string { return OpShowHidden.String() }

// Perform implements Edit.
func (s *ShowHidden) Perform(ctx *Context) error {
	s.shown = s.shown[:0]
	for _, e := range ctx.Model.Elements() {
		if e.Hidden {
			ctx.Model.SetHidden(e.Key(), false)
			s.shown = append(s.shown, e.Key())
		}
	}
	return nil
}

// Undo implements Edit.
func (s *ShowHidden) Undo(ctx *Context) error {
	for _, k := range s.shown {
		ctx.Model.SetHidden(k, true)
	}
	return nil
}

// Marshal implements Edit.
func (s *ShowHidden) Marshal() *format.Element { return format.NewElement(s.Name()) }
