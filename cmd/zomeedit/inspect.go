package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/pretty"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

// summaryWidth is the number of characters of page content shown.
const summaryWidth = 48

// report describes a loaded document.
type report struct {
	File          string       `json:"file,omitempty" yaml:"file,omitempty"`
	ID            string       `json:"id" yaml:"id"`
	Namespace     string       `json:"namespace" yaml:"namespace"`
	WrittenBy     string       `json:"writtenBy" yaml:"writtenBy"`
	Compatibility string       `json:"compatibility" yaml:"compatibility"`
	Migrated      bool         `json:"migrated" yaml:"migrated"`
	Edits         int          `json:"edits" yaml:"edits"`
	EditNumber    int          `json:"editNumber" yaml:"editNumber"`
	StickyFloor   int          `json:"stickyFloor" yaml:"stickyFloor"`
	Breakpoints   []int        `json:"breakpoints,omitempty" yaml:"breakpoints,omitempty"`
	Elements      elementCount `json:"elements" yaml:"elements"`
	Tools         []toolInfo   `json:"tools,omitempty" yaml:"tools,omitempty"`
	Pages         []pageInfo   `json:"pages,omitempty" yaml:"pages,omitempty"`
	History       []editInfo   `json:"history,omitempty" yaml:"history,omitempty"`
}

type elementCount struct {
	Balls  int `json:"balls" yaml:"balls"`
	Struts int `json:"struts" yaml:"struts"`
	Panels int `json:"panels" yaml:"panels"`
	Hidden int `json:"hidden" yaml:"hidden"`
}

type toolInfo struct {
	Name   string `json:"name" yaml:"name"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Hidden bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

type pageInfo struct {
	Title    string `json:"title" yaml:"title"`
	Snapshot int    `json:"snapshot" yaml:"snapshot"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type editInfo struct {
	Index    int    `json:"index" yaml:"index"`
	Name     string `json:"name" yaml:"name"`
	Done     bool   `json:"done" yaml:"done"`
	Sticky   bool   `json:"sticky,omitempty" yaml:"sticky,omitempty"`
	Deferred bool   `json:"deferred,omitempty" yaml:"deferred,omitempty"`
}

// newReport describes d. The header is the one read from the file, before
// the load upgraded it.
func newReport(file string, h format.Header, coreVersion string, d *document.Document, withHistory bool) *report {
	r := &report{
		File:          file,
		ID:            d.ID(),
		Namespace:     h.Namespace,
		WrittenBy:     h.ToolVersion(),
		Compatibility: format.Classify(h, coreVersion).String(),
		Migrated:      d.IsMigrated(),
		Edits:         d.History().Len(),
		EditNumber:    d.History().DoneCount(),
		StickyFloor:   d.History().StickyFloor(),
		Breakpoints:   d.History().Breakpoints(),
	}
	for _, e := range d.Model().Elements() {
		switch e.Kind {
		case model.Ball:
			r.Elements.Balls++
		case model.Strut:
			r.Elements.Struts++
		case model.Panel:
			r.Elements.Panels++
		}
		if e.Hidden {
			r.Elements.Hidden++
		}
	}
	for _, name := range d.Tools().Names() {
		t := toolInfo{Name: name}
		if m, ok := d.Tools().Meta(name); ok {
			t.Label, t.Hidden = m.Label, m.Hidden
		}
		r.Tools = append(r.Tools, t)
	}
	for _, p := range d.Lesson().Pages() {
		r.Pages = append(r.Pages, pageInfo{Title: p.Title, Snapshot: p.Snapshot, Summary: p.Summary(summaryWidth)})
	}
	if withHistory {
		for _, e := range d.History().Entries() {
			r.History = append(r.History, editInfo{Index: e.Index, Name: e.Name, Done: e.Done, Sticky: e.Sticky, Deferred: e.Deferred})
		}
	}
	return r
}

// writeText prints the report for people.
func (r *report) writeText(w io.Writer) {
	if r.File != "" {
		fmt.Fprintf(w, "%s\n", r.File)
	}
	fmt.Fprintf(w, "  id:            %s\n", r.ID)
	fmt.Fprintf(w, "  written by:    %s\n", r.WrittenBy)
	fmt.Fprintf(w, "  compatibility: %s\n", r.Compatibility)
	if r.Migrated {
		fmt.Fprintf(w, "  migrated:      yes (save to keep the current format)\n")
	}
	fmt.Fprintf(w, "  history:       %d of %d edits done, sticky floor %d\n", r.EditNumber, r.Edits, r.StickyFloor)
	if len(r.Breakpoints) > 0 {
		bps := make([]string, len(r.Breakpoints))
		for i, bp := range r.Breakpoints {
			bps[i] = fmt.Sprint(bp)
		}
		fmt.Fprintf(w, "  breakpoints:   %s\n", strings.Join(bps, " "))
	}
	fmt.Fprintf(w, "  elements:      %d balls, %d struts, %d panels (%d hidden)\n",
		r.Elements.Balls, r.Elements.Struts, r.Elements.Panels, r.Elements.Hidden)
	if len(r.Tools) > 0 {
		fmt.Fprintf(w, "  tools:\n")
		for _, t := range r.Tools {
			label := t.Label
			if label == "" {
				label = t.Name
			}
			fmt.Fprintf(w, "    %s\n", label)
		}
	}
	if len(r.Pages) > 0 {
		fmt.Fprintf(w, "  pages:\n")
		for i, p := range r.Pages {
			fmt.Fprintf(w, "    %2d. %s [snapshot %d]", i+1, p.Title, p.Snapshot)
			if p.Summary != "" {
				fmt.Fprintf(w, ": %s", p.Summary)
			}
			fmt.Fprintln(w)
		}
	}
	if len(r.History) > 0 {
		fmt.Fprintf(w, "  edits:\n")
		for _, e := range r.History {
			mark := " "
			if e.Done {
				mark = "*"
			}
			fmt.Fprintf(w, "    %s %3d %s\n", mark, e.Index, e.Name)
		}
	}
}

// writeJSON prints the report as indented JSON, coloured on a terminal.
func (r *report) writeJSON(w io.Writer, color bool) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	data = pretty.Pretty(data)
	if color {
		data = pretty.Color(data, nil)
	}
	_, err = w.Write(data)
	return err
}

func (r *report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readDocument loads path, returning the header as it was on disk.
func readDocument(ctx context.Context, path string, opts ...document.Option) (*document.Document, format.Header, format.Codec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, format.Header{}, nil, err
	}
	root, codec, err := format.DecodeBytes(data)
	if err != nil {
		return nil, format.Header{}, codec, err
	}
	h, _ := format.ReadHeader(root)
	d, err := document.Load(ctx, root, opts...)
	return d, h, codec, err
}

func runInspect(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	output := fs.String("o", "text", "Output format (text, yaml, json)")
	withHistory := fs.Bool("history", false, "List every edit")
	undone := fs.Bool("undone", false, "Open with every edit undone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect needs exactly one file")
	}
	switch *output {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q", *output)
	}

	a, err := e.newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()
	cfg := a.Config()

	path := fs.Arg(0)
	d, h, _, err := readDocument(ctx, path,
		document.WithCore(cfg.Core.Version, cfg.Core.Edition, cfg.Core.Build),
		document.WithRecordFailed(cfg.History.RecordFailed),
		document.WithOpenUndone(*undone || cfg.History.OpenUndone),
		document.WithLogger(a.Logger().WithComponent("document")),
	)
	if err != nil {
		return err
	}

	r := newReport(path, h, cfg.Core.Version, d, *withHistory)
	switch *output {
	case "yaml":
		return r.writeYAML(e.stdout)
	case "json":
		return r.writeJSON(e.stdout, isTerminal(e.stdout))
	default:
		r.writeText(e.stdout)
		return nil
	}
}
