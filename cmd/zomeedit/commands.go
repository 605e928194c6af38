package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dshills/zomeedit/internal/app"
	"github.com/dshills/zomeedit/internal/config"
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/script"
)

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	codecName := fs.String("codec", "", "Codec to write (xml, json); default keeps the file's codec")
	out := fs.String("o", "", "Write to this path instead of replacing the input")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("migrate needs exactly one file")
	}

	a, err := e.newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	d, err := a.Open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *codecName != "" {
		codec, err := format.CodecFor(*codecName, a.Config().Save.Indent)
		if err != nil {
			return err
		}
		d.Codec = codec
	}
	if !d.Model.IsMigrated() && *codecName == "" && *out == "" {
		fmt.Fprintf(e.stdout, "%s is already in the current format\n", d.Path)
		return nil
	}

	if *out != "" {
		err = a.SaveAs(d.Key(), *out)
	} else {
		err = a.Save(d.Key())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s (%s, %d edits)\n", d.Path, d.Codec.Name(), d.Model.History().Len())
	return nil
}

// scriptOptions are the flags shared by run and watch.
type scriptOptions struct {
	out     string
	save    bool
	timeout time.Duration
}

func (o *scriptOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.out, "o", "", "Save the result to this path")
	fs.BoolVar(&o.save, "save", false, "Save the result back to the input document")
	fs.DurationVar(&o.timeout, "timeout", script.DefaultTimeout, "Limit for one script run")
}

// runOnce runs a script against a fresh copy of the document (or a new
// one) and saves the result as requested. The document is closed again.
func runOnce(ctx context.Context, e *env, a *app.Application, o scriptOptions, scriptPath, docPath string) (*report, error) {
	var (
		d   *app.Document
		err error
	)
	if docPath != "" {
		d, err = a.Open(ctx, docPath)
	} else {
		d, err = a.Create()
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close(d.Key(), true) }()
	header := d.Model.Header()

	h := script.NewHost(d.Model,
		script.WithOutput(e.stdout),
		script.WithTimeout(o.timeout),
		script.WithLogger(a.Logger().WithComponent("script")),
	)
	defer h.Close()
	if err := h.RunFile(ctx, scriptPath); err != nil {
		return nil, err
	}

	switch {
	case o.out != "":
		err = a.SaveAs(d.Key(), o.out)
	case o.save && d.Path != "":
		err = a.Save(d.Key())
	}
	if err != nil {
		return nil, err
	}
	return newReport(d.Path, header, a.Config().Core.Version, d.Model, false), nil
}

func runScript(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var o scriptOptions
	o.register(fs)
	quiet := fs.Bool("q", false, "Do not describe the result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("run needs a script and at most one document")
	}

	a, err := e.newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	r, err := runOnce(ctx, e, a, o, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	if !*quiet {
		r.writeText(e.stderr)
	}
	return nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var o scriptOptions
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("watch needs a script and at most one document")
	}
	if o.save {
		return fmt.Errorf("watch does not replace its input; use -o")
	}
	scriptPath, docPath := fs.Arg(0), fs.Arg(1)

	a, err := e.newApp(true)
	if err != nil {
		return err
	}
	defer a.Shutdown()
	log := a.Logger().WithComponent("watch")

	changed := make(chan struct{}, 1)
	w, err := config.NewWatcher(func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, config.WithLogger(log))
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(scriptPath); err != nil {
		return err
	}

	for {
		r, err := runOnce(ctx, e, a, o, scriptPath, docPath)
		if err != nil {
			reportError(e.stderr, err)
		} else {
			r.writeText(e.stderr)
		}
		log.Info("watching %s", scriptPath)

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}
