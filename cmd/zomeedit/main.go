// Package main is the entry point for the zomeedit command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/zomeedit/internal/app"
	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalOptions are the flags accepted before the command name.
type globalOptions struct {
	configPath string
	logLevel   string
}

// command is one subcommand. run receives the arguments after the
// command name.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

// env is what a command needs from the process.
type env struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
}

var commands = []command{
	{"inspect", "describe a document", runInspect},
	{"migrate", "rewrite a document in the current format", runMigrate},
	{"run", "run a Lua script against a document", runScript},
	{"watch", "re-run a Lua script whenever it changes", runWatch},
	{"config", "print the effective configuration", runConfig},
	{"version", "print version information", runVersion},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zomeedit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts globalOptions
	var showVersion bool
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	e := &env{opts: opts, stdout: stdout, stderr: stderr}
	if showVersion {
		_ = runVersion(context.Background(), e, nil)
		return 0
	}
	if opts.logLevel != "" {
		if _, ok := logging.ParseLevel(opts.logLevel); !ok {
			fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
			return 2
		}
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := c.run(ctx, e, fs.Args()[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			reportError(stderr, err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "Error: unknown command %q\n\n", name)
	fs.Usage()
	return 2
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "zomeedit - inspect, migrate and script zome documents\n\n")
	fmt.Fprintf(w, "Usage: zomeedit [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  zomeedit inspect -o yaml model.zome     Describe a document as YAML\n")
	fmt.Fprintf(w, "  zomeedit migrate -codec json old.zome   Upgrade a legacy document\n")
	fmt.Fprintf(w, "  zomeedit run build.lua model.zome       Script edits into a document\n")
}

// reportError prints err, using the user-facing message for load errors.
func reportError(w io.Writer, err error) {
	var le *document.LoadError
	if errors.As(err, &le) {
		fmt.Fprintf(w, "Error: %s\n", le.Message())
		if le.Err != nil {
			fmt.Fprintf(w, "  cause: %v\n", le.Err)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// newApp creates the application for a command, applying the global
// flags over the configuration.
func (e *env) newApp(watchConfig bool) (*app.Application, error) {
	a, err := app.New(app.Options{
		ConfigPath:  e.opts.configPath,
		WatchConfig: watchConfig,
		LogOutput:   e.stderr,
	})
	if err != nil {
		return nil, err
	}
	if e.opts.logLevel != "" {
		level, _ := logging.ParseLevel(e.opts.logLevel)
		a.Logger().SetLevel(level)
	}
	return a, nil
}

func runVersion(_ context.Context, e *env, _ []string) error {
	fmt.Fprintf(e.stdout, "zomeedit %s\n", version)
	fmt.Fprintf(e.stdout, "Commit: %s\n", commit)
	fmt.Fprintf(e.stdout, "Built: %s\n", date)
	return nil
}

func runConfig(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := e.newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()
	return a.Config().Encode(e.stdout)
}
