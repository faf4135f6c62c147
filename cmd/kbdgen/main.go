// Command kbdgen builds ChromeOS input method packages from keyboard layout
// bundles.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/generator"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
	"github.com/FocuswithJustin/kbdgen/internal/cldr"
	"github.com/FocuswithJustin/kbdgen/internal/config"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
	"github.com/FocuswithJustin/kbdgen/internal/sink"
	"github.com/FocuswithJustin/kbdgen/internal/validation"
	"github.com/FocuswithJustin/kbdgen/internal/watch"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Configuration file (.toml, .yaml or .json)" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`
}

// CLI defines the command-line interface for kbdgen.
type CLI struct {
	Globals

	Generate GenerateCmd `cmd:"" help:"Generate a package from a bundle"`
	Keys     KeysCmd     `cmd:"" help:"Print the physical key map of a target"`
	CLDR     CLDRGroup   `cmd:"" name:"cldr" help:"CLDR keyboard tools"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// CLDRGroup contains CLDR operations.
type CLDRGroup struct {
	Import CLDRImportCmd `cmd:"" help:"Convert a CLDR keyboard XML file into a layout"`
}

// Env is what commands run with: the resolved configuration and the
// writer for command output.
type Env struct {
	Config *config.Config
	Stdout io.Writer
}

// GenerateCmd generates a package.
type GenerateCmd struct {
	Bundle  string `arg:"" help:"Bundle directory or single-file bundle" type:"path"`
	Output  string `short:"o" required:"" help:"Output directory" type:"path"`
	Target  string `short:"t" help:"Target platform (default from config)"`
	Release bool   `help:"Build a release package"`
	Workers int    `short:"j" help:"Parallel layout compilations (default from config)"`
	Archive string `help:"Also write the package to a .tar.xz archive" type:"path"`
	Watch   bool   `short:"w" help:"Rebuild whenever the bundle changes"`
}

func (c *GenerateCmd) Run(env *Env) error {
	if err := validation.ValidatePath(c.Output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if c.Archive != "" {
		if err := validation.ValidateArchivePath(c.Archive); err != nil {
			return fmt.Errorf("invalid archive path: %w", err)
		}
	}
	// The output directory is replaced on every run.
	if inside, err := validation.Contains(c.Output, c.Bundle); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	} else if inside {
		return fmt.Errorf("invalid output path: %w: %s contains %s", validation.ErrOverlap, c.Output, c.Bundle)
	}

	opts := generator.Options{
		Target:          env.Config.Target,
		Release:         c.Release,
		Workers:         env.Config.Workers,
		Templates:       env.Config.Templates,
		DefaultTemplate: env.Config.DefaultTemplate,
	}
	if c.Target != "" {
		opts.Target = c.Target
	}
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	gen, err := generator.New(opts)
	if err != nil {
		return err
	}
	logging.GetLogger().Debug("generate_started", "bundle", c.Bundle, "output", c.Output, "target", gen.Target())

	if !c.Watch {
		return c.build(context.Background(), env, gen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w := watch.New(c.Bundle, watch.WithIgnore(c.Output, c.Archive))
	return w.Run(ctx, func(ctx context.Context) error {
		return c.build(ctx, env, gen)
	})
}

func (c *GenerateCmd) build(ctx context.Context, env *Env, gen *generator.Generator) error {
	b, err := bundle.Load(c.Bundle)
	if err != nil {
		return err
	}
	artifacts, err := gen.Generate(ctx, b)
	if err != nil {
		return err
	}
	files, err := artifacts.Files()
	if err != nil {
		return err
	}

	report, err := sink.NewDirSink(c.Output).Write(ctx, files)
	if err != nil {
		return err
	}
	if report.Unchanged {
		fmt.Fprintf(env.Stdout, "%s is up to date\n", c.Output)
	} else {
		fmt.Fprintf(env.Stdout, "Wrote %d files to %s\n", len(report.Files), c.Output)
	}

	if c.Archive != "" {
		if _, err := sink.NewArchiveSink(c.Archive).Write(ctx, files); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "Packed %s\n", c.Archive)
	}
	return nil
}

// KeysCmd prints the key map.
type KeysCmd struct {
	Target string `short:"t" help:"Target platform (default from config)"`
}

func (c *KeysCmd) Run(env *Env) error {
	target := env.Config.Target
	if c.Target != "" {
		target = c.Target
	}
	m, err := keymap.ForTarget(target)
	if err != nil {
		return err
	}
	for _, id := range m.IDs() {
		code, err := m.Lookup(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s\t%s\n", id, code)
	}
	return nil
}

// CLDRImportCmd imports a CLDR keyboard.
type CLDRImportCmd struct {
	File   string `arg:"" help:"CLDR keyboard XML file" type:"existingfile"`
	Output string `short:"o" required:"" help:"Layout file to write" type:"path"`
	Locale string `help:"Layout locale (default from the keyboard)"`
	Target string `short:"t" help:"Target platform (default from the keyboard's k0 extension)"`
}

func (c *CLDRImportCmd) Run(env *Env) error {
	if err := validation.ValidatePath(c.Output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	layout, err := cldr.Import(c.File, cldr.Options{Locale: c.Locale, Target: c.Target})
	if err != nil {
		return err
	}
	data, err := bundle.EncodeLayout(layout)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, data, 0644); err != nil {
		return fmt.Errorf("failed to write layout: %w", err)
	}
	fmt.Fprintf(env.Stdout, "Imported %s (%d layers) to %s\n", layout.Locale, len(cldr.Names(layout)), c.Output)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.Stdout, "kbdgen version %s\n", version)
	return nil
}

// run parses args and runs the selected command, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("kbdgen"),
		kong.Description("Keyboard layout generator for ChromeOS"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(cli.Config, config.WithLogging(cli.LogLevel, cli.LogFormat))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logging.InitLoggerTo(stderr, cfg.LogLevel(), cfg.LogFormat())

	if err := kctx.Run(&Env{Config: cfg, Stdout: stdout}); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
