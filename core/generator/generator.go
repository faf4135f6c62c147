// Package generator drives one generation run: it checks a bundle, compiles
// every supported layout, and assembles the manifest, message catalog and
// background script of a ChromeOS input method package.
package generator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/catalog"
	"github.com/FocuswithJustin/kbdgen/core/descriptor"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
	"github.com/FocuswithJustin/kbdgen/core/locale"
	"github.com/FocuswithJustin/kbdgen/core/manifest"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// DefaultTarget is the only target this generator builds packages for.
const DefaultTarget = "chromeos"

// Options configures a Generator.
type Options struct {
	// Target is the target tag; empty means DefaultTarget.
	Target string

	// Release requests a release build, which the target does not support.
	Release bool

	// Workers bounds descriptor compilation; <= 0 means one per CPU.
	Workers int

	// Templates add to or replace the display-name templates.
	Templates map[string]string

	// DefaultTemplate is the template locale of last resort.
	DefaultTemplate string

	// Checker replaces the default sanity checks.
	Checker SanityChecker
}

// Generator produces package artifacts from bundles.
type Generator struct {
	opts    Options
	keys    *keymap.KeyMap
	checker SanityChecker
}

// New returns a Generator for opts.Target.
func New(opts Options) (*Generator, error) {
	if opts.Target == "" {
		opts.Target = DefaultTarget
	}
	keys, err := keymap.ForTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	checker := opts.Checker
	if checker == nil {
		checker = TargetChecker{}
	}
	return &Generator{opts: opts, keys: keys, checker: checker}, nil
}

// Target returns the generator's target tag.
func (g *Generator) Target() string {
	return g.opts.Target
}

// Generate builds the artifacts for a bundle. Nothing is returned unless
// every supported layout compiles.
func (g *Generator) Generate(ctx context.Context, b *bundle.Bundle) (*Artifacts, error) {
	if g.opts.Release {
		return nil, errors.NewUnsupported("release build", "target "+g.opts.Target+" only generates debug packages")
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.LoggerFromContext(ctx)
	logger.Info("generation_started", "bundle", b.Path, "target", g.opts.Target, "layouts", len(b.Layouts))

	if err := g.checker.Check(ctx, b, g.opts.Target); err != nil {
		return nil, err
	}

	layouts := b.Supported(g.opts.Target)
	cat, warnings := g.buildCatalog(logger, b, layouts)
	man := manifest.NewAssembler(g.opts.Target, b.TargetSettings(g.opts.Target)).Build(b)

	descs, err := descriptor.NewCompiler(g.keys).CompileAll(ctx, layouts, g.opts.Target, g.opts.Workers)
	if err != nil {
		return nil, err
	}

	a := &Artifacts{
		RunID:    runID,
		Manifest: man,
		Catalog:  cat,
		Warnings: warnings,
	}
	for i, l := range layouts {
		a.Descriptors = append(a.Descriptors, LocaleDescriptor{Locale: l.Locale, Descriptor: descs[i]})
	}

	logger.Info("generation_finished",
		"layouts", len(a.Descriptors),
		"locales", len(cat.Locales()),
		"fallbacks", len(warnings),
	)
	return a, nil
}

func (g *Generator) buildCatalog(logger *slog.Logger, b *bundle.Bundle, layouts []*bundle.Layout) (*catalog.Catalog, []*errors.LocaleFallbackWarning) {
	builder := catalog.NewBuilder(
		catalog.WithTemplates(g.opts.Templates),
		catalog.WithDefaultTemplate(g.opts.DefaultTemplate),
		catalog.WithLogger(logger),
	)
	builder.AddProjectMetadata(b.Project.Locales)
	for _, l := range layouts {
		builder.AddLayoutDisplayNames(l, locale.LookupKey(l.Locale))
	}
	return builder.Catalog(), builder.Warnings()
}
