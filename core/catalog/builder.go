package catalog

import (
	"log/slog"
	"strings"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/locale"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// Message keys for project metadata.
const (
	KeyName        = "name"
	KeyDescription = "description"
)

// DefaultTemplateLocale is the locale whose template is used when neither a
// locale nor its base language has one.
const DefaultTemplateLocale = "en"

// DefaultTemplates maps locales to display-name templates. "%s" is replaced
// by the layout's name in that locale.
var DefaultTemplates = map[string]string{
	"en": "%s Keyboard",
	"nb": "%s tastatur",
	"nn": "%s tastatur",
	"da": "%s tastatur",
	"sv": "%s tangentbord",
	"fi": "%s näppäimistö",
	"de": "%s Tastatur",
	"fr": "Clavier %s",
	"es": "Teclado %s",
	"se": "%s boallobeavdi",
}

// Format fills a template with a display name.
func Format(tmpl, name string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return strings.Replace(tmpl, "%s", name, 1)
}

// Builder accumulates a Catalog.
type Builder struct {
	catalog       *Catalog
	templates     map[string]string
	defaultLocale string
	logger        *slog.Logger

	warned   map[string]bool
	warnings []*errors.LocaleFallbackWarning
}

// Option configures a Builder.
type Option func(*Builder)

// WithTemplates adds or replaces display-name templates.
func WithTemplates(templates map[string]string) Option {
	return func(b *Builder) {
		for k, v := range templates {
			b.templates[k] = v
		}
	}
}

// WithDefaultTemplate sets the locale whose template is the last resort.
func WithDefaultTemplate(locale string) Option {
	return func(b *Builder) {
		if locale != "" {
			b.defaultLocale = locale
		}
	}
}

// WithLogger sets the logger fallback warnings go to.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder returns a Builder over an empty catalog.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		catalog:       New(),
		templates:     make(map[string]string, len(DefaultTemplates)),
		defaultLocale: DefaultTemplateLocale,
		warned:        make(map[string]bool),
	}
	for k, v := range DefaultTemplates {
		b.templates[k] = v
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Catalog returns the catalog built so far.
func (b *Builder) Catalog() *Catalog {
	return b.catalog
}

// Warnings returns the fallback warnings recorded so far, one per locale.
func (b *Builder) Warnings() []*errors.LocaleFallbackWarning {
	return append([]*errors.LocaleFallbackWarning(nil), b.warnings...)
}

// AddProjectMetadata writes the project name and description for every
// project locale.
func (b *Builder) AddProjectMetadata(locales []bundle.ProjectLocale) {
	for _, pl := range locales {
		b.set(pl.Locale, KeyName, pl.Name)
		b.set(pl.Locale, KeyDescription, pl.Description)
	}
}

// AddLayoutDisplayNames writes the layout's templated display name under
// lookupKey for each of its display locales.
func (b *Builder) AddLayoutDisplayNames(layout *bundle.Layout, lookupKey string) {
	for _, dn := range layout.DisplayNames {
		tmpl, _ := b.Template(dn.Locale)
		b.set(dn.Locale, lookupKey, Format(tmpl, dn.Name))
	}
}

// Template picks the display-name template for a locale: the locale's own,
// then its base language's, then the default locale's. The last case
// reports fallback and is logged once per locale.
func (b *Builder) Template(loc string) (string, bool) {
	if t, ok := b.templates[loc]; ok {
		return t, false
	}
	if t, ok := b.templates[locale.Base(loc)]; ok {
		return t, false
	}

	if !b.warned[loc] {
		b.warned[loc] = true
		w := &errors.LocaleFallbackWarning{Locale: loc, Fallback: b.defaultLocale}
		b.warnings = append(b.warnings, w)
		logging.LocaleFallback(b.log(), loc, b.defaultLocale)
	}
	if t, ok := b.templates[b.defaultLocale]; ok {
		return t, true
	}
	return "%s", true
}

func (b *Builder) set(loc, key, text string) {
	if !b.catalog.Set(loc, key, text) {
		b.log().Debug("catalog_key_exists", "locale", loc, "key", key)
	}
}

func (b *Builder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return logging.GetLogger()
}
