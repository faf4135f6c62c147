// Package bundle holds the platform-agnostic keyboard project model and loads
// it from disk.
//
// A bundle is either a directory:
//
//	project.yaml            project metadata and per-locale name/description
//	layouts/<locale>.yaml   one layout per locale
//	targets/<target>.yaml   optional per-target settings (version, ...)
//
// or a single YAML file with top-level "project", "targets" and "layouts"
// keys. Layout order is significant and is preserved as loaded: file name
// order for directories, document order for single files.
package bundle

// Default values for settings a bundle may omit.
const (
	DefaultVersion       = "1.0.0"
	DefaultCatalogLocale = "en"
)

// Bundle is a loaded keyboard project.
type Bundle struct {
	// Path is where the bundle was loaded from.
	Path string

	// Project holds project-wide metadata.
	Project Project

	// Targets holds bundle-level settings keyed by target tag.
	Targets map[string]TargetSettings

	// Layouts in insertion order.
	Layouts []*Layout
}

// Project is the project-wide metadata of a bundle.
type Project struct {
	// Locales lists the localised project name and description, in
	// document order.
	Locales []ProjectLocale `yaml:"-"`

	Author       string `yaml:"author,omitempty"`
	Email        string `yaml:"email,omitempty"`
	Copyright    string `yaml:"copyright,omitempty"`
	Organisation string `yaml:"organisation,omitempty"`
}

// ProjectLocale is the project name and description in one locale.
type ProjectLocale struct {
	Locale      string `yaml:"-"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// TargetSettings are bundle-level settings for one target.
type TargetSettings struct {
	// Version is the package version written into the manifest.
	Version string `yaml:"version,omitempty"`

	// DefaultLocale is the catalog locale the package falls back to.
	DefaultLocale string `yaml:"defaultLocale,omitempty"`
}

// Resolved returns the settings with defaults filled in.
func (s TargetSettings) Resolved() TargetSettings {
	if s.Version == "" {
		s.Version = DefaultVersion
	}
	if s.DefaultLocale == "" {
		s.DefaultLocale = DefaultCatalogLocale
	}
	return s
}

// TargetSettings returns the resolved settings for a target.
func (b *Bundle) TargetSettings(target string) TargetSettings {
	return b.Targets[target].Resolved()
}

// Supported returns, in bundle order, the layouts that declare a mode for
// the target. Layouts without it are skipped, which is not an error.
func (b *Bundle) Supported(target string) []*Layout {
	var out []*Layout
	for _, l := range b.Layouts {
		if l.HasMode(target) {
			out = append(out, l)
		}
	}
	return out
}
