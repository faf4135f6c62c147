package bundle

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Defaults for target configuration keys a layout may omit.
const (
	DefaultBaseLocale = "en-US"
	DefaultBaseLayout = "us"
)

// Layout is one locale's keyboard definition.
type Layout struct {
	// Locale is the layout's locale tag, exactly as declared.
	Locale string

	// Path is the file the layout was read from, if any.
	Path string

	// DisplayNames maps display locales to the layout's name, in document order.
	DisplayNames []DisplayName

	// Modes maps a target tag to its layers, keyed by layer name.
	Modes map[string]map[string]RawLayer

	// DeadKeys maps a target tag to the dead keys of each layer.
	DeadKeys map[string]map[string][]string

	// Transforms are the dead-key sequences shared by all targets.
	Transforms Transforms

	// Targets holds per-target configuration.
	Targets map[string]TargetConfig
}

// DisplayName is the layout's name in one display locale.
type DisplayName struct {
	Locale string
	Name   string
}

// HasMode reports whether the layout declares layers for a target.
func (l *Layout) HasMode(target string) bool {
	_, ok := l.Modes[target]
	return ok
}

// ModeNames returns the declared target tags, sorted.
func (l *Layout) ModeNames() []string {
	out := make([]string, 0, len(l.Modes))
	for k := range l.Modes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Target returns the configuration for a target; the zero value if absent.
func (l *Layout) Target(target string) TargetConfig {
	return l.Targets[target]
}

// TargetDeadKeys returns a copy of the dead keys declared for a target.
func (l *Layout) TargetDeadKeys(target string) map[string][]string {
	src := l.DeadKeys[target]
	out := make(map[string][]string, len(src))
	for layer, keys := range src {
		out[layer] = append([]string(nil), keys...)
	}
	return out
}

// TargetConfig is a layout's configuration for one target.
type TargetConfig struct {
	// Locale is the language the platform should list the layout under.
	Locale string `yaml:"locale,omitempty"`

	// XKBLayout is the base physical layout; a scalar or an ordered list of
	// fallbacks.
	XKBLayout StringList `yaml:"xkbLayout,omitempty"`

	// Extra keeps keys this generator does not interpret.
	Extra map[string]any `yaml:",inline"`
}

// BaseLocale returns the configured locale or DefaultBaseLocale.
func (c TargetConfig) BaseLocale() string {
	if c.Locale != "" {
		return c.Locale
	}
	return DefaultBaseLocale
}

// BaseLayout returns the first configured layout code or DefaultBaseLayout.
func (c TargetConfig) BaseLayout() string {
	if len(c.XKBLayout) > 0 && c.XKBLayout[0] != "" {
		return c.XKBLayout[0]
	}
	return DefaultBaseLayout
}

// StringList decodes from either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", node.Line)
}

// MarshalYAML implements yaml.Marshaler; single values stay scalars.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// RawLayer maps physical key ids to outputs. A nil value means the key has
// no output in this layer; an empty string means it was explicitly blank.
type RawLayer map[string]*string

// Text returns a pointer to s, for building RawLayers.
func Text(s string) *string {
	return &s
}

// Clone returns a deep copy of the layer.
func (l RawLayer) Clone() RawLayer {
	out := make(RawLayer, len(l))
	for k, v := range l {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = Text(*v)
	}
	return out
}
