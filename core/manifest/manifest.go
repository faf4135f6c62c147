// Package manifest assembles the installable-package manifest of a ChromeOS
// input method extension. The manifest never carries literal text: names and
// descriptions are "__MSG_<key>__" references into the message catalog.
package manifest

import (
	"bytes"
	"encoding/json"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/catalog"
	"github.com/FocuswithJustin/kbdgen/core/locale"
)

// Fixed manifest values.
const (
	ManifestVersion  = 2
	BackgroundScript = "background.js"
	InputPermission  = "input"
	ComponentType    = "ime"
)

// Manifest is the package manifest.
type Manifest struct {
	Name            string           `json:"name"`
	Version         string           `json:"version"`
	ManifestVersion int              `json:"manifest_version"`
	Description     string           `json:"description"`
	Background      Background       `json:"background"`
	Permissions     []string         `json:"permissions"`
	InputComponents []InputComponent `json:"input_components"`
	DefaultLocale   string           `json:"default_locale"`
}

// Background lists the extension's background scripts.
type Background struct {
	Scripts []string `json:"scripts"`
}

// InputComponent is one input method the package installs.
type InputComponent struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Layouts     []string `json:"layouts"`
}

// MessageRef returns the manifest reference to a catalog key.
func MessageRef(key string) string {
	return "__MSG_" + key + "__"
}

// Assembler builds manifests for one target.
type Assembler struct {
	target   string
	settings bundle.TargetSettings
}

// NewAssembler returns an Assembler for target using the given settings;
// missing settings take their defaults.
func NewAssembler(target string, settings bundle.TargetSettings) *Assembler {
	return &Assembler{target: target, settings: settings.Resolved()}
}

// Entry returns the input component for one layout.
func (a *Assembler) Entry(l *bundle.Layout) InputComponent {
	key := locale.LookupKey(l.Locale)
	cfg := l.Target(a.target)
	return InputComponent{
		Name:        MessageRef(key),
		Type:        ComponentType,
		ID:          l.Locale,
		Description: MessageRef(key),
		Language:    cfg.BaseLocale(),
		Layouts:     []string{cfg.BaseLayout()},
	}
}

// Entries returns one input component per layout that declares the target,
// in bundle order. Other layouts are skipped.
func (a *Assembler) Entries(b *bundle.Bundle) []InputComponent {
	out := []InputComponent{}
	for _, l := range b.Supported(a.target) {
		out = append(out, a.Entry(l))
	}
	return out
}

// Build returns the manifest for the bundle.
func (a *Assembler) Build(b *bundle.Bundle) *Manifest {
	return &Manifest{
		Name:            MessageRef(catalog.KeyName),
		Version:         a.settings.Version,
		ManifestVersion: ManifestVersion,
		Description:     MessageRef(catalog.KeyDescription),
		Background:      Background{Scripts: []string{BackgroundScript}},
		Permissions:     []string{InputPermission},
		InputComponents: a.Entries(b),
		DefaultLocale:   a.settings.DefaultLocale,
	}
}

// Marshal renders the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
