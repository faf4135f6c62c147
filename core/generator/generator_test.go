package generator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// twoLayoutBundle holds layouts inserted as nb, then en.
func twoLayoutBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Path: "test",
		Project: bundle.Project{
			Locales: []bundle.ProjectLocale{
				{Locale: "en", Name: "Nordic keyboards", Description: "Keyboards for the north"},
				{Locale: "nb", Name: "Nordiske tastatur", Description: "Tastatur for nord"},
			},
		},
		Targets: map[string]bundle.TargetSettings{"chromeos": {Version: "1.2"}},
		Layouts: []*bundle.Layout{
			{
				Locale:       "nb",
				DisplayNames: []bundle.DisplayName{{Locale: "nb", Name: "Norsk"}, {Locale: "en", Name: "Norwegian"}},
				Modes: map[string]map[string]bundle.RawLayer{
					"chromeos": {
						"default": {"D01": bundle.Text("q"), "D12": bundle.Text("¨"), "C01": bundle.Text("")},
						"shift":   {"D01": bundle.Text("Q")},
					},
				},
				DeadKeys:   map[string]map[string][]string{"chromeos": {"default": {"¨"}}},
				Transforms: bundle.Transforms{"¨": {Next: bundle.Transforms{"a": {Output: "ä"}}}},
				Targets: map[string]bundle.TargetConfig{
					"chromeos": {Locale: "nb-NO", XKBLayout: bundle.StringList{"no"}},
				},
			},
			{
				Locale:       "en",
				DisplayNames: []bundle.DisplayName{{Locale: "en", Name: "English"}},
				Modes: map[string]map[string]bundle.RawLayer{
					"chromeos": {"default": {"D01": bundle.Text("q")}},
				},
			},
			{
				Locale:       "fo",
				DisplayNames: []bundle.DisplayName{{Locale: "fo", Name: "Føroyskt"}},
				Modes: map[string]map[string]bundle.RawLayer{
					"mac": {"default": {"D01": bundle.Text("q")}},
				},
			},
		},
	}
}

func TestGenerateTwoLayouts(t *testing.T) {
	g, err := New(Options{Workers: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := g.Generate(context.Background(), twoLayoutBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if a.RunID == "" {
		t.Error("RunID not set")
	}

	var ids []string
	for _, c := range a.Manifest.InputComponents {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"nb", "en"}, ids); diff != "" {
		t.Errorf("manifest ids mismatch (-want +got):\n%s", diff)
	}
	nb := a.Manifest.InputComponents[0]
	if nb.Name != "__MSG_nb__" || nb.Language != "nb-NO" || nb.Layouts[0] != "no" {
		t.Errorf("nb entry = %+v", nb)
	}
	if a.Manifest.Version != "1.2" {
		t.Errorf("Version = %q", a.Manifest.Version)
	}

	var locales []string
	for _, d := range a.Descriptors {
		locales = append(locales, d.Locale)
	}
	if diff := cmp.Diff([]string{"nb", "en"}, locales); diff != "" {
		t.Errorf("descriptor order mismatch (-want +got):\n%s", diff)
	}

	layers := a.Descriptors[0].Descriptor.Layers
	if _, ok := layers["default"]["KeyA"]; ok {
		t.Error("empty output should be pruned")
	}
	if layers["default"]["BracketRight"] != "¨" || layers["shift"]["KeyQ"] != "Q" {
		t.Errorf("nb layers = %v", layers)
	}

	tests := []struct{ locale, key, want string }{
		{"en", "name", "Nordic keyboards"},
		{"nb", "description", "Tastatur for nord"},
		{"nb", "nb", "Norsk tastatur"},
		{"en", "nb", "Norwegian Keyboard"},
		{"en", "en", "English Keyboard"},
	}
	for _, tt := range tests {
		if got, _ := a.Catalog.Get(tt.locale, tt.key); got != tt.want {
			t.Errorf("catalog[%s][%s] = %q, want %q", tt.locale, tt.key, got, tt.want)
		}
	}
	if _, ok := a.Catalog.Get("fo", "fo"); ok {
		t.Error("unsupported layout leaked into the catalog")
	}
	if len(a.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", a.Warnings)
	}
}

func TestFiles(t *testing.T) {
	g, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := g.Generate(context.Background(), twoLayoutBundle())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	files, err := a.Files()
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	var paths []string
	byPath := map[string]string{}
	for _, f := range files {
		paths = append(paths, f.Path)
		byPath[f.Path] = string(f.Data)
	}
	want := []string{
		"manifest.json",
		"_locales/en/messages.json",
		"_locales/nb/messages.json",
		"background.js",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("file list mismatch (-want +got):\n%s", diff)
	}

	var man map[string]any
	if err := json.Unmarshal([]byte(byPath["manifest.json"]), &man); err != nil {
		t.Fatalf("manifest.json is not JSON: %v", err)
	}
	if man["default_locale"] != "en" {
		t.Errorf("default_locale = %v", man["default_locale"])
	}

	script := byPath["background.js"]
	if !strings.HasPrefix(script, string(runtimePrelude)) {
		t.Error("background.js should start with the runtime prelude")
	}
	if !strings.HasSuffix(script, "Keyboard.install(descriptors);\n") {
		t.Error("background.js should end by installing the descriptors")
	}
	if strings.Index(script, `"nb": {`) > strings.Index(script, `"en": {`) {
		t.Error("descriptors should keep layout order")
	}

	obj := script[strings.Index(script, "const descriptors = ")+len("const descriptors = "):]
	obj = obj[:strings.Index(obj, ";\n")]
	var descs map[string]struct {
		DeadKeys   map[string][]string          `json:"deadKeys"`
		Transforms map[string]any               `json:"transforms"`
		Layers     map[string]map[string]string `json:"layers"`
	}
	if err := json.Unmarshal([]byte(obj), &descs); err != nil {
		t.Fatalf("descriptors are not JSON: %v\n%s", err, obj)
	}
	if descs["nb"].Transforms["¨"].(map[string]any)["a"] != "ä" {
		t.Errorf("nb transforms = %v", descs["nb"].Transforms)
	}
	if descs["en"].Layers["default"]["KeyQ"] != "q" {
		t.Errorf("en layers = %v", descs["en"].Layers)
	}
}

func TestGenerateReleaseIsUnsupported(t *testing.T) {
	g, err := New(Options{Release: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := g.Generate(context.Background(), twoLayoutBundle())
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if a != nil {
		t.Error("release mode must not produce artifacts")
	}
}

func TestGenerateReleaseBeforeSanity(t *testing.T) {
	g, err := New(Options{Release: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Generate(context.Background(), &bundle.Bundle{}); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("release check should come first, got %v", err)
	}
}

func TestNewUnknownTarget(t *testing.T) {
	if _, err := New(Options{Target: "android"}); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	g, err := New(Options{})
	if err != nil || g.Target() != DefaultTarget {
		t.Errorf("default target = %q, %v", g.Target(), err)
	}
}

func TestGenerateTemplateFallback(t *testing.T) {
	b := twoLayoutBundle()
	b.Layouts[1].DisplayNames = append(b.Layouts[1].DisplayNames, bundle.DisplayName{Locale: "xx-YY", Name: "Ex"})

	g, err := New(Options{Templates: map[string]string{"en": "%s (Keyboard)"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := g.Generate(context.Background(), b)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(a.Warnings) != 1 || a.Warnings[0].Locale != "xx-YY" {
		t.Errorf("warnings = %v", a.Warnings)
	}
	if got, _ := a.Catalog.Get("xx-YY", "en"); got != "Ex (Keyboard)" {
		t.Errorf("fallback display name = %q", got)
	}
}

func TestGenerateUnknownKeyFails(t *testing.T) {
	b := twoLayoutBundle()
	b.Layouts[1].Modes["chromeos"]["default"]["Q42"] = bundle.Text("x")

	g, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := g.Generate(context.Background(), b)
	if !errors.Is(err, errors.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if a != nil {
		t.Error("failed run must not produce artifacts")
	}
	if !strings.Contains(err.Error(), "layout en") {
		t.Errorf("error should name the layout: %v", err)
	}
}

type rejectAll struct{ called bool }

func (r *rejectAll) Check(ctx context.Context, b *bundle.Bundle, target string) error {
	r.called = true
	return errors.NewValidation("bundle", "rejected")
}

func TestGenerateCustomChecker(t *testing.T) {
	checker := &rejectAll{}
	g, err := New(Options{Checker: checker})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Generate(context.Background(), twoLayoutBundle()); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if !checker.called {
		t.Error("custom checker not used")
	}
}
