package layerview

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
)

func testLayout() *bundle.Layout {
	return &bundle.Layout{
		Locale: "nb",
		Modes: map[string]map[string]bundle.RawLayer{
			"chromeos": {
				"shift":   {"E01": bundle.Text("!")},
				"default": {"E01": bundle.Text("1"), "E02": nil},
				"cmd":     {"E01": bundle.Text("x")},
				"alt":     {},
			},
			"mac": {
				"default": {"E01": bundle.Text("1")},
				"cmd":     {"E01": bundle.Text("x")},
			},
		},
		DeadKeys: map[string]map[string][]string{
			"chromeos": {"default": {"¨"}, "cmd": {"^"}},
		},
		Transforms: bundle.Transforms{"¨": {Next: bundle.Transforms{"a": {Output: "ä"}}}},
	}
}

func TestNewChromeOS(t *testing.T) {
	v, err := New(testLayout(), "chromeos")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if diff := cmp.Diff([]string{"default", "shift", "alt"}, v.LayerNames()); diff != "" {
		t.Errorf("LayerNames() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"cmd"}, v.Ignored()); diff != "" {
		t.Errorf("Ignored() mismatch (-want +got):\n%s", diff)
	}

	modes := v.Modes()
	if _, ok := modes["cmd"]; ok {
		t.Error("cmd layer should not be in the ChromeOS view")
	}
	if got := modes["default"]; len(got) != 2 || got["E02"] != nil {
		t.Errorf("default layer = %v", got)
	}

	if diff := cmp.Diff(map[string][]string{"default": {"¨"}}, v.DeadKeys()); diff != "" {
		t.Errorf("DeadKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMac(t *testing.T) {
	v, err := New(testLayout(), "mac")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if diff := cmp.Diff([]string{"default", "cmd"}, v.LayerNames()); diff != "" {
		t.Errorf("LayerNames() mismatch (-want +got):\n%s", diff)
	}
	if len(v.DeadKeys()) != 0 {
		t.Errorf("DeadKeys() = %v, want empty", v.DeadKeys())
	}
}

func TestViewDoesNotAlias(t *testing.T) {
	l := testLayout()
	v, err := New(l, "chromeos")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	*v.Modes()["default"]["E01"] = "changed"
	v.DeadKeys()["default"][0] = "changed"
	v.Transforms()["¨"].Next["a"] = bundle.Transform{Output: "changed"}

	if *l.Modes["chromeos"]["default"]["E01"] != "1" {
		t.Error("Modes() aliases the layout")
	}
	if l.DeadKeys["chromeos"]["default"][0] != "¨" {
		t.Error("DeadKeys() aliases the layout")
	}
	if l.Transforms["¨"].Next["a"].Output != "ä" {
		t.Error("Transforms() aliases the layout")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(testLayout(), "android"); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("unknown target: expected ErrUnsupported, got %v", err)
	}
	if _, err := New(testLayout(), "win"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing mode: expected ErrNotFound, got %v", err)
	}
}

func TestLayerNamesIsACopy(t *testing.T) {
	names, err := LayerNames("chromeos")
	if err != nil {
		t.Fatalf("LayerNames() error = %v", err)
	}
	names[0] = "mutated"
	again, _ := LayerNames("chromeos")
	if again[0] != "default" {
		t.Error("LayerNames returned shared slice")
	}
	if diff := cmp.Diff([]string{"chromeos", "mac", "win"}, Targets()); diff != "" {
		t.Errorf("Targets() mismatch (-want +got):\n%s", diff)
	}
	if _, err := LayerNames("android"); err == nil || !strings.Contains(err.Error(), "known: chromeos, mac, win") {
		t.Errorf("LayerNames(android) error = %v", err)
	}
}
