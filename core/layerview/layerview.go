// Package layerview resolves a layout's raw layers into the set of layers a
// target platform can produce.
//
// Desktop targets differ in which modifier combinations they expose: the
// ChromeOS and Windows views know the caps/alt family, macOS adds cmd. Layer
// names a target cannot produce are left out of its view and reported by
// Ignored.
package layerview

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// Layer names, in the canonical order views report them.
var (
	windowsLayers = []string{
		"default", "shift", "caps", "caps+shift",
		"alt", "alt+shift", "caps+alt", "ctrl",
	}
	macLayers = []string{
		"default", "shift", "caps", "alt", "alt+shift", "caps+alt",
		"cmd", "cmd+shift", "cmd+alt", "cmd+alt+shift", "ctrl",
	}
)

var layerSets = map[string][]string{
	"chromeos": windowsLayers,
	"win":      windowsLayers,
	"mac":      macLayers,
}

// LayerNames returns the layers a target can produce, in canonical order.
func LayerNames(target string) ([]string, error) {
	names, ok := layerSets[target]
	if !ok {
		return nil, errors.NewUnsupported("target "+target, "no layer set; known: "+strings.Join(Targets(), ", "))
	}
	return append([]string(nil), names...), nil
}

// Targets returns the targets with a known layer set, sorted.
func Targets() []string {
	out := make([]string, 0, len(layerSets))
	for t := range layerSets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// View is one layout seen through one target.
type View struct {
	layout  *bundle.Layout
	target  string
	names   []string
	ignored []string
}

// New returns the view of layout for target. The layout must declare a mode
// for the target.
func New(layout *bundle.Layout, target string) (*View, error) {
	names, err := LayerNames(target)
	if err != nil {
		return nil, err
	}
	mode, ok := layout.Modes[target]
	if !ok {
		return nil, errors.NewNotFound("mode", layout.Locale+"/"+target)
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	v := &View{layout: layout, target: target}
	for _, n := range names {
		if _, ok := mode[n]; ok {
			v.names = append(v.names, n)
		}
	}
	for n := range mode {
		if !known[n] {
			v.ignored = append(v.ignored, n)
		}
	}
	sort.Strings(v.ignored)
	return v, nil
}

// Target returns the target tag of the view.
func (v *View) Target() string { return v.target }

// LayerNames returns the layers present in the view, in canonical order.
func (v *View) LayerNames() []string {
	return append([]string(nil), v.names...)
}

// Ignored returns the layout's layer names this target cannot produce.
func (v *View) Ignored() []string {
	return append([]string(nil), v.ignored...)
}

// Modes returns a copy of each layer the target can produce, keyed by layer
// name.
func (v *View) Modes() map[string]bundle.RawLayer {
	mode := v.layout.Modes[v.target]
	out := make(map[string]bundle.RawLayer, len(v.names))
	for _, n := range v.names {
		out[n] = mode[n].Clone()
	}
	return out
}

// DeadKeys returns a copy of the target's dead keys, restricted to layers in
// the view.
func (v *View) DeadKeys() map[string][]string {
	all := v.layout.TargetDeadKeys(v.target)
	out := make(map[string][]string, len(all))
	for _, n := range v.names {
		if keys, ok := all[n]; ok {
			out[n] = keys
		}
	}
	return out
}

// Transforms returns a copy of the layout's transforms.
func (v *View) Transforms() bundle.Transforms {
	return v.layout.Transforms.Clone()
}
