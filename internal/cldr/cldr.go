// Package cldr imports CLDR keyboard XML files into kbdgen layouts.
//
// A CLDR keyboard lists one keyMap per modifier state and a set of simple
// transforms. Modifier states become layer names, the transforms become the
// layout's dead-key tree, and every key whose output starts a transform is
// recorded as a dead key of its layer.
package cldr

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
	"github.com/FocuswithJustin/kbdgen/core/layerview"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// Keyboard is the part of a CLDR keyboard document the importer reads.
type Keyboard struct {
	// Locale is the keyboard@locale attribute, e.g. "nb-t-k0-chromeos".
	Locale     string
	Names      []string
	KeyMaps    []KeyMap
	Transforms []Rule
}

// KeyMap is one keyMap element.
type KeyMap struct {
	Modifiers string
	Keys      []Key
}

// Key is one map element, with escapes already decoded.
type Key struct {
	ISO string
	To  string
}

// Rule is one simple transform, with escapes already decoded.
type Rule struct {
	From string
	To   string
}

var (
	keyMapsExpr    = xpath.MustCompile("/keyboard/keyMap")
	mapExpr        = xpath.MustCompile("map")
	namesExpr      = xpath.MustCompile("/keyboard/names/name")
	transformsExpr = xpath.MustCompile("/keyboard/transforms[@type='simple' or not(@type)]/transform")
)

// Parse reads a CLDR keyboard document.
func Parse(r io.Reader) (*Keyboard, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "CLDR keyboard", Message: err.Error(), Err: err}
	}
	root := xmlquery.FindOne(doc, "/keyboard")
	if root == nil {
		return nil, errors.NewParse("CLDR keyboard", "", "no keyboard element")
	}

	kbd := &Keyboard{Locale: root.SelectAttr("locale")}
	for _, n := range xmlquery.QuerySelectorAll(doc, namesExpr) {
		if v := n.SelectAttr("value"); v != "" {
			kbd.Names = append(kbd.Names, v)
		}
	}

	for _, km := range xmlquery.QuerySelectorAll(doc, keyMapsExpr) {
		m := KeyMap{Modifiers: km.SelectAttr("modifiers")}
		for _, n := range xmlquery.QuerySelectorAll(km, mapExpr) {
			to, err := Unescape(n.SelectAttr("to"))
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, Key{ISO: n.SelectAttr("iso"), To: to})
		}
		kbd.KeyMaps = append(kbd.KeyMaps, m)
	}

	for _, n := range xmlquery.QuerySelectorAll(doc, transformsExpr) {
		from, err := Unescape(n.SelectAttr("from"))
		if err != nil {
			return nil, err
		}
		to, err := Unescape(n.SelectAttr("to"))
		if err != nil {
			return nil, err
		}
		kbd.Transforms = append(kbd.Transforms, Rule{From: from, To: to})
	}
	return kbd, nil
}

// ParseFile reads a CLDR keyboard file.
func ParseFile(path string) (*Keyboard, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("CLDR keyboard", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	kbd, err := Parse(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return kbd, nil
}

// BaseLocale returns the language part of the keyboard locale, without the
// "-t-" extension.
func (k *Keyboard) BaseLocale() string {
	tag, _, _ := strings.Cut(k.Locale, "-t-")
	return tag
}

// platforms maps CLDR "k0" platform subtags to target tags.
var platforms = map[string]string{
	"chromeos": "chromeos",
	"osx":      "mac",
	"windows":  "win",
}

// Platform returns the target tag named by the locale's "k0" extension, or
// "" when there is none or it is not a desktop target.
func (k *Keyboard) Platform() string {
	_, ext, ok := strings.Cut(k.Locale, "-t-")
	if !ok {
		return ""
	}
	parts := strings.Split(ext, "-")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "k0" {
			return platforms[parts[i+1]]
		}
	}
	return ""
}

var escape = regexp.MustCompile(`\\u\{([0-9A-Fa-f ]+)\}`)

// Unescape decodes CLDR \u{...} escapes. One escape may hold several
// space-separated code points.
func Unescape(s string) (string, error) {
	var bad error
	out := escape.ReplaceAllStringFunc(s, func(m string) string {
		var b strings.Builder
		for _, hex := range strings.Fields(escape.FindStringSubmatch(m)[1]) {
			cp, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || cp > 0x10FFFF {
				bad = errors.NewParse("CLDR escape", "", fmt.Sprintf("bad code point %q", hex))
				return m
			}
			b.WriteRune(rune(cp))
		}
		return b.String()
	})
	if bad != nil {
		return "", bad
	}
	return out, nil
}

// modifierOrder is the order modifiers appear in layer names.
var modifierOrder = []string{"cmd", "caps", "alt", "shift", "ctrl"}

var modifierAliases = map[string]string{
	"shift": "shift", "shiftL": "shift", "shiftR": "shift",
	"caps": "caps",
	"alt":  "alt", "altL": "alt", "altR": "alt",
	"opt": "alt", "optL": "alt", "optR": "alt",
	"ctrl": "ctrl", "ctrlL": "ctrl", "ctrlR": "ctrl",
	"cmd": "cmd",
}

// LayerNames returns the layer names a keyMap modifiers attribute stands
// for. Alternatives are space separated; a "?" suffix marks an optional
// modifier, which yields the layer both with and without it. The second
// result lists the names reached without optional modifiers.
func LayerNames(modifiers string) (names []string, exact map[string]bool, err error) {
	exact = map[string]bool{}
	alts := strings.Fields(modifiers)
	if len(alts) == 0 {
		alts = []string{""}
	}
	seen := map[string]bool{}
	for _, alt := range alts {
		var required, optional []string
		for _, part := range strings.Split(alt, "+") {
			if part == "" {
				continue
			}
			opt := strings.HasSuffix(part, "?")
			canon, ok := modifierAliases[strings.TrimSuffix(part, "?")]
			if !ok {
				return nil, nil, errors.NewUnsupported("modifier "+part, "no matching layer")
			}
			if opt {
				optional = append(optional, canon)
			} else {
				required = append(required, canon)
			}
		}

		for mask := 0; mask < 1<<len(optional); mask++ {
			set := map[string]bool{}
			for _, m := range required {
				set[m] = true
			}
			for i, m := range optional {
				if mask&(1<<i) != 0 {
					set[m] = true
				}
			}
			name := layerName(set)
			if mask == 0 {
				exact[name] = true
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names, exact, nil
}

func layerName(set map[string]bool) string {
	var parts []string
	for _, m := range modifierOrder {
		if set[m] {
			parts = append(parts, m)
		}
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, "+")
}

// Options configures an import.
type Options struct {
	// Locale overrides the locale derived from the keyboard.
	Locale string

	// Target overrides the target derived from the keyboard's k0 extension.
	// Without either, the target is "chromeos".
	Target string

	Logger *slog.Logger
}

// Layout converts the keyboard into a layout for one target.
//
// A keyMap whose modifiers name the layer exactly takes precedence over one
// that reaches it only through optional modifiers; otherwise the first
// keyMap wins. Keys outside the ISO alphanumeric block and layers the
// target cannot produce are dropped.
func (k *Keyboard) Layout(opts Options) (*bundle.Layout, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	loc := opts.Locale
	if loc == "" {
		loc = k.BaseLocale()
	}
	if loc == "" {
		return nil, errors.NewValidation("locale", "keyboard has no locale; pass one explicitly")
	}
	target := opts.Target
	if target == "" {
		target = k.Platform()
	}
	if target == "" {
		target = "chromeos"
	}
	known, err := layerview.LayerNames(target)
	if err != nil {
		return nil, err
	}
	targetLayers := make(map[string]bool, len(known))
	for _, n := range known {
		targetLayers[n] = true
	}
	isoKeys := make(map[string]bool, len(keymap.ISOKeys))
	for _, id := range keymap.ISOKeys {
		isoKeys[id] = true
	}

	layers := map[string]bundle.RawLayer{}
	exactSource := map[string]bool{}
	for _, km := range k.KeyMaps {
		names, exact, err := LayerNames(km.Modifiers)
		if err != nil {
			logger.Debug("cldr_keymap_skipped", "modifiers", km.Modifiers, "error", err)
			continue
		}
		for _, name := range names {
			if !targetLayers[name] {
				logger.Debug("cldr_layer_skipped", "layer", name, "target", target)
				continue
			}
			if _, ok := layers[name]; ok && (exactSource[name] || !exact[name]) {
				continue
			}
			layer := bundle.RawLayer{}
			for _, key := range km.Keys {
				if !isoKeys[key.ISO] {
					continue
				}
				layer[key.ISO] = bundle.Text(key.To)
			}
			layers[name] = layer
			exactSource[name] = exact[name]
		}
	}
	if _, ok := layers["default"]; !ok {
		return nil, errors.NewValidation("keyMap", "keyboard has no unmodified keyMap")
	}

	transforms := BuildTransforms(k.Transforms)
	layout := &bundle.Layout{
		Locale:     loc,
		Modes:      map[string]map[string]bundle.RawLayer{target: layers},
		Transforms: transforms,
	}
	if len(k.Names) > 0 {
		layout.DisplayNames = []bundle.DisplayName{{Locale: "en", Name: k.Names[0]}}
	}
	if dead := deadKeys(layers, transforms); len(dead) > 0 {
		layout.DeadKeys = map[string]map[string][]string{target: dead}
	}

	logger.Info("cldr_imported",
		"locale", loc,
		"target", target,
		"layers", len(layers),
		"transforms", len(k.Transforms))
	return layout, nil
}

// BuildTransforms folds simple transform rules into a sequence tree. When
// one rule's input is a prefix of another's, the shorter rule's output is
// stored under " " in the branch.
func BuildTransforms(rules []Rule) bundle.Transforms {
	if len(rules) == 0 {
		return nil
	}
	root := bundle.Transforms{}
	for _, r := range rules {
		chars := strings.Split(r.From, "")
		if len(chars) == 0 {
			continue
		}
		insert(root, chars, r.To)
	}
	return root
}

func insert(t bundle.Transforms, chars []string, out string) {
	head := chars[0]
	node, exists := t[head]
	if len(chars) == 1 {
		if exists && !node.IsLeaf() {
			if _, ok := node.Next[" "]; !ok {
				node.Next[" "] = bundle.Transform{Output: out}
			}
			return
		}
		if !exists {
			t[head] = bundle.Transform{Output: out}
		}
		return
	}

	if !exists {
		node = bundle.Transform{Next: bundle.Transforms{}}
	} else if node.IsLeaf() {
		node = bundle.Transform{Next: bundle.Transforms{" ": {Output: node.Output}}}
	}
	insert(node.Next, chars[1:], out)
	t[head] = node
}

// deadKeys lists, per layer, the outputs that start a transform sequence.
func deadKeys(layers map[string]bundle.RawLayer, transforms bundle.Transforms) map[string][]string {
	out := map[string][]string{}
	for name, layer := range layers {
		seen := map[string]bool{}
		var keys []string
		for _, id := range keymap.ISOKeys {
			v := layer[id]
			if v == nil || seen[*v] {
				continue
			}
			if t, ok := transforms[*v]; ok && !t.IsLeaf() {
				seen[*v] = true
				keys = append(keys, *v)
			}
		}
		if len(keys) > 0 {
			out[name] = keys
		}
	}
	return out
}

// Import reads a CLDR keyboard file and converts it to a layout.
func Import(path string, opts Options) (*bundle.Layout, error) {
	kbd, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	layout, err := kbd.Layout(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", path)
	}
	return layout, nil
}

// Names returns the sorted layer names of a layout's only mode. It is a
// convenience for reporting.
func Names(l *bundle.Layout) []string {
	var out []string
	for _, mode := range l.Modes {
		for name := range mode {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
