package bundle

import (
	"bytes"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/kbdgen/core/keymap"
)

// EncodeLayout renders a layout as a YAML document that Load reads back to
// an equal layout. Full layers use row form; sparse ones use the key map form.
func EncodeLayout(l *Layout) ([]byte, error) {
	root := mapping()

	if l.Locale != "" {
		addPair(root, "locale", scalar(l.Locale))
	}

	names := mapping()
	for _, dn := range l.DisplayNames {
		addPair(names, dn.Locale, scalar(dn.Name))
	}
	addPair(root, "displayNames", names)

	modes := mapping()
	for _, target := range l.ModeNames() {
		layers := mapping()
		for _, name := range layerOrder(l.Modes[target]) {
			addPair(layers, name, layerNode(l.Modes[target][name]))
		}
		addPair(modes, target, layers)
	}
	addPair(root, "modes", modes)

	if len(l.DeadKeys) > 0 {
		if err := addEncoded(root, "deadKeys", l.DeadKeys); err != nil {
			return nil, err
		}
	}
	if len(l.Transforms) > 0 {
		if err := addEncoded(root, "transforms", l.Transforms); err != nil {
			return nil, err
		}
	}
	if len(l.Targets) > 0 {
		if err := addEncoded(root, "targets", l.Targets); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func layerNode(layer RawLayer) *yaml.Node {
	if rows, ok := FormatRows(layer); ok {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.LiteralStyle, Value: rows}
	}

	m := mapping()
	seen := make(map[string]bool, len(layer))
	add := func(id string) {
		v := layer[id]
		seen[id] = true
		switch {
		case v == nil:
			addPair(m, id, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"})
		case *v == "":
			addPair(m, id, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle})
		default:
			addPair(m, id, scalar(EncodeToken(v)))
		}
	}
	for _, id := range keymap.ISOKeys {
		if _, ok := layer[id]; ok {
			add(id)
		}
	}
	var extra []string
	for id := range layer {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		add(id)
	}
	return m
}

// layerOrder sorts layer names with "default" first.
func layerOrder(layers map[string]RawLayer) []string {
	out := make([]string, 0, len(layers))
	for name := range layers {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i] == "default" || out[j] == "default" {
			return out[i] == "default" && out[j] != "default"
		}
		return out[i] < out[j]
	})
	return out
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func addPair(m *yaml.Node, key string, val *yaml.Node) {
	m.Content = append(m.Content, scalar(key), val)
}

func addEncoded(m *yaml.Node, key string, v any) error {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return err
	}
	addPair(m, key, &n)
	return nil
}
