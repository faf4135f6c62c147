package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Transform is one node of a dead-key sequence tree. A leaf carries the
// Output for the sequence so far; a branch maps the next typed character to
// a subtree. Branches conventionally hold a " " entry for the output when
// the sequence is cut short.
type Transform struct {
	Output string
	Next   Transforms
}

// Transforms maps an input character to its transform subtree.
type Transforms map[string]Transform

// IsLeaf reports whether the node ends a sequence.
func (t Transform) IsLeaf() bool {
	return t.Next == nil
}

// Clone returns a deep copy.
func (t Transforms) Clone() Transforms {
	if t == nil {
		return nil
	}
	out := make(Transforms, len(t))
	for k, v := range t {
		out[k] = Transform{Output: v.Output, Next: v.Next.Clone()}
	}
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Transform) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Output = node.Value
		t.Next = nil
		return nil
	case yaml.MappingNode:
		next := make(Transforms, len(node.Content)/2)
		if err := node.Decode(&next); err != nil {
			return err
		}
		t.Next = next
		return nil
	}
	return fmt.Errorf("line %d: transform must be a string or a mapping", node.Line)
}

// MarshalYAML implements yaml.Marshaler.
func (t Transform) MarshalYAML() (any, error) {
	if t.IsLeaf() {
		return t.Output, nil
	}
	return map[string]Transform(t.Next), nil
}

// MarshalJSON implements json.Marshaler. Leaves become strings and branches
// objects, which is the shape the runtime walks.
func (t Transform) MarshalJSON() ([]byte, error) {
	if t.IsLeaf() {
		return marshalJSON(t.Output)
	}
	return marshalJSON(map[string]Transform(t.Next))
}

// MarshalJSON implements json.Marshaler; a nil set encodes as {}.
func (t Transforms) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return marshalJSON(map[string]Transform(t))
}

// marshalJSON encodes without HTML escaping so that "<" and "&" stay
// readable in generated scripts.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
