package bundle

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
)

// Row-form tokens with special meaning.
const (
	tokenNone  = `\s{none}`
	tokenSpace = `\s{space}`
)

// ParseRows parses a row-form layer: one whitespace-separated token per ISO
// key, in keymap.ISOKeys order. Line breaks are not significant.
func ParseRows(s string) (RawLayer, error) {
	tokens := strings.Fields(s)
	if len(tokens) != len(keymap.ISOKeys) {
		return nil, errors.NewParse("layout rows", "", fmt.Sprintf("expected %d keys, got %d", len(keymap.ISOKeys), len(tokens)))
	}

	layer := make(RawLayer, len(tokens))
	for i, tok := range tokens {
		v, err := DecodeToken(tok)
		if err != nil {
			return nil, errors.Wrapf(err, "key %s", keymap.ISOKeys[i])
		}
		layer[keymap.ISOKeys[i]] = v
	}
	return layer, nil
}

// DecodeToken decodes one key token. `\s{none}` yields nil, `\s{space}` a
// single space, and `\u{XXXX}` escapes are replaced by their code points.
func DecodeToken(tok string) (*string, error) {
	switch tok {
	case tokenNone:
		return nil, nil
	case tokenSpace:
		return Text(" "), nil
	}

	if !strings.Contains(tok, `\u{`) {
		return Text(tok), nil
	}

	var b strings.Builder
	for rest := tok; rest != ""; {
		i := strings.Index(rest, `\u{`)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i+3:]

		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, errors.NewParse("key token", "", fmt.Sprintf("unterminated escape in %q", tok))
		}
		cp, err := strconv.ParseUint(rest[:end], 16, 32)
		if err != nil || cp > unicode.MaxRune {
			return nil, errors.NewParse("key token", "", fmt.Sprintf("bad code point %q in %q", rest[:end], tok))
		}
		b.WriteRune(rune(cp))
		rest = rest[end+1:]
	}
	return Text(b.String()), nil
}

// EncodeToken is the inverse of DecodeToken. Empty strings have no row-form
// token; callers must use the map form for layers that contain them.
func EncodeToken(v *string) string {
	if v == nil {
		return tokenNone
	}
	if *v == " " {
		return tokenSpace
	}

	var b strings.Builder
	for _, r := range *v {
		if r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Mn, r) || !unicode.IsPrint(r) {
			fmt.Fprintf(&b, `\u{%X}`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatRows renders a layer in row form, one line per ISO row. It reports
// false if the layer cannot be written that way.
func FormatRows(l RawLayer) (string, bool) {
	if len(l) != len(keymap.ISOKeys) {
		return "", false
	}
	var b strings.Builder
	i := 0
	for _, n := range keymap.RowLengths {
		for j := 0; j < n; j++ {
			v, ok := l[keymap.ISOKeys[i]]
			if !ok || v != nil && *v == "" {
				return "", false
			}
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(EncodeToken(v))
			i++
		}
		b.WriteByte('\n')
	}
	return b.String(), true
}

// layerSpec decodes a layer in either row form or map form.
type layerSpec struct {
	RawLayer
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *layerSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		l, err := ParseRows(node.Value)
		if err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		s.RawLayer = l
		return nil

	case yaml.MappingNode:
		s.RawLayer = make(RawLayer, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return errors.NewParse("layer", "", fmt.Sprintf("line %d: key %s must map to a string", val.Line, key.Value))
			}
			if val.Tag == "!!null" {
				s.RawLayer[key.Value] = nil
				continue
			}
			if val.Value == "" {
				s.RawLayer[key.Value] = Text("")
				continue
			}
			v, err := DecodeToken(val.Value)
			if err != nil {
				return errors.Wrapf(err, "line %d", val.Line)
			}
			s.RawLayer[key.Value] = v
		}
		return nil
	}
	return errors.NewParse("layer", "", fmt.Sprintf("line %d: expected rows or a key map", node.Line))
}
