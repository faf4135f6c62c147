// Package keymap maps the universal ISO physical key positions onto the key
// codes of a target platform.
//
// The ISO domain covers the alphanumeric block only: rows E (number row)
// through B (bottom letter row). Space, modifiers and function keys are not
// part of a layout's layers and therefore not part of the domain.
package keymap

import (
	"fmt"

	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// ISOKeys is the closed, ordered set of physical key positions a layout layer
// can be indexed by. Row-form layers list their keys in exactly this order.
var ISOKeys = []string{
	// Row E
	"E00", "E01", "E02", "E03", "E04", "E05", "E06", "E07", "E08", "E09", "E10", "E11", "E12",
	// Row D
	"D01", "D02", "D03", "D04", "D05", "D06", "D07", "D08", "D09", "D10", "D11", "D12",
	// Row C
	"C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08", "C09", "C10", "C11", "C12",
	// Row B
	"B00", "B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08", "B09", "B10",
}

// RowLengths is the number of keys on each ISO row, top to bottom.
var RowLengths = []int{13, 12, 12, 11}

// KeyMap is an immutable, injective mapping from ISO key ids to target codes.
type KeyMap struct {
	ids   []string
	codes map[string]string
}

// Bind pairs the ISO key ids, in order, with the given target codes.
// It fails if the lengths differ or if any code is used twice.
func Bind(codes []string) (*KeyMap, error) {
	return New(ISOKeys, codes)
}

// MustBind is like Bind but panics on error. It is meant for package-level
// tables, where a bad table is a programming error.
func MustBind(codes []string) *KeyMap {
	m, err := Bind(codes)
	if err != nil {
		panic(err)
	}
	return m
}

// New builds a KeyMap from parallel id and code lists.
func New(ids, codes []string) (*KeyMap, error) {
	if len(ids) != len(codes) {
		return nil, fmt.Errorf("key map has %d ids but %d codes", len(ids), len(codes))
	}

	m := &KeyMap{
		ids:   make([]string, len(ids)),
		codes: make(map[string]string, len(ids)),
	}
	copy(m.ids, ids)

	seen := make(map[string]string, len(codes))
	for i, id := range ids {
		code := codes[i]
		if code == "" {
			return nil, fmt.Errorf("key map: empty code for %s", id)
		}
		if _, dup := m.codes[id]; dup {
			return nil, fmt.Errorf("key map: duplicate id %s", id)
		}
		if other, dup := seen[code]; dup {
			return nil, fmt.Errorf("key map: %s and %s both map to %s", other, id, code)
		}
		seen[code] = id
		m.codes[id] = code
	}

	return m, nil
}

// Lookup returns the target code for a physical key id.
func (m *KeyMap) Lookup(id string) (string, error) {
	code, ok := m.codes[id]
	if !ok {
		return "", errors.NewUnknownKey(id)
	}
	return code, nil
}

// IDs returns the key ids in domain order.
func (m *KeyMap) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}
