package keymap

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// ChromeOS maps ISO positions to DOM KeyboardEvent.code values, which is what
// the chrome.input.ime key events carry.
var ChromeOS = MustBind([]string{
	// Row E
	"Backquote", "Digit1", "Digit2", "Digit3", "Digit4", "Digit5", "Digit6",
	"Digit7", "Digit8", "Digit9", "Digit0", "Minus", "Equal",
	// Row D
	"KeyQ", "KeyW", "KeyE", "KeyR", "KeyT", "KeyY", "KeyU", "KeyI", "KeyO",
	"KeyP", "BracketLeft", "BracketRight",
	// Row C
	"KeyA", "KeyS", "KeyD", "KeyF", "KeyG", "KeyH", "KeyJ", "KeyK", "KeyL",
	"Semicolon", "Quote", "Backslash",
	// Row B
	"IntlBackslash", "KeyZ", "KeyX", "KeyC", "KeyV", "KeyB", "KeyN", "KeyM",
	"Comma", "Period", "Slash",
})

var registry = map[string]*KeyMap{
	"chromeos": ChromeOS,
}

// ForTarget returns the key map for a target tag.
func ForTarget(target string) (*KeyMap, error) {
	m, ok := registry[target]
	if !ok {
		return nil, errors.NewUnsupported("target", "no key map for "+target+"; known: "+strings.Join(Targets(), ", "))
	}
	return m, nil
}

// Targets lists the target tags that have a key map.
func Targets() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
