package keymap

import (
	"errors"
	"strings"
	"testing"

	kerrors "github.com/FocuswithJustin/kbdgen/core/errors"
)

func TestISOKeysMatchRows(t *testing.T) {
	total := 0
	for _, n := range RowLengths {
		total += n
	}
	if len(ISOKeys) != total {
		t.Fatalf("len(ISOKeys) = %d, rows sum to %d", len(ISOKeys), total)
	}
	if len(ISOKeys) != 48 {
		t.Errorf("len(ISOKeys) = %d, want 48", len(ISOKeys))
	}
}

func TestChromeOSTotalAndInjective(t *testing.T) {
	if got := len(ChromeOS.IDs()); got != len(ISOKeys) {
		t.Fatalf("ChromeOS has %d keys, want %d", got, len(ISOKeys))
	}

	seen := make(map[string]string)
	for _, id := range ISOKeys {
		code, err := ChromeOS.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s) error: %v", id, err)
		}
		if other, dup := seen[code]; dup {
			t.Errorf("%s and %s both map to %s", other, id, code)
		}
		seen[code] = id
	}
}

func TestChromeOSSpotChecks(t *testing.T) {
	tests := map[string]string{
		"E00": "Backquote",
		"E10": "Digit0",
		"D01": "KeyQ",
		"C12": "Backslash",
		"B00": "IntlBackslash",
		"B10": "Slash",
	}
	for id, want := range tests {
		if got, _ := ChromeOS.Lookup(id); got != want {
			t.Errorf("Lookup(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := ChromeOS.Lookup("A03")
	if err == nil {
		t.Fatal("expected error for id outside the domain")
	}
	var uk *kerrors.UnknownKeyError
	if !errors.As(err, &uk) || uk.Key != "A03" {
		t.Errorf("error = %v, want UnknownKeyError for A03", err)
	}
}

func TestNewRejectsDefects(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		codes []string
	}{
		{"length mismatch", []string{"E00", "E01"}, []string{"A"}},
		{"duplicate code", []string{"E00", "E01"}, []string{"A", "A"}},
		{"duplicate id", []string{"E00", "E00"}, []string{"A", "B"}},
		{"empty code", []string{"E00"}, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.ids, tt.codes); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestMustBindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBind with short table did not panic")
		}
	}()
	MustBind([]string{"KeyQ"})
}

func TestIDsIsACopy(t *testing.T) {
	ids := ChromeOS.IDs()
	ids[0] = "mutated"
	if got, _ := ChromeOS.Lookup("E00"); got != "Backquote" {
		t.Errorf("mutating IDs() changed the map")
	}
	if ChromeOS.IDs()[0] != "E00" {
		t.Errorf("IDs() is not a copy")
	}
}

func TestForTarget(t *testing.T) {
	if m, err := ForTarget("chromeos"); err != nil || m != ChromeOS {
		t.Errorf("ForTarget(chromeos) = %v, %v", m, err)
	}
	_, err := ForTarget("win")
	if !errors.Is(err, kerrors.ErrUnsupported) {
		t.Errorf("ForTarget(win) error = %v, want ErrUnsupported", err)
	} else if !strings.Contains(err.Error(), "known: chromeos") {
		t.Errorf("error should list known targets: %v", err)
	}
	if got := Targets(); len(got) != 1 || got[0] != "chromeos" {
		t.Errorf("Targets() = %v", got)
	}
}
