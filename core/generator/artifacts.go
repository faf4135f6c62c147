package generator

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"path"

	"github.com/FocuswithJustin/kbdgen/core/catalog"
	"github.com/FocuswithJustin/kbdgen/core/descriptor"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/locale"
	"github.com/FocuswithJustin/kbdgen/core/manifest"
	"github.com/FocuswithJustin/kbdgen/internal/sink"
)

// Output file names.
const (
	ManifestFile = "manifest.json"
	LocalesDir   = "_locales"
	MessagesFile = "messages.json"
)

//go:embed assets/keyboard.js
var runtimePrelude []byte

// LocaleDescriptor pairs a descriptor with the layout locale it came from.
type LocaleDescriptor struct {
	Locale     string
	Descriptor *descriptor.Descriptor
}

// Artifacts is the result of one generation run.
type Artifacts struct {
	RunID       string
	Manifest    *manifest.Manifest
	Catalog     *catalog.Catalog
	Descriptors []LocaleDescriptor
	Warnings    []*errors.LocaleFallbackWarning
}

// Files serialises the artifacts into the files of the package, in a stable
// order: manifest, message catalogs, background script.
func (a *Artifacts) Files() ([]sink.File, error) {
	var files []sink.File

	data, err := a.Manifest.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	files = append(files, sink.File{Path: ManifestFile, Data: data})

	for _, loc := range a.Catalog.Locales() {
		data, err := a.Catalog.MarshalLocale(loc)
		if err != nil {
			return nil, errors.Wrapf(err, "encode messages for %s", loc)
		}
		files = append(files, sink.File{
			Path: path.Join(LocalesDir, locale.DirName(loc), MessagesFile),
			Data: data,
		})
	}

	script, err := a.BackgroundScript()
	if err != nil {
		return nil, err
	}
	files = append(files, sink.File{Path: manifest.BackgroundScript, Data: script})
	return files, nil
}

// BackgroundScript returns the runtime prelude followed by the descriptors,
// keyed by locale in layout order, and the call that installs them.
func (a *Artifacts) BackgroundScript() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(runtimePrelude)
	buf.WriteString("\nconst descriptors = ")

	obj, err := a.descriptorsJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(obj)
	buf.WriteString(";\n\nKeyboard.install(descriptors);\n")
	return buf.Bytes(), nil
}

// descriptorsJSON writes the descriptors as one JSON object whose keys keep
// layout order; encoding/json would sort them.
func (a *Artifacts) descriptorsJSON() ([]byte, error) {
	if len(a.Descriptors) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, ld := range a.Descriptors {
		key, err := json.Marshal(ld.Locale)
		if err != nil {
			return nil, err
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")

		var val bytes.Buffer
		enc := json.NewEncoder(&val)
		enc.SetEscapeHTML(false)
		enc.SetIndent("  ", "  ")
		if err := enc.Encode(ld.Descriptor); err != nil {
			return nil, errors.Wrapf(err, "encode descriptor for %s", ld.Locale)
		}
		buf.Write(bytes.TrimRight(val.Bytes(), "\n"))
		if i < len(a.Descriptors)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}
