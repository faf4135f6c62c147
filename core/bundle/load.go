package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// File and directory names inside a bundle directory.
const (
	ProjectFile = "project.yaml"
	LayoutsDir  = "layouts"
	TargetsDir  = "targets"
)

// Load reads a bundle from a directory or a single YAML file.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("bundle", path)
		}
		return nil, errors.NewIO("stat", path, err)
	}
	if info.IsDir() {
		return loadDir(path)
	}
	return loadFile(path)
}

func loadDir(dir string) (*Bundle, error) {
	b := &Bundle{Path: dir, Targets: map[string]TargetSettings{}}

	root, err := readYAML(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}
	if err := decodeProject(root, &b.Project); err != nil {
		return nil, errors.Wrapf(err, "%s", ProjectFile)
	}

	targetFiles, err := yamlFiles(filepath.Join(dir, TargetsDir))
	if err != nil {
		return nil, err
	}
	for _, p := range targetFiles {
		node, err := readYAML(p)
		if err != nil {
			return nil, err
		}
		var s TargetSettings
		if err := node.Decode(&s); err != nil {
			return nil, yamlError(p, err)
		}
		b.Targets[stem(p)] = s
	}

	layoutFiles, err := yamlFiles(filepath.Join(dir, LayoutsDir))
	if err != nil {
		return nil, err
	}
	for _, p := range layoutFiles {
		node, err := readYAML(p)
		if err != nil {
			return nil, err
		}
		l, err := decodeLayout(stem(p), p, node)
		if err != nil {
			return nil, err
		}
		b.Layouts = append(b.Layouts, l)
	}
	return b, nil
}

func loadFile(path string) (*Bundle, error) {
	root, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.NewParse("bundle", path, "top level must be a mapping")
	}

	b := &Bundle{Path: path, Targets: map[string]TargetSettings{}}
	err = eachPair(root, func(key string, val *yaml.Node) error {
		switch key {
		case "project":
			return errors.Wrap(decodeProject(val, &b.Project), "project")
		case "targets":
			return eachPair(val, func(target string, v *yaml.Node) error {
				var s TargetSettings
				if err := v.Decode(&s); err != nil {
					return yamlError(path, err)
				}
				b.Targets[target] = s
				return nil
			})
		case "layouts":
			return eachPair(val, func(loc string, v *yaml.Node) error {
				l, err := decodeLayout(loc, path, v)
				if err != nil {
					return err
				}
				b.Layouts = append(b.Layouts, l)
				return nil
			})
		}
		return errors.NewParse("bundle", path, fmt.Sprintf("line %d: unknown key %q", val.Line, key))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ParseLayout decodes a single layout document.
func ParseLayout(locale string, data []byte) (*Layout, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, yamlError(locale, err)
	}
	return decodeLayout(locale, "", documentRoot(&doc))
}

// LoadLayout reads one layout file; the locale is the file name stem.
func LoadLayout(path string) (*Layout, error) {
	node, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	return decodeLayout(stem(path), path, node)
}

type projectDoc struct {
	Project `yaml:",inline"`
	Locales yaml.Node `yaml:"locales"`
}

func decodeProject(node *yaml.Node, p *Project) error {
	var doc projectDoc
	if err := node.Decode(&doc); err != nil {
		return yamlError("", err)
	}
	*p = doc.Project
	p.Locales = nil
	if doc.Locales.Kind == 0 {
		return nil
	}
	return eachPair(&doc.Locales, func(loc string, v *yaml.Node) error {
		pl := ProjectLocale{Locale: loc}
		if err := v.Decode(&pl); err != nil {
			return yamlError("", err)
		}
		p.Locales = append(p.Locales, pl)
		return nil
	})
}

type layoutDoc struct {
	Locale       string                          `yaml:"locale"`
	DisplayNames yaml.Node                       `yaml:"displayNames"`
	Modes        map[string]map[string]layerSpec `yaml:"modes"`
	DeadKeys     map[string]map[string][]string  `yaml:"deadKeys"`
	Transforms   Transforms                      `yaml:"transforms"`
	Targets      map[string]TargetConfig         `yaml:"targets"`
}

func decodeLayout(locale, path string, node *yaml.Node) (*Layout, error) {
	where := path
	if where == "" {
		where = locale
	}

	var generic any
	if err := node.Decode(&generic); err != nil {
		return nil, yamlError(where, err)
	}
	if err := ValidateLayoutDocument(locale, generic); err != nil {
		return nil, err
	}

	var doc layoutDoc
	if err := node.Decode(&doc); err != nil {
		return nil, yamlError(where, err)
	}
	if doc.Locale != "" && doc.Locale != locale {
		return nil, errors.NewParse("layout", where, fmt.Sprintf("declares locale %q but is stored as %q", doc.Locale, locale))
	}

	l := &Layout{
		Locale:     locale,
		Path:       path,
		Modes:      make(map[string]map[string]RawLayer, len(doc.Modes)),
		DeadKeys:   doc.DeadKeys,
		Transforms: doc.Transforms,
		Targets:    doc.Targets,
	}
	for target, layers := range doc.Modes {
		m := make(map[string]RawLayer, len(layers))
		for name, spec := range layers {
			m[name] = spec.RawLayer
		}
		l.Modes[target] = m
	}

	err := eachPair(&doc.DisplayNames, func(loc string, v *yaml.Node) error {
		l.DisplayNames = append(l.DisplayNames, DisplayName{Locale: loc, Name: v.Value})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// eachPair walks a mapping node in document order.
func eachPair(node *yaml.Node, fn func(key string, val *yaml.Node) error) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return errors.NewParse("YAML", "", fmt.Sprintf("line %d: expected a mapping", node.Line))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func readYAML(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, errors.NewIO("read", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, yamlError(path, err)
	}
	return documentRoot(&doc), nil
}

// documentRoot unwraps a document node. Empty documents become empty
// mappings.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	if doc.Kind == 0 || doc.Kind == yaml.DocumentNode {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	return doc
}

// yamlFiles lists the .yaml and .yml files of a directory sorted by name.
// A missing directory has no files.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIO("read directory", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func yamlError(path string, err error) error {
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		if pe.Path == "" {
			pe.Path = path
		}
		return err
	}
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return errors.NewParse("YAML", path, err.Error())
}
