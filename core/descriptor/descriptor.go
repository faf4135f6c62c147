// Package descriptor compiles layouts into the keyed descriptors a target
// runtime consumes: every layer remapped from ISO key ids to target key
// codes, plus the layout's dead keys and transforms.
package descriptor

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
	"github.com/FocuswithJustin/kbdgen/core/layerview"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// Descriptor is one compiled layout. Its maps are never nil and never shared
// with the layout it was compiled from.
type Descriptor struct {
	DeadKeys   map[string][]string          `json:"deadKeys"`
	Transforms bundle.Transforms            `json:"transforms"`
	Layers     map[string]map[string]string `json:"layers"`
}

// KeyCount returns the number of keys across all layers.
func (d *Descriptor) KeyCount() int {
	n := 0
	for _, l := range d.Layers {
		n += len(l)
	}
	return n
}

// LayerView is the part of a target's layout view the compiler reads.
type LayerView interface {
	Modes() map[string]bundle.RawLayer
	DeadKeys() map[string][]string
	Transforms() bundle.Transforms
}

// ViewFunc resolves a layout into its view for a target.
type ViewFunc func(layout *bundle.Layout, target string) (LayerView, error)

// DesktopView is the default ViewFunc, backed by layerview.
func DesktopView(layout *bundle.Layout, target string) (LayerView, error) {
	return layerview.New(layout, target)
}

// Compiler turns layouts into descriptors for one key map.
type Compiler struct {
	keys *keymap.KeyMap
	view ViewFunc
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithView replaces the layer view resolution.
func WithView(fn ViewFunc) Option {
	return func(c *Compiler) {
		c.view = fn
	}
}

// NewCompiler returns a Compiler that remaps through keys.
func NewCompiler(keys *keymap.KeyMap, opts ...Option) *Compiler {
	c := &Compiler{keys: keys, view: DesktopView}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the descriptor of layout for target.
//
// Keys without output are skipped before lookup, so they never fail; keys
// whose output is the empty string are looked up and then dropped. A layer
// left with no keys is still present in the result.
func (c *Compiler) Compile(layout *bundle.Layout, target string) (*Descriptor, error) {
	view, err := c.view(layout, target)
	if err != nil {
		return nil, err
	}

	modes := view.Modes()
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Descriptor{
		DeadKeys:   view.DeadKeys(),
		Transforms: view.Transforms(),
		Layers:     make(map[string]map[string]string, len(modes)),
	}
	if d.DeadKeys == nil {
		d.DeadKeys = map[string][]string{}
	}
	if d.Transforms == nil {
		d.Transforms = bundle.Transforms{}
	}

	for _, name := range names {
		layer, err := RemapLayer(c.keys, modes[name])
		if err != nil {
			var uk *errors.UnknownKeyError
			if errors.As(err, &uk) {
				uk.Layout = layout.Locale
				uk.Layer = name
			}
			return nil, err
		}
		d.Layers[name] = layer
	}
	return d, nil
}

// RemapLayer rekeys a layer from ISO ids to target codes, dropping keys
// without output and keys whose output is empty.
func RemapLayer(keys *keymap.KeyMap, layer bundle.RawLayer) (map[string]string, error) {
	ids := make([]string, 0, len(layer))
	for id := range layer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]string, len(layer))
	for _, id := range ids {
		v := layer[id]
		if v == nil {
			continue
		}
		code, err := keys.Lookup(id)
		if err != nil {
			return nil, err
		}
		out[code] = *v
	}
	for code, v := range out {
		if v == "" {
			delete(out, code)
		}
	}
	return out, nil
}

// CompileAll compiles layouts on up to workers goroutines and returns the
// descriptors in input order. The first failure cancels the remaining work
// and is returned with the failing layout's locale. workers <= 0 means one
// per CPU.
func (c *Compiler) CompileAll(ctx context.Context, layouts []*bundle.Layout, target string, workers int) ([]*Descriptor, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]*Descriptor, len(layouts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, l := range layouts {
		i, l := i, l
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := c.Compile(l, target)
			if err != nil {
				return errors.Wrapf(err, "layout %s", l.Locale)
			}
			logging.LayoutCompiled(ctx, l.Locale, len(d.Layers), d.KeyCount())
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
