// Package catalog holds the node type definitions an engine publishes on
// /object_info. Definitions are decoded once at load into typed schemas and
// are read-only afterwards.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/alfredjeanlab/nodegraph/internal/ordered"
)

// ErrUnavailable is returned when the definition source cannot be read or
// decoded. The catalog returned alongside it is empty but usable.
var ErrUnavailable = errors.New("node definitions unavailable")

// DefaultCategory is shown for definitions that declare no category.
const DefaultCategory = "Other"

// Option is one entry of the node type picker.
type Option struct {
	Value    string `json:"value"`
	Display  string `json:"display"`
	Category string `json:"category"`
}

// Label renders the option the way the picker shows it.
func (o Option) Label() string {
	return o.Display + " · " + o.Category
}

// Catalog is the loaded set of definitions, keyed by type name.
type Catalog struct {
	defs    map[string]*Definition
	names   []string
	options []Option
}

type options struct {
	locale language.Tag
}

// LoadOption configures Load and Decode.
type LoadOption func(*options)

// WithLocale sets the collation locale used to sort picker options.
func WithLocale(tag language.Tag) LoadOption {
	return func(o *options) { o.locale = tag }
}

func buildOptions(opts []LoadOption) options {
	o := options{locale: language.English}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Load reads the definition mapping from src. On failure it returns an empty
// catalog together with an error wrapping ErrUnavailable, so callers can keep
// going with an editor that simply offers no node types.
func Load(ctx context.Context, src Source, opts ...LoadOption) (*Catalog, error) {
	o := buildOptions(opts)
	data, err := src.Fetch(ctx)
	if err != nil {
		return newCatalog(nil, o.locale), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c, err := Decode(data, opts...)
	if err != nil {
		return newCatalog(nil, o.locale), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return c, nil
}

// Decode parses an object_info document. Entry order is preserved.
func Decode(data []byte, opts ...LoadOption) (*Catalog, error) {
	o := buildOptions(opts)
	root, err := ordered.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding node definitions: %w", err)
	}
	defs := make([]*Definition, 0, root.Len())
	for _, name := range root.Keys {
		raw := root.Values[name]
		if strings.TrimSpace(string(raw)) == "null" {
			continue
		}
		defs = append(defs, decodeDefinition(name, raw))
	}
	return newCatalog(defs, o.locale), nil
}

// New builds a catalog from already decoded definitions.
func New(defs []*Definition, opts ...LoadOption) *Catalog {
	return newCatalog(defs, buildOptions(opts).locale)
}

// Empty returns a catalog with no definitions.
func Empty() *Catalog {
	return newCatalog(nil, language.English)
}

func newCatalog(defs []*Definition, locale language.Tag) *Catalog {
	c := &Catalog{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := c.defs[d.Name]; !dup {
			c.names = append(c.names, d.Name)
		}
		c.defs[d.Name] = d
	}

	c.options = make([]Option, 0, len(c.names))
	for _, name := range c.names {
		d := c.defs[name]
		opt := Option{Value: name, Display: d.Title(), Category: d.Category}
		if opt.Category == "" {
			opt.Category = DefaultCategory
		}
		c.options = append(c.options, opt)
	}

	col := collate.New(locale, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(c.options, func(i, j int) bool {
		a, b := c.options[i], c.options[j]
		if r := col.CompareString(a.Display, b.Display); r != 0 {
			return r < 0
		}
		return col.CompareString(a.Category, b.Category) < 0
	})
	return c
}

// Lookup returns the definition for a type name.
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.names) }

// Names returns the type names in source order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Options returns all picker options, sorted.
func (c *Catalog) Options() []Option {
	return append([]Option(nil), c.options...)
}

// Filter returns the options whose display name, type name or category
// contains text, ignoring case and surrounding whitespace.
func (c *Catalog) Filter(text string) []Option {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return c.Options()
	}
	var out []Option
	for _, o := range c.options {
		if strings.Contains(strings.ToLower(o.Display), needle) ||
			strings.Contains(strings.ToLower(o.Value), needle) ||
			strings.Contains(strings.ToLower(o.Category), needle) {
			out = append(out, o)
		}
	}
	return out
}
