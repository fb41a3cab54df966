package hdf5store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Group is a node of the container hierarchy. Children, attributes and
// datasets keep insertion order.
type Group struct {
	Name     string
	Attrs    []Attr
	Datasets []Dataset
	Groups   []*Group
}

// Attr is a scalar attribute. Value holds a string, float64 or int64.
type Attr struct {
	Name  string
	Value any
}

// Dataset is a one-dimensional float64 array. Multi-column data is stored
// row-major and flattened.
type Dataset struct {
	Name string
	Data []float64
}

// Tree is the in-memory image of a container file.
type Tree struct {
	Root *Group
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// AddGroup appends a child group and returns it.
func (g *Group) AddGroup(name string) *Group {
	child := NewGroup(name)
	g.Groups = append(g.Groups, child)
	return child
}

// SetAttr sets or replaces an attribute.
func (g *Group) SetAttr(name string, value any) {
	for i := range g.Attrs {
		if g.Attrs[i].Name == name {
			g.Attrs[i].Value = value
			return
		}
	}
	g.Attrs = append(g.Attrs, Attr{Name: name, Value: value})
}

// SetString sets a string attribute. Empty strings are not stored.
func (g *Group) SetString(name, value string) {
	if value != "" {
		g.SetAttr(name, value)
	}
}

// AddDataset appends a dataset. Empty arrays are not stored.
func (g *Group) AddDataset(name string, data []float64) {
	if len(data) == 0 {
		return
	}
	g.Datasets = append(g.Datasets, Dataset{Name: name, Data: data})
}

// Attr returns the raw attribute value.
func (g *Group) Attr(name string) (any, bool) {
	for _, a := range g.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// String returns a string attribute, or "" when it is absent.
func (g *Group) String(name string) (string, error) {
	v, ok := g.Attr(name)
	if !ok {
		return "", nil
	}
	s, err := toString(v)
	if err != nil {
		return "", fmt.Errorf("%s/@%s: %w", g.Name, name, err)
	}
	return s, nil
}

// Float returns a numeric attribute, or 0 when it is absent.
func (g *Group) Float(name string) (float64, error) {
	v, ok := g.Attr(name)
	if !ok {
		return 0, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s/@%s: %w", g.Name, name, err)
	}
	return f, nil
}

// Int returns an integer attribute, or 0 when it is absent.
func (g *Group) Int(name string) (int, error) {
	f, err := g.Float(name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s/@%s: %g is not an integer", g.Name, name, f)
	}
	return int(f), nil
}

// Dataset returns the named dataset, or nil when it is absent.
func (g *Group) Dataset(name string) []float64 {
	for _, d := range g.Datasets {
		if d.Name == name {
			return d.Data
		}
	}
	return nil
}

// Group returns the named child group, or nil when it is absent.
func (g *Group) Group(name string) *Group {
	for _, child := range g.Groups {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// Count returns the number of groups and datasets below and including g.
func (g *Group) Count() (groups, datasets int) {
	groups, datasets = 1, len(g.Datasets)
	for _, child := range g.Groups {
		cg, cd := child.Count()
		groups += cg
		datasets += cd
	}
	return groups, datasets
}

// Walk visits g and every group below it in depth-first order. The path of
// the root is "/<name>".
func (g *Group) Walk(fn func(path string, group *Group) error) error {
	return g.walk("/"+g.Name, fn)
}

func (g *Group) walk(path string, fn func(string, *Group) error) error {
	if err := fn(path, g); err != nil {
		return err
	}
	for _, child := range g.Groups {
		if err := child.walk(path+"/"+child.Name, fn); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// VALUE CONVERSION
// =============================================================================

// Values read back from a file may come back with a different width than they
// were written with, so conversions accept every numeric type.

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case []float64:
		if len(n) == 1 {
			return n[0], nil
		}
	case []int64:
		if len(n) == 1 {
			return float64(n[0]), nil
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("cannot read %T as a number", v)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return strings.TrimRight(s, "\x00"), nil
	case []byte:
		return strings.TrimRight(string(s), "\x00"), nil
	case []string:
		if len(s) == 1 {
			return s[0], nil
		}
	}
	return "", fmt.Errorf("cannot read %T as a string", v)
}
