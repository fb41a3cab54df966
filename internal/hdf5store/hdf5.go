// =============================================================================
// NRML to HDF5 Converter - Container File Layer
// =============================================================================
//
// This file writes a Tree to an HDF5 file and reads it back.
//
// SCALARS:
//   No HDF5 attributes are written. The scalar attributes of a group are
//   stored as datasets in that group, strings and numbers apart:
//     _tkeys / _tvals   fixed-length string datasets (names, values)
//     _nkeys / _nvals   string dataset of names, float64 dataset of values
//   Integers are stored as float64 and read back as such.
//
// PAGES:
//   A group is a symbol table holding at most 32 links whose names share a
//   256 byte local heap. When the children of a group do not fit next to its
//   own datasets, they are spread over page groups named _pNNNN, and the
//   pages over pages again. Readers drop the page level.
//
// =============================================================================

package hdf5store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scigolib/hdf5"
)

// Reserved dataset names. Tree datasets must not start with "_".
const (
	textKeys   = "_tkeys"
	textValues = "_tvals"
	numKeys    = "_nkeys"
	numValues  = "_nvals"
	pagePrefix = "_p"
)

// Capacity of one symbol table group as written by scigolib/hdf5.
const (
	maxLinks     = 32
	maxNameBytes = 256
)

// column is one dataset of a group. Exactly one of floats and strings is set.
type column struct {
	name    string
	floats  []float64
	strings []string
}

// flush writes tree to a new file at path, truncating any existing file.
// The file handle is closed on every return path.
func flush(path string, tree *Tree) (err error) {
	if tree == nil || tree.Root == nil {
		return errors.New("empty container tree")
	}
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return writeGroup(fw, "/"+tree.Root.Name, tree.Root)
}

// writeGroup creates the group at path with its datasets, then its children.
func writeGroup(fw *hdf5.FileWriter, path string, g *Group) error {
	cols, err := columns(g)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	links, nameBytes := maxLinks, maxNameBytes
	for _, c := range cols {
		links--
		nameBytes -= len(c.name) + 1
	}
	if links < 0 || nameBytes < 0 {
		return fmt.Errorf("%s: %d datasets do not fit in one group", path, len(cols))
	}
	children, err := paginate(g.Groups, links, nameBytes)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if _, err := fw.CreateGroup(path); err != nil {
		return fmt.Errorf("create group %s: %w", path, err)
	}
	for _, c := range cols {
		if err := writeColumn(fw, path+"/"+c.name, c); err != nil {
			return err
		}
	}
	for _, child := range children {
		if err := writeGroup(fw, path+"/"+child.Name, child); err != nil {
			return err
		}
	}
	return nil
}

// columns lists the datasets of g: the scalar datasets first, then the
// tree datasets in order.
func columns(g *Group) ([]column, error) {
	var tk, tv, nk []string
	var nv []float64
	for _, a := range g.Attrs {
		if s, ok := a.Value.(string); ok {
			tk = append(tk, a.Name)
			tv = append(tv, s)
			continue
		}
		f, err := toFloat(a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		nk = append(nk, a.Name)
		nv = append(nv, f)
	}

	var cols []column
	if len(tk) > 0 {
		cols = append(cols, column{name: textKeys, strings: tk}, column{name: textValues, strings: tv})
	}
	if len(nk) > 0 {
		cols = append(cols, column{name: numKeys, strings: nk}, column{name: numValues, floats: nv})
	}
	for _, d := range g.Datasets {
		if strings.HasPrefix(d.Name, "_") {
			return nil, fmt.Errorf("dataset name %q is reserved", d.Name)
		}
		cols = append(cols, column{name: d.Name, floats: d.Data})
	}
	return cols, nil
}

func writeColumn(fw *hdf5.FileWriter, path string, c column) error {
	if c.strings != nil {
		size := 1
		for _, s := range c.strings {
			size = max(size, len(s)+1)
		}
		ds, err := fw.CreateDataset(path, hdf5.String, []uint64{uint64(len(c.strings))},
			hdf5.WithStringSize(uint32(size)))
		if err != nil {
			return fmt.Errorf("create dataset %s: %w", path, err)
		}
		if err := ds.Write(c.strings); err != nil {
			return fmt.Errorf("write dataset %s: %w", path, err)
		}
		return nil
	}

	ds, err := fw.CreateDataset(path, hdf5.Float64, []uint64{uint64(len(c.floats))})
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", path, err)
	}
	if err := ds.Write(c.floats); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// PAGES
// =============================================================================

// paginate returns the groups to link under a parent that has room for links
// more links and nameBytes more name bytes. Children that do not fit are
// spread over pages until the top level fits.
func paginate(children []*Group, links, nameBytes int) ([]*Group, error) {
	for !fits(children, links, nameBytes) {
		pages := chunk(children)
		if len(pages) >= len(children) {
			return nil, fmt.Errorf("%d child groups do not fit in one group", len(children))
		}
		children = pages
	}
	return children, nil
}

func fits(children []*Group, links, nameBytes int) bool {
	if len(children) > links {
		return false
	}
	for _, c := range children {
		nameBytes -= len(c.Name) + 1
	}
	return nameBytes >= 0
}

// chunk fills pages in order, each up to the capacity of an empty group.
func chunk(children []*Group) []*Group {
	var pages []*Group
	var page *Group
	nameBytes := 0
	for _, c := range children {
		need := len(c.Name) + 1
		if page == nil || len(page.Groups) == maxLinks || nameBytes+need > maxNameBytes {
			page = NewGroup(fmt.Sprintf("%s%04d", pagePrefix, len(pages)))
			pages = append(pages, page)
			nameBytes = 0
		}
		page.Groups = append(page.Groups, c)
		nameBytes += need
	}
	return pages
}

func isPage(name string) bool {
	return strings.HasPrefix(name, pagePrefix)
}

// =============================================================================
// READING
// =============================================================================

// scalars collects the reserved datasets of one group while a file is walked.
type scalars struct {
	textKeys, textValues, numKeys []string
	numValues                     []float64
}

// LoadTree reads the container at path back into a tree.
func LoadTree(path string) (*Tree, error) {
	file, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	groups := make(map[string]*Group)
	pending := make(map[string]*scalars)
	var order []string
	var top []*Group

	// ensure returns the group at the slash separated path, creating any
	// missing ancestors.
	var ensure func(p string) *Group
	ensure = func(p string) *Group {
		if g, ok := groups[p]; ok {
			return g
		}
		parent, name := splitPath(p)
		g := NewGroup(name)
		groups[p] = g
		if parent == "" {
			top = append(top, g)
		} else {
			pg := ensure(parent)
			pg.Groups = append(pg.Groups, g)
		}
		return g
	}

	var walkErr error
	file.Walk(func(objPath string, obj hdf5.Object) {
		if walkErr != nil {
			return
		}
		p := treePath(objPath)
		if p == "" {
			return
		}

		switch v := obj.(type) {
		case *hdf5.Group:
			ensure(p)
		case *hdf5.Dataset:
			parent, name := splitPath(p)
			if parent == "" {
				return
			}
			g := ensure(parent)
			if !strings.HasPrefix(name, "_") {
				data, err := v.Read()
				if err != nil {
					walkErr = fmt.Errorf("read dataset %s: %w", p, err)
					return
				}
				g.AddDataset(name, data)
				return
			}
			sc, ok := pending[parent]
			if !ok {
				sc = &scalars{}
				pending[parent] = sc
				order = append(order, parent)
			}
			walkErr = sc.read(name, v)
			if walkErr != nil {
				walkErr = fmt.Errorf("read dataset %s: %w", p, walkErr)
			}
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for _, p := range order {
		if err := pending[p].apply(groups[p]); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	for _, g := range top {
		if g.Name == RootName {
			return &Tree{Root: g}, nil
		}
	}
	return nil, errors.New("container has no /" + RootName + " entry")
}

func (sc *scalars) read(name string, ds *hdf5.Dataset) (err error) {
	switch name {
	case textKeys:
		sc.textKeys, err = ds.ReadStrings()
	case textValues:
		sc.textValues, err = ds.ReadStrings()
	case numKeys:
		sc.numKeys, err = ds.ReadStrings()
	case numValues:
		sc.numValues, err = ds.Read()
	default:
		err = fmt.Errorf("unknown reserved dataset %q", name)
	}
	return err
}

func (sc *scalars) apply(g *Group) error {
	if len(sc.textKeys) != len(sc.textValues) {
		return fmt.Errorf("%d string attribute names for %d values", len(sc.textKeys), len(sc.textValues))
	}
	if len(sc.numKeys) != len(sc.numValues) {
		return fmt.Errorf("%d numeric attribute names for %d values", len(sc.numKeys), len(sc.numValues))
	}
	for i, name := range sc.textKeys {
		g.SetAttr(name, sc.textValues[i])
	}
	for i, name := range sc.numKeys {
		g.SetAttr(name, sc.numValues[i])
	}
	return nil
}

// treePath maps a file path to the slash separated tree path, without the
// leading slash and without page groups.
func treePath(objPath string) string {
	parts := strings.Split(strings.Trim(objPath, "/"), "/")
	kept := parts[:0]
	for _, part := range parts {
		if part != "" && !isPage(part) {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}

func splitPath(p string) (parent, name string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
