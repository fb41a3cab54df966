package hdf5store

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

// Decode rebuilds a source model from a container tree written by Encode.
// Derived datasets (binned rates) are ignored; area meshes are read back.
func Decode(tree *Tree) (*sourcemodel.SourceModel, error) {
	if tree == nil || tree.Root == nil {
		return nil, errors.New("container has no root entry")
	}
	root := tree.Root
	if root.Name != RootName {
		return nil, fmt.Errorf("root entry is %q, expected %q", root.Name, RootName)
	}
	if format, err := root.String("format"); err != nil {
		return nil, err
	} else if format != FormatName {
		return nil, fmt.Errorf("unknown container format %q", format)
	}
	version, err := root.Int("format_version")
	if err != nil {
		return nil, err
	}
	if version > FormatVersion {
		return nil, fmt.Errorf("container format version %d is newer than %d", version, FormatVersion)
	}

	r := reader{}
	model := &sourcemodel.SourceModel{
		Name:              r.str(root, "name"),
		NRMLVersion:       r.str(root, "nrml_version"),
		InvestigationTime: r.float(root, "investigation_time"),
		Settings: sourcemodel.Settings{
			AreaSourceDiscretization: r.float(root, "settings_area_source_discretization"),
			MFDBinWidth:              r.float(root, "settings_mfd_bin_width"),
			RuptureMeshSpacing:       r.float(root, "settings_rupture_mesh_spacing"),
			ComplexFaultMeshSpacing:  r.float(root, "settings_complex_fault_mesh_spacing"),
		},
	}

	for _, g := range numbered(root.Groups, "grp-") {
		group := &sourcemodel.SourceGroup{
			Name:           r.str(g, "name"),
			TectonicRegion: r.str(g, "tectonic_region"),
		}
		for _, sg := range numbered(g.Groups, "src-") {
			src, err := decodeSource(sg)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", g.Name, sg.Name, err)
			}
			group.Sources = append(group.Sources, src)
		}
		model.Groups = append(model.Groups, group)
	}

	if want := r.int(root, "num_groups"); r.err == nil && want != len(model.Groups) {
		return nil, fmt.Errorf("container declares %d groups but holds %d", want, len(model.Groups))
	}
	return model, r.err
}

// reader keeps the first attribute conversion error.
type reader struct {
	err error
}

func (r *reader) str(g *Group, name string) string {
	s, err := g.String(name)
	if err != nil && r.err == nil {
		r.err = err
	}
	return s
}

func (r *reader) float(g *Group, name string) float64 {
	f, err := g.Float(name)
	if err != nil && r.err == nil {
		r.err = err
	}
	return f
}

func (r *reader) int(g *Group, name string) int {
	i, err := g.Int(name)
	if err != nil && r.err == nil {
		r.err = err
	}
	return i
}

// numbered returns the groups named prefix+N ordered by N.
func numbered(groups []*Group, prefix string) []*Group {
	type entry struct {
		index int
		group *Group
	}
	var entries []entry
	for _, g := range groups {
		if !strings.HasPrefix(g.Name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(g.Name, prefix))
		if err != nil {
			continue
		}
		entries = append(entries, entry{n, g})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	out := make([]*Group, len(entries))
	for i, e := range entries {
		out[i] = e.group
	}
	return out
}

func decodeSource(g *Group) (*sourcemodel.Source, error) {
	r := reader{}
	src := &sourcemodel.Source{
		ID:              r.str(g, "id"),
		Name:            r.str(g, "name"),
		Kind:            sourcemodel.Kind(r.str(g, "kind")),
		TectonicRegion:  r.str(g, "tectonic_region"),
		MagScaleRel:     r.str(g, "mag_scale_rel"),
		RuptAspectRatio: r.float(g, "rupt_aspect_ratio"),
		Rake:            r.float(g, "rake"),
		Geometry: sourcemodel.Geometry{
			UpperSeismoDepth: r.float(g, "upper_seismo_depth"),
			LowerSeismoDepth: r.float(g, "lower_seismo_depth"),
			Dip:              r.float(g, "dip"),
			Discretization:   r.float(g, "discretization"),
			MeshSpacing:      r.float(g, "mesh_spacing"),
		},
	}
	if r.err != nil {
		return nil, r.err
	}
	if !src.Kind.IsKnown() {
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}

	var err error
	if src.Geometry.Points, err = unflatten(g, "points", 2); err != nil {
		return nil, err
	}
	if src.Geometry.Mesh, err = unflatten(g, "mesh", 2); err != nil {
		return nil, err
	}
	for i := 0; ; i++ {
		if g.Dataset(edgeName(i)) == nil {
			break
		}
		edge, err := unflatten(g, edgeName(i), 3)
		if err != nil {
			return nil, err
		}
		src.Geometry.Edges = append(src.Geometry.Edges, edge)
	}

	if planes := g.Dataset("nodal_planes"); planes != nil {
		if len(planes)%4 != 0 {
			return nil, fmt.Errorf("nodal_planes has %d values, not a multiple of 4", len(planes))
		}
		for i := 0; i < len(planes); i += 4 {
			src.NodalPlanes = append(src.NodalPlanes, sourcemodel.NodalPlane{
				Probability: planes[i], Strike: planes[i+1], Dip: planes[i+2], Rake: planes[i+3],
			})
		}
	}
	if depths := g.Dataset("hypo_depths"); depths != nil {
		if len(depths)%2 != 0 {
			return nil, fmt.Errorf("hypo_depths has %d values, not a multiple of 2", len(depths))
		}
		for i := 0; i < len(depths); i += 2 {
			src.HypoDepths = append(src.HypoDepths, sourcemodel.HypoDepth{Probability: depths[i], Depth: depths[i+1]})
		}
	}

	mg := g.Group("mfd")
	if mg == nil {
		return nil, errors.New("missing mfd group")
	}
	if src.MFD, err = decodeMFD(mg); err != nil {
		return nil, fmt.Errorf("mfd: %w", err)
	}
	return src, nil
}

func decodeMFD(g *Group) (sourcemodel.MFD, error) {
	r := reader{}
	mfd := sourcemodel.MFD{Kind: sourcemodel.MFDKind(r.str(g, "kind"))}

	switch mfd.Kind {
	case sourcemodel.MFDTruncatedGR:
		mfd.AValue = r.float(g, "a_value")
		mfd.BValue = r.float(g, "b_value")
		mfd.MinMag = r.float(g, "min_mag")
		mfd.MaxMag = r.float(g, "max_mag")
		mfd.BinWidth = r.float(g, "bin_width")
	case sourcemodel.MFDIncremental:
		mfd.MinMag = r.float(g, "min_mag")
		mfd.BinWidth = r.float(g, "bin_width")
		mfd.Rates = g.Dataset("occur_rates")
	case sourcemodel.MFDArbitrary:
		mfd.Rates = g.Dataset("occur_rates")
		mfd.Magnitudes = g.Dataset("magnitudes")
	case sourcemodel.MFDMulti:
		mfd.ComponentKind = sourcemodel.MFDKind(r.str(g, "component_kind"))
		size := r.int(g, "size")
		if r.err != nil {
			return mfd, r.err
		}
		components, err := decodeMultiArrays(g, mfd.ComponentKind, size)
		if err != nil {
			return mfd, err
		}
		mfd.Components = components
	default:
		return mfd, fmt.Errorf("unknown kind %q", mfd.Kind)
	}
	return mfd, r.err
}

func decodeMultiArrays(g *Group, kind sourcemodel.MFDKind, size int) ([]sourcemodel.MFD, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}
	column := func(name string) ([]float64, error) {
		values := g.Dataset(name)
		if len(values) != size {
			return nil, fmt.Errorf("%s has %d values, expected %d", name, len(values), size)
		}
		return values, nil
	}
	split := func(name string) ([][]float64, error) {
		lengths, err := column("lengths")
		if err != nil {
			return nil, err
		}
		values := g.Dataset(name)
		out := make([][]float64, size)
		offset := 0
		for i, l := range lengths {
			n := int(l)
			if n < 0 || offset+n > len(values) {
				return nil, fmt.Errorf("lengths do not match %d %s", len(values), name)
			}
			out[i] = values[offset : offset+n]
			offset += n
		}
		if offset != len(values) {
			return nil, fmt.Errorf("lengths cover %d of %d %s", offset, len(values), name)
		}
		return out, nil
	}

	components := make([]sourcemodel.MFD, size)
	switch kind {
	case sourcemodel.MFDTruncatedGR:
		var cols [5][]float64
		for i, name := range []string{"min_mag", "max_mag", "a_val", "b_val", "bin_width"} {
			values, err := column(name)
			if err != nil {
				return nil, err
			}
			cols[i] = values
		}
		for i := range components {
			components[i] = sourcemodel.MFD{
				Kind: kind, MinMag: cols[0][i], MaxMag: cols[1][i],
				AValue: cols[2][i], BValue: cols[3][i], BinWidth: cols[4][i],
			}
		}
	case sourcemodel.MFDIncremental:
		minMags, err := column("min_mag")
		if err != nil {
			return nil, err
		}
		widths, err := column("bin_width")
		if err != nil {
			return nil, err
		}
		rates, err := split("occur_rates")
		if err != nil {
			return nil, err
		}
		for i := range components {
			components[i] = sourcemodel.MFD{Kind: kind, MinMag: minMags[i], BinWidth: widths[i], Rates: rates[i]}
		}
	case sourcemodel.MFDArbitrary:
		rates, err := split("occur_rates")
		if err != nil {
			return nil, err
		}
		mags, err := split("magnitudes")
		if err != nil {
			return nil, err
		}
		for i := range components {
			components[i] = sourcemodel.MFD{Kind: kind, Rates: rates[i], Magnitudes: mags[i]}
		}
	default:
		return nil, fmt.Errorf("unknown component kind %q", kind)
	}
	return components, nil
}

func unflatten(g *Group, name string, dim int) ([]sourcemodel.Point, error) {
	values := g.Dataset(name)
	if values == nil {
		return nil, nil
	}
	if len(values)%dim != 0 {
		return nil, fmt.Errorf("%s has %d values, not a multiple of %d", name, len(values), dim)
	}
	points := make([]sourcemodel.Point, 0, len(values)/dim)
	for i := 0; i < len(values); i += dim {
		p := sourcemodel.Point{Lon: values[i], Lat: values[i+1]}
		if dim == 3 {
			p.Depth = values[i+2]
		}
		points = append(points, p)
	}
	return points, nil
}
