// =============================================================================
// NRML to HDF5 Converter - Container Layout
// =============================================================================
//
// This file maps a source model onto the container hierarchy.
//
// LAYOUT:
//   /sourceModel                  attrs: name, investigation_time, nrml_version,
//   │                                    format, format_version, num_groups,
//   │                                    settings_* (discretization policy)
//   └── grp-000                   attrs: name, tectonic_region, num_sources
//       └── src-0000              attrs: id, name, kind, tectonic_region, ...
//           │                     datasets: points, mesh, edge-NNN,
//           │                               nodal_planes, hypo_depths
//           └── mfd               attrs: kind, parameters of single MFDs
//                                 datasets: occur_rates, magnitudes,
//                                           binned_rates, per-point arrays
//
// Scalars are group attributes of the tree; hdf5.go decides how they are
// stored in the file. Arrays are one-dimensional float64 datasets with
// multi-column data flattened row-major. Empty arrays are not written.
//
// =============================================================================

package hdf5store

import (
	"fmt"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

const (
	// RootName is the name of the root entry holding the serialized model.
	RootName = "sourceModel"

	// FormatName and FormatVersion identify the layout written by Encode.
	FormatName    = "nrml2hdf5"
	FormatVersion = 1
)

// Encode maps model onto a container tree. Encoding the same model twice
// yields identical trees.
func Encode(model *sourcemodel.SourceModel) *Tree {
	root := NewGroup(RootName)
	root.SetString("name", model.Name)
	root.SetAttr("investigation_time", model.InvestigationTime)
	root.SetString("nrml_version", model.NRMLVersion)
	root.SetAttr("format", FormatName)
	root.SetAttr("format_version", int64(FormatVersion))
	root.SetAttr("num_groups", int64(len(model.Groups)))

	s := model.Settings
	root.SetAttr("settings_area_source_discretization", s.AreaSourceDiscretization)
	root.SetAttr("settings_mfd_bin_width", s.MFDBinWidth)
	root.SetAttr("settings_rupture_mesh_spacing", s.RuptureMeshSpacing)
	root.SetAttr("settings_complex_fault_mesh_spacing", s.ComplexFaultMeshSpacing)

	for i, group := range model.Groups {
		g := root.AddGroup(groupName(i))
		g.SetString("name", group.Name)
		g.SetString("tectonic_region", group.TectonicRegion)
		g.SetAttr("num_sources", int64(len(group.Sources)))
		for j, src := range group.Sources {
			encodeSource(g.AddGroup(sourceName(j)), src)
		}
	}
	return &Tree{Root: root}
}

func groupName(i int) string  { return fmt.Sprintf("grp-%03d", i) }
func sourceName(i int) string { return fmt.Sprintf("src-%04d", i) }
func edgeName(i int) string   { return fmt.Sprintf("edge-%03d", i) }

func encodeSource(g *Group, src *sourcemodel.Source) {
	g.SetString("id", src.ID)
	g.SetString("name", src.Name)
	g.SetAttr("kind", string(src.Kind))
	g.SetString("tectonic_region", src.TectonicRegion)
	g.SetString("mag_scale_rel", src.MagScaleRel)
	g.SetAttr("rupt_aspect_ratio", src.RuptAspectRatio)

	geom := src.Geometry
	g.SetAttr("upper_seismo_depth", geom.UpperSeismoDepth)
	g.SetAttr("lower_seismo_depth", geom.LowerSeismoDepth)
	if src.Kind.IsFault() {
		g.SetAttr("rake", src.Rake)
		g.SetAttr("mesh_spacing", geom.MeshSpacing)
	}
	if src.Kind == sourcemodel.KindSimpleFault {
		g.SetAttr("dip", geom.Dip)
	}
	if src.Kind == sourcemodel.KindArea {
		g.SetAttr("discretization", geom.Discretization)
	}

	g.AddDataset("points", flattenLonLat(geom.Points))
	g.AddDataset("mesh", flattenLonLat(geom.Mesh))
	for i, edge := range geom.Edges {
		g.AddDataset(edgeName(i), flattenLonLatDepth(edge))
	}

	planes := make([]float64, 0, 4*len(src.NodalPlanes))
	for _, np := range src.NodalPlanes {
		planes = append(planes, np.Probability, np.Strike, np.Dip, np.Rake)
	}
	g.AddDataset("nodal_planes", planes)

	depths := make([]float64, 0, 2*len(src.HypoDepths))
	for _, hd := range src.HypoDepths {
		depths = append(depths, hd.Probability, hd.Depth)
	}
	g.AddDataset("hypo_depths", depths)

	encodeMFD(g.AddGroup("mfd"), src.MFD)
}

func encodeMFD(g *Group, mfd sourcemodel.MFD) {
	g.SetAttr("kind", string(mfd.Kind))

	if mfd.Kind == sourcemodel.MFDMulti {
		g.SetAttr("component_kind", string(mfd.ComponentKind))
		g.SetAttr("size", int64(len(mfd.Components)))
		encodeMultiArrays(g, mfd)
	} else {
		encodeSingle(g, mfd)
	}

	bins := mfd.OccurrenceRates()
	binned := make([]float64, 0, 2*len(bins))
	for _, b := range bins {
		binned = append(binned, b.Mag, b.Rate)
	}
	g.AddDataset("binned_rates", binned)
}

func encodeSingle(g *Group, mfd sourcemodel.MFD) {
	switch mfd.Kind {
	case sourcemodel.MFDTruncatedGR:
		g.SetAttr("a_value", mfd.AValue)
		g.SetAttr("b_value", mfd.BValue)
		g.SetAttr("min_mag", mfd.MinMag)
		g.SetAttr("max_mag", mfd.MaxMag)
		g.SetAttr("bin_width", mfd.BinWidth)
	case sourcemodel.MFDIncremental:
		g.SetAttr("min_mag", mfd.MinMag)
		g.SetAttr("bin_width", mfd.BinWidth)
		g.AddDataset("occur_rates", mfd.Rates)
	case sourcemodel.MFDArbitrary:
		g.AddDataset("occur_rates", mfd.Rates)
		g.AddDataset("magnitudes", mfd.Magnitudes)
	}
}

// encodeMultiArrays writes one array per parameter, as multiMFD does in NRML.
// Variable-length rate arrays are concatenated and split by "lengths".
func encodeMultiArrays(g *Group, mfd sourcemodel.MFD) {
	n := len(mfd.Components)
	column := func(get func(sourcemodel.MFD) float64) []float64 {
		out := make([]float64, n)
		for i, c := range mfd.Components {
			out[i] = get(c)
		}
		return out
	}
	concat := func(get func(sourcemodel.MFD) []float64) []float64 {
		var out []float64
		for _, c := range mfd.Components {
			out = append(out, get(c)...)
		}
		return out
	}
	lengths := column(func(c sourcemodel.MFD) float64 { return float64(len(c.Rates)) })

	switch mfd.ComponentKind {
	case sourcemodel.MFDTruncatedGR:
		g.AddDataset("min_mag", column(func(c sourcemodel.MFD) float64 { return c.MinMag }))
		g.AddDataset("max_mag", column(func(c sourcemodel.MFD) float64 { return c.MaxMag }))
		g.AddDataset("a_val", column(func(c sourcemodel.MFD) float64 { return c.AValue }))
		g.AddDataset("b_val", column(func(c sourcemodel.MFD) float64 { return c.BValue }))
		g.AddDataset("bin_width", column(func(c sourcemodel.MFD) float64 { return c.BinWidth }))
	case sourcemodel.MFDIncremental:
		g.AddDataset("min_mag", column(func(c sourcemodel.MFD) float64 { return c.MinMag }))
		g.AddDataset("bin_width", column(func(c sourcemodel.MFD) float64 { return c.BinWidth }))
		g.AddDataset("occur_rates", concat(func(c sourcemodel.MFD) []float64 { return c.Rates }))
		g.AddDataset("lengths", lengths)
	case sourcemodel.MFDArbitrary:
		g.AddDataset("occur_rates", concat(func(c sourcemodel.MFD) []float64 { return c.Rates }))
		g.AddDataset("magnitudes", concat(func(c sourcemodel.MFD) []float64 { return c.Magnitudes }))
		g.AddDataset("lengths", lengths)
	}
}

func flattenLonLat(points []sourcemodel.Point) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p.Lon, p.Lat)
	}
	return out
}

func flattenLonLatDepth(points []sourcemodel.Point) []float64 {
	out := make([]float64, 0, 3*len(points))
	for _, p := range points {
		out = append(out, p.Lon, p.Lat, p.Depth)
	}
	return out
}
