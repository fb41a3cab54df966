// =============================================================================
// NRML to HDF5 Converter - Source Model Types
// =============================================================================
//
// This package contains the in-memory source model shared by the parser, the
// validator, the HDF5 mapping layer and the XLSX report. Keeping the types here
// avoids import cycles between those packages.
//
// OBJECT GRAPH:
//   SourceModel
//   └── SourceGroup (one per tectonic region or explicit <sourceGroup>)
//       └── Source (point, area, multi-point, simple fault, complex fault)
//           ├── Geometry
//           ├── MFD
//           ├── NodalPlanes
//           └── HypoDepths
//
// =============================================================================

package sourcemodel

// =============================================================================
// SOURCE KINDS
// =============================================================================

// Kind identifies the typology of a seismic source. The values are the NRML
// element names so they can be written and read back without a lookup table.
type Kind string

const (
	KindPoint        Kind = "pointSource"
	KindArea         Kind = "areaSource"
	KindMultiPoint   Kind = "multiPointSource"
	KindSimpleFault  Kind = "simpleFaultSource"
	KindComplexFault Kind = "complexFaultSource"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindPoint, KindArea, KindMultiPoint, KindSimpleFault, KindComplexFault}

// IsKnown reports whether k is a supported source kind.
func (k Kind) IsKnown() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsFault reports whether the source is described by a fault surface.
func (k Kind) IsFault() bool {
	return k == KindSimpleFault || k == KindComplexFault
}

// IsDistributed reports whether the source carries nodal plane and hypocentral
// depth distributions.
func (k Kind) IsDistributed() bool {
	return k == KindPoint || k == KindArea || k == KindMultiPoint
}

// =============================================================================
// MODEL STRUCTURES
// =============================================================================

// SourceModel is the root of the object graph produced by the NRML parser.
type SourceModel struct {
	// Name is the value of the sourceModel name attribute.
	Name string

	// NRMLVersion is the schema version taken from the root namespace
	// (for example "0.4" or "0.5").
	NRMLVersion string

	// InvestigationTime is the time span in years the occurrence rates refer to.
	InvestigationTime float64

	// Settings records the discretization policy used while parsing.
	Settings Settings

	// Groups holds the source groups in document order.
	Groups []*SourceGroup
}

// Settings is the discretization policy applied by the parser. It is stored on
// the model so the container records how the sources were built.
type Settings struct {
	AreaSourceDiscretization float64
	MFDBinWidth              float64
	RuptureMeshSpacing       float64
	ComplexFaultMeshSpacing  float64
}

// SourceGroup is a set of sources sharing a tectonic region.
type SourceGroup struct {
	Name           string
	TectonicRegion string
	Sources        []*Source
}

// Source is a single seismic source.
type Source struct {
	ID             string
	Name           string
	Kind           Kind
	TectonicRegion string

	// MagScaleRel is the name of the magnitude scaling relationship.
	MagScaleRel string

	// RuptAspectRatio is the rupture length/width ratio.
	RuptAspectRatio float64

	// Rake is only meaningful for fault sources.
	Rake float64

	MFD         MFD
	NodalPlanes []NodalPlane
	HypoDepths  []HypoDepth
	Geometry    Geometry
}

// Point is a geographic location. Depth is in km and is zero for surface points.
type Point struct {
	Lon   float64
	Lat   float64
	Depth float64
}

// Geometry holds the spatial description of a source. Which fields are used
// depends on the source kind:
//   - point:         Points[0]
//   - multi-point:   Points
//   - area:          Points is the polygon ring, Mesh the discretized grid
//   - simple fault:  Points is the fault trace, Dip is set
//   - complex fault: Edges from top to bottom
type Geometry struct {
	Points []Point
	Edges  [][]Point
	Mesh   []Point

	UpperSeismoDepth float64
	LowerSeismoDepth float64
	Dip              float64

	// Discretization is the area source grid spacing in km.
	Discretization float64

	// MeshSpacing is the fault surface mesh spacing in km.
	MeshSpacing float64
}

// NodalPlane is one entry of a nodal plane distribution.
type NodalPlane struct {
	Probability float64
	Strike      float64
	Dip         float64
	Rake        float64
}

// HypoDepth is one entry of a hypocentral depth distribution.
type HypoDepth struct {
	Probability float64
	Depth       float64
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats summarises the content of a model.
type Stats struct {
	Groups  int
	Sources int
	ByKind  map[Kind]int
}

// Stats counts groups and sources.
func (m *SourceModel) Stats() Stats {
	stats := Stats{ByKind: make(map[Kind]int)}
	if m == nil {
		return stats
	}
	stats.Groups = len(m.Groups)
	for _, group := range m.Groups {
		for _, src := range group.Sources {
			stats.Sources++
			stats.ByKind[src.Kind]++
		}
	}
	return stats
}

// Sources returns every source of the model in document order.
func (m *SourceModel) Sources() []*Source {
	var out []*Source
	for _, group := range m.Groups {
		out = append(out, group.Sources...)
	}
	return out
}
