// =============================================================================
// NRML to HDF5 Converter - NRML Parser
// =============================================================================
//
// This module turns an NRML source model document into the in-memory object
// graph defined by the sourcemodel package.
//
// PARSING PIPELINE:
//   1. Decode the XML into node structures (nodes.go)
//   2. Detect the NRML version from the root namespace
//   3. Build one sourcemodel.Source per source node, applying the
//      discretization options (area spacing, MFD bin width, mesh spacing)
//   4. Group loose (NRML 0.4) sources by tectonic region
//
// The parser does not validate domain invariants such as probability sums;
// that is done by sourcemodel.Validate.
//
// =============================================================================

package nrml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Default discretization policy.
const (
	DefaultAreaSourceDiscretization = 10.0
	DefaultMFDBinWidth              = 0.1
	DefaultInvestigationTime        = 50.0
	DefaultRuptureMeshSpacing       = 5.0
	DefaultComplexFaultMeshSpacing  = 5.0
)

// namespacePrefix is the namespace of every NRML document, followed by the
// schema version.
const namespacePrefix = "http://openquake.org/xmlns/nrml/"

// SupportedVersions lists the NRML versions this parser understands.
var SupportedVersions = []string{"0.4", "0.5"}

// ErrNotNRML is returned when the root element is not <nrml>.
var ErrNotNRML = errors.New("not an NRML document")

// Options controls how sources are discretized while parsing.
type Options struct {
	// AreaSourceDiscretization is the grid spacing in km used for area sources.
	AreaSourceDiscretization float64

	// MFDBinWidth is the bin width of truncated Gutenberg-Richter MFDs.
	MFDBinWidth float64

	// InvestigationTime is used when the sourceModel element does not set one.
	InvestigationTime float64

	// RuptureMeshSpacing is recorded on simple fault sources.
	RuptureMeshSpacing float64

	// ComplexFaultMeshSpacing is recorded on complex fault sources.
	ComplexFaultMeshSpacing float64
}

// DefaultOptions returns the default discretization policy.
func DefaultOptions() Options {
	return Options{
		AreaSourceDiscretization: DefaultAreaSourceDiscretization,
		MFDBinWidth:              DefaultMFDBinWidth,
		InvestigationTime:        DefaultInvestigationTime,
		RuptureMeshSpacing:       DefaultRuptureMeshSpacing,
		ComplexFaultMeshSpacing:  DefaultComplexFaultMeshSpacing,
	}
}

func (o Options) settings() sourcemodel.Settings {
	return sourcemodel.Settings{
		AreaSourceDiscretization: o.AreaSourceDiscretization,
		MFDBinWidth:              o.MFDBinWidth,
		RuptureMeshSpacing:       o.RuptureMeshSpacing,
		ComplexFaultMeshSpacing:  o.ComplexFaultMeshSpacing,
	}
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Parse reads the NRML file at path.
//
// RETURNS:
//   - The parsed source model.
//   - An error if the file cannot be opened or is not a valid source model.
func Parse(path string, opts Options) (*sourcemodel.SourceModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	model, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

// Decode parses an NRML document from r.
func Decode(r io.Reader, opts Options) (*sourcemodel.SourceModel, error) {
	var doc documentNode
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed XML: %w", err)
	}

	if doc.XMLName.Local != "nrml" {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrNotNRML, doc.XMLName.Local)
	}
	version, err := detectVersion(doc.XMLName.Space)
	if err != nil {
		return nil, err
	}
	if doc.SourceModel == nil {
		return nil, errors.New("document has no <sourceModel> element")
	}

	return buildModel(doc.SourceModel, version, opts)
}

func detectVersion(namespace string) (string, error) {
	if !strings.HasPrefix(namespace, namespacePrefix) {
		return "", fmt.Errorf("%w: unexpected namespace %q", ErrNotNRML, namespace)
	}
	version := strings.TrimSuffix(strings.TrimPrefix(namespace, namespacePrefix), "/")
	for _, supported := range SupportedVersions {
		if version == supported {
			return version, nil
		}
	}
	return "", fmt.Errorf("unsupported NRML version %q (supported: %s)", version, strings.Join(SupportedVersions, ", "))
}

// =============================================================================
// MODEL BUILDING
// =============================================================================

func buildModel(node *sourceModelNode, version string, opts Options) (*sourcemodel.SourceModel, error) {
	model := &sourcemodel.SourceModel{
		Name:              strings.TrimSpace(node.Name),
		NRMLVersion:       version,
		InvestigationTime: opts.InvestigationTime,
		Settings:          opts.settings(),
	}
	if node.InvestigationTime != "" {
		t, err := parseFloat("investigation_time", node.InvestigationTime)
		if err != nil {
			return nil, err
		}
		model.InvestigationTime = t
	}

	for _, groupNode := range node.Groups {
		group := &sourcemodel.SourceGroup{
			Name:           strings.TrimSpace(groupNode.Name),
			TectonicRegion: strings.TrimSpace(groupNode.TectonicRegion),
		}
		for _, srcNode := range groupNode.Sources {
			src, err := buildSource(srcNode, opts)
			if err != nil {
				return nil, err
			}
			if src.TectonicRegion == "" {
				src.TectonicRegion = group.TectonicRegion
			}
			if group.TectonicRegion == "" {
				group.TectonicRegion = src.TectonicRegion
			}
			group.Sources = append(group.Sources, src)
		}
		model.Groups = append(model.Groups, group)
	}

	// Loose sources are grouped by tectonic region in first-appearance order.
	byRegion := make(map[string]*sourcemodel.SourceGroup)
	for _, srcNode := range node.Loose {
		src, err := buildSource(srcNode, opts)
		if err != nil {
			return nil, err
		}
		group, ok := byRegion[src.TectonicRegion]
		if !ok {
			group = &sourcemodel.SourceGroup{Name: src.TectonicRegion, TectonicRegion: src.TectonicRegion}
			byRegion[src.TectonicRegion] = group
			model.Groups = append(model.Groups, group)
		}
		group.Sources = append(group.Sources, src)
	}

	return model, nil
}

func buildSource(node *sourceNode, opts Options) (*sourcemodel.Source, error) {
	src := &sourcemodel.Source{
		ID:             strings.TrimSpace(node.ID),
		Name:           strings.TrimSpace(node.Name),
		Kind:           node.Kind,
		TectonicRegion: strings.TrimSpace(node.TectonicRegion),
		MagScaleRel:    strings.TrimSpace(node.MagScaleRel),
	}
	wrap := func(err error) error {
		return fmt.Errorf("%s %q: %w", node.Kind, src.ID, err)
	}

	var err error
	if src.RuptAspectRatio, err = parseFloat("ruptAspectRatio", node.RuptAspectRatio); err != nil {
		return nil, wrap(err)
	}
	if src.Geometry, err = buildGeometry(node, opts); err != nil {
		return nil, wrap(err)
	}
	if src.Kind.IsFault() {
		if src.Rake, err = parseFloat("rake", node.Rake); err != nil {
			return nil, wrap(err)
		}
	}
	if src.MFD, err = buildMFD(node, len(src.Geometry.Points), opts); err != nil {
		return nil, wrap(err)
	}
	if src.Kind.IsDistributed() {
		if src.NodalPlanes, err = buildNodalPlanes(node.NodalPlanes); err != nil {
			return nil, wrap(err)
		}
		if src.HypoDepths, err = buildHypoDepths(node.HypoDepths); err != nil {
			return nil, wrap(err)
		}
	}
	return src, nil
}

func buildGeometry(node *sourceNode, opts Options) (sourcemodel.Geometry, error) {
	var g sourcemodel.Geometry
	var err error

	switch node.Kind {
	case sourcemodel.KindPoint:
		if node.PointGeometry == nil {
			return g, errors.New("missing <pointGeometry>")
		}
		if g.Points, err = parsePoints("gml:pos", node.PointGeometry.Pos, 2); err != nil {
			return g, err
		}
		err = parseDepths(&g, node.PointGeometry.depthsNode)

	case sourcemodel.KindArea:
		if node.AreaGeometry == nil {
			return g, errors.New("missing <areaGeometry>")
		}
		if g.Points, err = parsePoints("gml:posList", node.AreaGeometry.PosList, 2); err != nil {
			return g, err
		}
		g.Points = openRing(g.Points)
		g.Discretization = opts.AreaSourceDiscretization
		g.Mesh = sourcemodel.Discretize(g.Points, g.Discretization)
		err = parseDepths(&g, node.AreaGeometry.depthsNode)

	case sourcemodel.KindMultiPoint:
		if node.MultiPointGeometry == nil {
			return g, errors.New("missing <multiPointGeometry>")
		}
		if g.Points, err = parsePoints("gml:posList", node.MultiPointGeometry.PosList, 2); err != nil {
			return g, err
		}
		err = parseDepths(&g, node.MultiPointGeometry.depthsNode)

	case sourcemodel.KindSimpleFault:
		geom := node.SimpleFaultGeometry
		if geom == nil {
			return g, errors.New("missing <simpleFaultGeometry>")
		}
		if g.Points, err = parsePoints("gml:posList", geom.PosList, 2); err != nil {
			return g, err
		}
		if g.Dip, err = parseFloat("dip", geom.Dip); err != nil {
			return g, err
		}
		g.MeshSpacing = opts.RuptureMeshSpacing
		err = parseDepths(&g, geom.depthsNode)

	case sourcemodel.KindComplexFault:
		geom := node.ComplexFaultGeometry
		if geom == nil {
			return g, errors.New("missing <complexFaultGeometry>")
		}
		lists := append([]string{geom.Top}, geom.Intermediate...)
		lists = append(lists, geom.Bottom)
		for i, list := range lists {
			edge, err := parsePoints(fmt.Sprintf("edge %d", i), list, 3)
			if err != nil {
				return g, err
			}
			g.Edges = append(g.Edges, edge)
		}
		g.MeshSpacing = opts.ComplexFaultMeshSpacing
		g.UpperSeismoDepth, g.LowerSeismoDepth = edgeDepthRange(g.Edges)
	}
	return g, err
}

func parseDepths(g *sourcemodel.Geometry, node depthsNode) error {
	var err error
	if g.UpperSeismoDepth, err = parseFloat("upperSeismoDepth", node.UpperSeismoDepth); err != nil {
		return err
	}
	g.LowerSeismoDepth, err = parseFloat("lowerSeismoDepth", node.LowerSeismoDepth)
	return err
}

// openRing drops the closing vertex of a polygon ring when it repeats the first.
func openRing(points []sourcemodel.Point) []sourcemodel.Point {
	if n := len(points); n > 3 && points[0] == points[n-1] {
		return points[:n-1]
	}
	return points
}

func edgeDepthRange(edges [][]sourcemodel.Point) (float64, float64) {
	first := true
	var lo, hi float64
	for _, edge := range edges {
		for _, p := range edge {
			if first {
				lo, hi, first = p.Depth, p.Depth, false
				continue
			}
			if p.Depth < lo {
				lo = p.Depth
			}
			if p.Depth > hi {
				hi = p.Depth
			}
		}
	}
	return lo, hi
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

func buildNodalPlanes(nodes []nodalPlaneNode) ([]sourcemodel.NodalPlane, error) {
	planes := make([]sourcemodel.NodalPlane, 0, len(nodes))
	for i, n := range nodes {
		values, err := parseAll(
			field{"probability", n.Probability}, field{"strike", n.Strike},
			field{"dip", n.Dip}, field{"rake", n.Rake},
		)
		if err != nil {
			return nil, fmt.Errorf("nodalPlane %d: %w", i, err)
		}
		planes = append(planes, sourcemodel.NodalPlane{
			Probability: values[0], Strike: values[1], Dip: values[2], Rake: values[3],
		})
	}
	return planes, nil
}

func buildHypoDepths(nodes []hypoDepthNode) ([]sourcemodel.HypoDepth, error) {
	depths := make([]sourcemodel.HypoDepth, 0, len(nodes))
	for i, n := range nodes {
		values, err := parseAll(field{"probability", n.Probability}, field{"depth", n.Depth})
		if err != nil {
			return nil, fmt.Errorf("hypoDepth %d: %w", i, err)
		}
		depths = append(depths, sourcemodel.HypoDepth{Probability: values[0], Depth: values[1]})
	}
	return depths, nil
}

// =============================================================================
// NUMBER PARSING
// =============================================================================

type field struct {
	name  string
	value string
}

func parseAll(fields ...field) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f.name, f.value)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloat(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseFloats(name, raw string) ([]float64, error) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("missing %s", name)
	}
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", name, part)
		}
		out[i] = v
	}
	return out, nil
}

// parsePoints reads a flat coordinate list with dim values per point
// (lon lat, or lon lat depth).
func parsePoints(name, raw string, dim int) ([]sourcemodel.Point, error) {
	values, err := parseFloats(name, raw)
	if err != nil {
		return nil, err
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
