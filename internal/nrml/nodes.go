// =============================================================================
// NRML to HDF5 Converter - NRML Document Nodes
// =============================================================================
//
// This file declares the XML node structures decoded from an NRML document.
// Tags carry no namespace, so both nrml/0.4 and nrml/0.5 documents (and the
// gml: prefixed geometry elements) match by local name.
//
// DOCUMENT STRUCTURE (NRML 0.5):
//   <nrml xmlns="http://openquake.org/xmlns/nrml/0.5">
//     <sourceModel name="...">
//       <sourceGroup name="..." tectonicRegion="...">
//         <areaSource id="1" name="..." tectonicRegion="...">
//           <areaGeometry>...</areaGeometry>
//           <magScaleRel>WC1994</magScaleRel>
//           <ruptAspectRatio>1.5</ruptAspectRatio>
//           <truncGutenbergRichterMFD aValue="..." bValue="..." minMag="..." maxMag="..."/>
//           <nodalPlaneDist>...</nodalPlaneDist>
//           <hypoDepthDist>...</hypoDepthDist>
//         </areaSource>
//       </sourceGroup>
//     </sourceModel>
//   </nrml>
//
//   NRML 0.4 documents place sources directly under <sourceModel>.
//
// =============================================================================

package nrml

import (
	"encoding/xml"
	"fmt"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

// =============================================================================
// ROOT AND CONTAINERS
// =============================================================================

type documentNode struct {
	XMLName     xml.Name
	SourceModel *sourceModelNode `xml:"sourceModel"`
}

// sourceModelNode decodes its children by hand so sources keep document order
// whether they sit in <sourceGroup> elements or directly under the model.
type sourceModelNode struct {
	Name              string
	InvestigationTime string
	Groups            []*sourceGroupNode
	Loose             []*sourceNode
}

type sourceGroupNode struct {
	Name           string
	TectonicRegion string
	Sources        []*sourceNode
}

func (n *sourceModelNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Name = attr(start, "name")
	n.InvestigationTime = attr(start, "investigation_time")
	return decodeChildren(d, func(child xml.StartElement) error {
		if child.Name.Local == "sourceGroup" {
			group := &sourceGroupNode{}
			if err := d.DecodeElement(group, &child); err != nil {
				return err
			}
			n.Groups = append(n.Groups, group)
			return nil
		}
		src, err := decodeSource(d, child)
		if err != nil || src == nil {
			return err
		}
		n.Loose = append(n.Loose, src)
		return nil
	})
}

func (n *sourceGroupNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Name = attr(start, "name")
	n.TectonicRegion = attr(start, "tectonicRegion")
	return decodeChildren(d, func(child xml.StartElement) error {
		src, err := decodeSource(d, child)
		if err != nil || src == nil {
			return err
		}
		n.Sources = append(n.Sources, src)
		return nil
	})
}

// decodeChildren calls fn for each direct child element and stops at the
// matching end element.
func decodeChildren(d *xml.Decoder, fn func(xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// decodeSource decodes a source element, or skips unknown elements and
// returns nil.
func decodeSource(d *xml.Decoder, start xml.StartElement) (*sourceNode, error) {
	kind := sourcemodel.Kind(start.Name.Local)
	if !kind.IsKnown() {
		return nil, d.Skip()
	}
	src := &sourceNode{Kind: kind}
	if err := d.DecodeElement(src, &start); err != nil {
		return nil, fmt.Errorf("%s %q: %w", kind, attr(start, "id"), err)
	}
	return src, nil
}

func attr(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// =============================================================================
// SOURCES
// =============================================================================

type sourceNode struct {
	Kind sourcemodel.Kind `xml:"-"`

	ID             string `xml:"id,attr"`
	Name           string `xml:"name,attr"`
	TectonicRegion string `xml:"tectonicRegion,attr"`

	PointGeometry        *pointGeometryNode        `xml:"pointGeometry"`
	AreaGeometry         *areaGeometryNode         `xml:"areaGeometry"`
	MultiPointGeometry   *multiPointGeometryNode   `xml:"multiPointGeometry"`
	SimpleFaultGeometry  *simpleFaultGeometryNode  `xml:"simpleFaultGeometry"`
	ComplexFaultGeometry *complexFaultGeometryNode `xml:"complexFaultGeometry"`

	MagScaleRel     string `xml:"magScaleRel"`
	RuptAspectRatio string `xml:"ruptAspectRatio"`
	Rake            string `xml:"rake"`

	TruncGR     *truncGRNode     `xml:"truncGutenbergRichterMFD"`
	Incremental *incrementalNode `xml:"incrementalMFD"`
	Arbitrary   *arbitraryNode   `xml:"arbitraryMFD"`
	Multi       *multiMFDNode    `xml:"multiMFD"`

	NodalPlanes []nodalPlaneNode `xml:"nodalPlaneDist>nodalPlane"`
	HypoDepths  []hypoDepthNode  `xml:"hypoDepthDist>hypoDepth"`
}

// =============================================================================
// GEOMETRY
// =============================================================================

type depthsNode struct {
	UpperSeismoDepth string `xml:"upperSeismoDepth"`
	LowerSeismoDepth string `xml:"lowerSeismoDepth"`
}

type pointGeometryNode struct {
	Pos string `xml:"Point>pos"`
	depthsNode
}

type areaGeometryNode struct {
	PosList string `xml:"Polygon>exterior>LinearRing>posList"`
	depthsNode
}

type multiPointGeometryNode struct {
	PosList string `xml:"posList"`
	depthsNode
}

type simpleFaultGeometryNode struct {
	PosList string `xml:"LineString>posList"`
	Dip     string `xml:"dip"`
	depthsNode
}

type complexFaultGeometryNode struct {
	Top          string   `xml:"faultTopEdge>LineString>posList"`
	Intermediate []string `xml:"intermediateEdge>LineString>posList"`
	Bottom       string   `xml:"faultBottomEdge>LineString>posList"`
}

// =============================================================================
// MAGNITUDE FREQUENCY DISTRIBUTIONS
// =============================================================================

type truncGRNode struct {
	AValue string `xml:"aValue,attr"`
	BValue string `xml:"bValue,attr"`
	MinMag string `xml:"minMag,attr"`
	MaxMag string `xml:"maxMag,attr"`
}

type incrementalNode struct {
	MinMag     string `xml:"minMag,attr"`
	BinWidth   string `xml:"binWidth,attr"`
	OccurRates string `xml:"occurRates"`
}

type arbitraryNode struct {
	OccurRates string `xml:"occurRates"`
	Magnitudes string `xml:"magnitudes"`
}

// multiMFDNode holds one array per parameter. Arrays of length one are
// broadcast to every point; variable-length rate arrays are split by Lengths.
type multiMFDNode struct {
	Kind       string `xml:"kind,attr"`
	Size       string `xml:"size,attr"`
	MinMag     string `xml:"min_mag"`
	MaxMag     string `xml:"max_mag"`
	BinWidth   string `xml:"bin_width"`
	AValue     string `xml:"a_val"`
	BValue     string `xml:"b_val"`
	OccurRates string `xml:"occurRates"`
	Magnitudes string `xml:"magnitudes"`
	Lengths    string `xml:"lengths"`
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

type nodalPlaneNode struct {
	Probability string `xml:"probability,attr"`
	Strike      string `xml:"strike,attr"`
	Dip         string `xml:"dip,attr"`
	Rake        string `xml:"rake,attr"`
}

type hypoDepthNode struct {
	Probability string `xml:"probability,attr"`
	Depth       string `xml:"depth,attr"`
}
