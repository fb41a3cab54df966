// =============================================================================
// NRML to HDF5 Converter - Source Model Validation
// =============================================================================
//
// This file validates a parsed source model before it is written. Validation
// runs at two levels:
//   1. Source-level: identifiers, geometry, MFD and distributions
//   2. Model-level:  duplicate source identifiers, empty models
//
// ERROR HANDLING:
//   - Problems are collected for every source, not just the first one
//   - Each problem names the source id and the offending field
//   - The aggregated *ModelError is returned when at least one problem exists
//
// =============================================================================

package sourcemodel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// probabilityTolerance is the accepted deviation of a distribution sum from 1.
const probabilityTolerance = 1e-6

// =============================================================================
// ERROR TYPES
// =============================================================================

// Problem is a single validation failure.
type Problem struct {
	// SourceID is empty for model-level problems.
	SourceID string

	// Field is the offending field ("geometry", "mfd", ...).
	Field string

	Message string
}

func (p Problem) String() string {
	if p.SourceID == "" {
		return fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return fmt.Sprintf("source %q: %s: %s", p.SourceID, p.Field, p.Message)
}

// ModelError aggregates every validation problem found in a model.
type ModelError struct {
	Problems []Problem
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid source model: " + e.Problems[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid source model: %d problems", len(e.Problems))
	for _, p := range e.Problems {
		b.WriteString("; ")
		b.WriteString(p.String())
	}
	return b.String()
}

// =============================================================================
// MODEL VALIDATION
// =============================================================================

// Validate checks the whole model and returns a *ModelError describing every
// problem, or nil.
func Validate(m *SourceModel) error {
	if m == nil {
		return &ModelError{Problems: []Problem{{Field: "model", Message: "is nil"}}}
	}

	var problems []Problem
	if m.InvestigationTime <= 0 {
		problems = append(problems, Problem{Field: "investigation_time", Message: "must be greater than 0"})
	}

	seen := make(map[string]int)
	total := 0
	for _, group := range m.Groups {
		for _, src := range group.Sources {
			total++
			seen[src.ID]++
			if err := src.Validate(); err != nil {
				problems = append(problems, problemsFrom(src.ID, err)...)
			}
		}
	}
	if total == 0 {
		problems = append(problems, Problem{Field: "sources", Message: "model contains no sources"})
	}

	var duplicates []string
	for id, count := range seen {
		if count > 1 && id != "" {
			duplicates = append(duplicates, id)
		}
	}
	sort.Strings(duplicates)
	for _, id := range duplicates {
		problems = append(problems, Problem{SourceID: id, Field: "id", Message: fmt.Sprintf("duplicated %d times", seen[id])})
	}

	if len(problems) == 0 {
		return nil
	}
	return &ModelError{Problems: problems}
}

// problemsFrom flattens ozzo validation errors into sorted problems.
func problemsFrom(sourceID string, err error) []Problem {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return []Problem{{SourceID: sourceID, Field: "source", Message: err.Error()}}
	}
	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	problems := make([]Problem, 0, len(fields))
	for _, field := range fields {
		problems = append(problems, Problem{SourceID: sourceID, Field: field, Message: fieldErrs[field].Error()})
	}
	return problems
}

// =============================================================================
// SOURCE VALIDATION
// =============================================================================

// Validate checks a single source.
func (s *Source) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.TectonicRegion, validation.Required),
		validation.Field(&s.Kind, validation.By(func(value interface{}) error {
			if !s.Kind.IsKnown() {
				return validation.NewError("source_kind_unknown", fmt.Sprintf("unsupported source kind %q", s.Kind))
			}
			return nil
		})),
		validation.Field(&s.MagScaleRel, validation.Required),
		validation.Field(&s.RuptAspectRatio, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&s.NodalPlanes, validation.When(s.Kind.IsDistributed(),
			validation.Required,
			validation.By(func(value interface{}) error { return checkNodalPlanes(s.NodalPlanes) }),
		)),
		validation.Field(&s.HypoDepths, validation.When(s.Kind.IsDistributed(),
			validation.Required,
			validation.By(func(value interface{}) error { return checkHypoDepths(s.HypoDepths) }),
		)),
		validation.Field(&s.Geometry, validation.By(func(value interface{}) error { return s.checkGeometry() })),
		validation.Field(&s.MFD, validation.By(func(value interface{}) error { return s.checkMFD() })),
	)
}

func checkNodalPlanes(planes []NodalPlane) error {
	var sum float64
	for _, np := range planes {
		if np.Probability <= 0 {
			return validation.NewError("nodal_plane_probability", "probabilities must be greater than 0")
		}
		if np.Dip <= 0 || np.Dip > 90 {
			return validation.NewError("nodal_plane_dip", fmt.Sprintf("dip %g outside (0, 90]", np.Dip))
		}
		if np.Strike < 0 || np.Strike > 360 {
			return validation.NewError("nodal_plane_strike", fmt.Sprintf("strike %g outside [0, 360]", np.Strike))
		}
		sum += np.Probability
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return validation.NewError("nodal_plane_sum", fmt.Sprintf("probabilities sum to %g, not 1", sum))
	}
	return nil
}

func checkHypoDepths(depths []HypoDepth) error {
	var sum float64
	for _, hd := range depths {
		if hd.Probability <= 0 {
			return validation.NewError("hypo_depth_probability", "probabilities must be greater than 0")
		}
		if hd.Depth < 0 {
			return validation.NewError("hypo_depth_negative", fmt.Sprintf("depth %g is negative", hd.Depth))
		}
		sum += hd.Probability
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return validation.NewError("hypo_depth_sum", fmt.Sprintf("probabilities sum to %g, not 1", sum))
	}
	return nil
}

func (s *Source) checkGeometry() error {
	g := s.Geometry
	if s.Kind != KindComplexFault {
		if g.UpperSeismoDepth < 0 {
			return validation.NewError("upper_depth_negative", "upper seismogenic depth is negative")
		}
		if g.LowerSeismoDepth <= g.UpperSeismoDepth {
			return validation.NewError("depth_order", fmt.Sprintf(
				"lower seismogenic depth %g must be greater than upper %g", g.LowerSeismoDepth, g.UpperSeismoDepth))
		}
	}

	switch s.Kind {
	case KindPoint:
		if len(g.Points) != 1 {
			return validation.NewError("point_geometry", "point source needs exactly one location")
		}
	case KindMultiPoint:
		if len(g.Points) == 0 {
			return validation.NewError("multi_point_geometry", "multi-point source has no locations")
		}
	case KindArea:
		if len(g.Points) < 3 {
			return validation.NewError("area_geometry", "polygon needs at least 3 vertices")
		}
		if g.Discretization <= 0 {
			return validation.NewError("area_discretization", "area discretization must be greater than 0")
		}
	case KindSimpleFault:
		if len(g.Points) < 2 {
			return validation.NewError("fault_trace", "fault trace needs at least 2 points")
		}
		if g.Dip <= 0 || g.Dip > 90 {
			return validation.NewError("fault_dip", fmt.Sprintf("dip %g outside (0, 90]", g.Dip))
		}
	case KindComplexFault:
		if len(g.Edges) < 2 {
			return validation.NewError("fault_edges", "complex fault needs top and bottom edges")
		}
		for i, edge := range g.Edges {
			if len(edge) < 2 {
				return validation.NewError("fault_edge", fmt.Sprintf("edge %d needs at least 2 points", i))
			}
		}
	}
	return nil
}

func (s *Source) checkMFD() error {
	if s.Kind == KindMultiPoint {
		if s.MFD.Kind != MFDMulti {
			return validation.NewError("mfd_kind", "multi-point source requires a multiMFD")
		}
		if len(s.MFD.Components) != len(s.Geometry.Points) {
			return validation.NewError("mfd_size", fmt.Sprintf(
				"multiMFD has %d components for %d points", len(s.MFD.Components), len(s.Geometry.Points)))
		}
		for i, component := range s.MFD.Components {
			if err := checkSingleMFD(component); err != nil {
				return validation.NewError("mfd_component", fmt.Sprintf("component %d: %v", i, err))
			}
		}
		return nil
	}
	if s.MFD.Kind == MFDMulti {
		return validation.NewError("mfd_kind", "multiMFD is only valid on multi-point sources")
	}
	return checkSingleMFD(s.MFD)
}

func checkSingleMFD(m MFD) error {
	switch m.Kind {
	case MFDTruncatedGR:
		if m.BinWidth <= 0 {
			return validation.NewError("mfd_bin_width", "bin width must be greater than 0")
		}
		if m.MaxMag <= m.MinMag {
			return validation.NewError("mfd_mag_range", fmt.Sprintf("maxMag %g must be greater than minMag %g", m.MaxMag, m.MinMag))
		}
		if m.BValue <= 0 {
			return validation.NewError("mfd_b_value", "b value must be greater than 0")
		}
	case MFDIncremental:
		if m.BinWidth <= 0 {
			return validation.NewError("mfd_bin_width", "bin width must be greater than 0")
		}
		if len(m.Rates) == 0 {
			return validation.NewError("mfd_rates", "incremental MFD has no rates")
		}
	case MFDArbitrary:
		if len(m.Rates) == 0 || len(m.Rates) != len(m.Magnitudes) {
			return validation.NewError("mfd_rates", fmt.Sprintf(
				"arbitrary MFD has %d magnitudes and %d rates", len(m.Magnitudes), len(m.Rates)))
		}
	default:
		return validation.NewError("mfd_kind", fmt.Sprintf("unsupported MFD %q", m.Kind))
	}
	for _, rate := range m.Rates {
		if rate < 0 {
			return validation.NewError("mfd_rate_negative", "occurrence rates must not be negative")
		}
	}
	return nil
}
