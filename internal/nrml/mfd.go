package nrml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

// buildMFD converts whichever MFD element the source carries. numPoints is the
// number of locations of a multi-point source and sizes a multiMFD without a
// size attribute.
func buildMFD(node *sourceNode, numPoints int, opts Options) (sourcemodel.MFD, error) {
	switch {
	case node.TruncGR != nil:
		return buildTruncGR(node.TruncGR, opts)
	case node.Incremental != nil:
		return buildIncremental(node.Incremental)
	case node.Arbitrary != nil:
		return buildArbitrary(node.Arbitrary)
	case node.Multi != nil:
		return buildMultiMFD(node.Multi, numPoints, opts)
	}
	return sourcemodel.MFD{}, errors.New("missing magnitude-frequency distribution")
}

func buildTruncGR(n *truncGRNode, opts Options) (sourcemodel.MFD, error) {
	values, err := parseAll(
		field{"aValue", n.AValue}, field{"bValue", n.BValue},
		field{"minMag", n.MinMag}, field{"maxMag", n.MaxMag},
	)
	if err != nil {
		return sourcemodel.MFD{}, fmt.Errorf("truncGutenbergRichterMFD: %w", err)
	}
	return sourcemodel.MFD{
		Kind:     sourcemodel.MFDTruncatedGR,
		AValue:   values[0],
		BValue:   values[1],
		MinMag:   values[2],
		MaxMag:   values[3],
		BinWidth: opts.MFDBinWidth,
	}, nil
}

func buildIncremental(n *incrementalNode) (sourcemodel.MFD, error) {
	values, err := parseAll(field{"minMag", n.MinMag}, field{"binWidth", n.BinWidth})
	if err != nil {
		return sourcemodel.MFD{}, fmt.Errorf("incrementalMFD: %w", err)
	}
	rates, err := parseFloats("occurRates", n.OccurRates)
	if err != nil {
		return sourcemodel.MFD{}, fmt.Errorf("incrementalMFD: %w", err)
	}
	return sourcemodel.MFD{
		Kind:     sourcemodel.MFDIncremental,
		MinMag:   values[0],
		BinWidth: values[1],
		Rates:    rates,
	}, nil
}

func buildArbitrary(n *arbitraryNode) (sourcemodel.MFD, error) {
	rates, err := parseFloats("occurRates", n.OccurRates)
	if err != nil {
		return sourcemodel.MFD{}, fmt.Errorf("arbitraryMFD: %w", err)
	}
	mags, err := parseFloats("magnitudes", n.Magnitudes)
	if err != nil {
		return sourcemodel.MFD{}, fmt.Errorf("arbitraryMFD: %w", err)
	}
	return sourcemodel.MFD{Kind: sourcemodel.MFDArbitrary, Rates: rates, Magnitudes: mags}, nil
}

// buildMultiMFD expands the per-parameter arrays of a multiMFD into one
// component per point.
func buildMultiMFD(n *multiMFDNode, numPoints int, opts Options) (sourcemodel.MFD, error) {
	kind := sourcemodel.MFDKind(strings.TrimSpace(n.Kind))
	size := numPoints
	if s := strings.TrimSpace(n.Size); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return sourcemodel.MFD{}, fmt.Errorf("multiMFD: invalid size %q", s)
		}
		size = v
	}
	if size <= 0 {
		return sourcemodel.MFD{}, errors.New("multiMFD: unknown size")
	}

	multi := sourcemodel.MFD{Kind: sourcemodel.MFDMulti, ComponentKind: kind}
	components := make([]sourcemodel.MFD, size)

	switch kind {
	case sourcemodel.MFDTruncatedGR:
		arrays, err := broadcastAll(size,
			field{"min_mag", n.MinMag}, field{"max_mag", n.MaxMag},
			field{"a_val", n.AValue}, field{"b_val", n.BValue},
		)
		if err != nil {
			return multi, err
		}
		for i := range components {
			components[i] = sourcemodel.MFD{
				Kind:     kind,
				MinMag:   arrays[0][i],
				MaxMag:   arrays[1][i],
				AValue:   arrays[2][i],
				BValue:   arrays[3][i],
				BinWidth: opts.MFDBinWidth,
			}
		}

	case sourcemodel.MFDIncremental:
		arrays, err := broadcastAll(size, field{"min_mag", n.MinMag}, field{"bin_width", n.BinWidth})
		if err != nil {
			return multi, err
		}
		rates, err := splitByLengths(size, "occurRates", n.OccurRates, n.Lengths)
		if err != nil {
			return multi, err
		}
		for i := range components {
			components[i] = sourcemodel.MFD{Kind: kind, MinMag: arrays[0][i], BinWidth: arrays[1][i], Rates: rates[i]}
		}

	case sourcemodel.MFDArbitrary:
		rates, err := splitByLengths(size, "occurRates", n.OccurRates, n.Lengths)
		if err != nil {
			return multi, err
		}
		mags, err := splitByLengths(size, "magnitudes", n.Magnitudes, n.Lengths)
		if err != nil {
			return multi, err
		}
		for i := range components {
			components[i] = sourcemodel.MFD{Kind: kind, Rates: rates[i], Magnitudes: mags[i]}
		}

	default:
		return multi, fmt.Errorf("multiMFD: unsupported kind %q", n.Kind)
	}

	multi.Components = components
	return multi, nil
}

// broadcastAll parses each field and repeats single values size times.
func broadcastAll(size int, fields ...field) ([][]float64, error) {
	out := make([][]float64, len(fields))
	for i, f := range fields {
		values, err := parseFloats(f.name, f.value)
		if err != nil {
			return nil, fmt.Errorf("multiMFD: %w", err)
		}
		if len(values) == 1 && size > 1 {
			values = repeat(values[0], size)
		}
		if len(values) != size {
			return nil, fmt.Errorf("multiMFD: %s has %d values, expected 1 or %d", f.name, len(values), size)
		}
		out[i] = values
	}
	return out, nil
}

// splitByLengths cuts a flat array into size chunks. The lengths element may
// be omitted (equal chunks) or hold a single value (broadcast).
func splitByLengths(size int, name, raw, rawLengths string) ([][]float64, error) {
	values, err := parseFloats(name, raw)
	if err != nil {
		return nil, fmt.Errorf("multiMFD: %w", err)
	}

	var lengths []int
	if strings.TrimSpace(rawLengths) == "" {
		if len(values)%size != 0 {
			return nil, fmt.Errorf("multiMFD: %d %s cannot be split into %d equal parts", len(values), name, size)
		}
		lengths = repeatInt(len(values)/size, size)
	} else {
		raws, err := parseFloats("lengths", rawLengths)
		if err != nil {
			return nil, fmt.Errorf("multiMFD: %w", err)
		}
		if len(raws) == 1 && size > 1 {
			raws = repeat(raws[0], size)
		}
		if len(raws) != size {
			return nil, fmt.Errorf("multiMFD: lengths has %d values, expected %d", len(raws), size)
		}
		for _, l := range raws {
			lengths = append(lengths, int(l))
		}
	}

	out := make([][]float64, size)
	offset := 0
	for i, l := range lengths {
		if l <= 0 || offset+l > len(values) {
			return nil, fmt.Errorf("multiMFD: lengths do not match %d %s", len(values), name)
		}
		out[i] = values[offset : offset+l]
		offset += l
	}
	if offset != len(values) {
		return nil, fmt.Errorf("multiMFD: lengths cover %d of %d %s", offset, len(values), name)
	}
	return out, nil
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func repeatInt(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
