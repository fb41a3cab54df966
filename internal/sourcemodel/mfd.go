// =============================================================================
// NRML to HDF5 Converter - Magnitude Frequency Distributions
// =============================================================================
//
// This file defines the magnitude-frequency distributions (MFDs) attached to
// sources and the binning used to turn them into annual occurrence rates.
//
// SUPPORTED DISTRIBUTIONS:
//   - truncGutenbergRichterMFD : a/b values between minMag and maxMag, binned
//                                with the configured MFD bin width
//   - incrementalMFD           : explicit rates starting at minMag
//   - arbitraryMFD             : explicit magnitude/rate pairs
//   - multiMFD                 : one component per point of a multi-point source
//
// =============================================================================

package sourcemodel

import "math"

// MFDKind identifies the distribution family. Values are the NRML element names.
type MFDKind string

const (
	MFDTruncatedGR MFDKind = "truncGutenbergRichterMFD"
	MFDIncremental MFDKind = "incrementalMFD"
	MFDArbitrary   MFDKind = "arbitraryMFD"
	MFDMulti       MFDKind = "multiMFD"
)

// IsKnown reports whether k is a supported distribution family.
func (k MFDKind) IsKnown() bool {
	switch k {
	case MFDTruncatedGR, MFDIncremental, MFDArbitrary, MFDMulti:
		return true
	}
	return false
}

// MFD is a magnitude-frequency distribution.
type MFD struct {
	Kind MFDKind

	// Gutenberg-Richter parameters.
	AValue float64
	BValue float64

	// MinMag and BinWidth are used by both truncated GR and incremental MFDs.
	// MaxMag is only used by truncated GR.
	MinMag   float64
	MaxMag   float64
	BinWidth float64

	// Rates holds the occurrence rates of incremental and arbitrary MFDs.
	Rates []float64

	// Magnitudes holds the magnitudes of an arbitrary MFD.
	Magnitudes []float64

	// ComponentKind and Components describe a multiMFD: one component per
	// point, all of the same family.
	ComponentKind MFDKind
	Components    []MFD
}

// MagRate is one bin of a discretized distribution.
type MagRate struct {
	Mag  float64
	Rate float64
}

// =============================================================================
// OCCURRENCE RATES
// =============================================================================

// OccurrenceRates returns the annual occurrence rate of each magnitude bin.
// For a multiMFD the bins of every component are concatenated in point order.
func (m MFD) OccurrenceRates() []MagRate {
	switch m.Kind {
	case MFDTruncatedGR:
		return m.truncatedGRRates()

	case MFDIncremental:
		rates := make([]MagRate, len(m.Rates))
		for i, rate := range m.Rates {
			rates[i] = MagRate{Mag: m.MinMag + float64(i)*m.BinWidth, Rate: rate}
		}
		return rates

	case MFDArbitrary:
		n := len(m.Rates)
		if len(m.Magnitudes) < n {
			n = len(m.Magnitudes)
		}
		rates := make([]MagRate, n)
		for i := 0; i < n; i++ {
			rates[i] = MagRate{Mag: m.Magnitudes[i], Rate: m.Rates[i]}
		}
		return rates

	case MFDMulti:
		var rates []MagRate
		for _, component := range m.Components {
			rates = append(rates, component.OccurrenceRates()...)
		}
		return rates
	}
	return nil
}

// TotalRate is the sum of all bin rates.
func (m MFD) TotalRate() float64 {
	var total float64
	for _, bin := range m.OccurrenceRates() {
		total += bin.Rate
	}
	return total
}

// MagnitudeRange returns the smallest and largest bin magnitude. Both values
// are zero when the distribution has no bins.
func (m MFD) MagnitudeRange() (float64, float64) {
	bins := m.OccurrenceRates()
	if len(bins) == 0 {
		return 0, 0
	}
	lo, hi := bins[0].Mag, bins[0].Mag
	for _, bin := range bins[1:] {
		lo = math.Min(lo, bin.Mag)
		hi = math.Max(hi, bin.Mag)
	}
	return lo, hi
}

// truncatedGRRates bins a truncated Gutenberg-Richter distribution.
//
// BINNING:
//   Minimum and maximum magnitudes are rounded to the bin width. When they
//   differ, bin centres are shifted half a bin inwards. Each bin rate is the
//   difference of the cumulative rates at its edges; the last bin is closed at
//   MaxMag instead of its upper edge.
func (m MFD) truncatedGRRates() []MagRate {
	if m.BinWidth <= 0 {
		return nil
	}
	minMag, numBins := m.truncatedGRBins()
	rates := make([]MagRate, 0, numBins)
	for i := 0; i < numBins; i++ {
		mag := minMag + float64(i)*m.BinWidth
		rates = append(rates, MagRate{Mag: mag, Rate: m.truncatedGRRate(mag)})
	}
	return rates
}

func (m MFD) truncatedGRBins() (float64, int) {
	minMag := Round(m.MinMag/m.BinWidth, 0) * m.BinWidth
	maxMag := Round(m.MaxMag/m.BinWidth, 0) * m.BinWidth
	if minMag != maxMag {
		minMag += m.BinWidth / 2
		maxMag -= m.BinWidth / 2
	}
	numBins := int(Round((maxMag-minMag)/m.BinWidth, 0)) + 1
	if numBins < 0 {
		numBins = 0
	}
	return minMag, numBins
}

func (m MFD) truncatedGRRate(mag float64) float64 {
	lo := mag - m.BinWidth/2
	hi := mag + m.BinWidth/2
	if mag >= m.MinMag && mag < m.MaxMag-m.BinWidth/2 {
		return math.Pow(10, m.AValue-m.BValue*lo) - math.Pow(10, m.AValue-m.BValue*hi)
	}
	return math.Pow(10, m.AValue-m.BValue*lo) - math.Pow(10, m.AValue-m.BValue*m.MaxMag)
}

// Round rounds x to the given number of decimal digits, halves away from zero.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Floor(x*p+math.Copysign(0.5, x)) / p
}
