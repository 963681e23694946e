package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// MaskStrategy zeroes invalid samples of one beam's mask row. Strategies
// only ever lower weights, so they compose in any order.
type MaskStrategy interface {
	Name() string
	Apply(params config.Params, s *model.SurfaceLocation, beam int, row []float64)
}

// GeometryMask zeroes the samples that the geometry correction wrapped
// around the range window.
type GeometryMask struct{}

func (GeometryMask) Name() string { return "geometry" }

func (GeometryMask) Apply(_ config.Params, s *model.SurfaceLocation, beam int, row []float64) {
	if beam >= len(s.Corrections.ShiftBins) {
		return
	}
	shift := s.Corrections.ShiftBins[beam]
	n := int(math.Ceil(math.Abs(shift)))
	if n > len(row) {
		n = len(row)
	}
	if shift > 0 {
		clear(row[:n])
	} else if shift < 0 {
		clear(row[len(row)-n:])
	}
}

// RMCMask zeroes the second half of the range window of RMC bursts, which
// carry only the first half.
type RMCMask struct{}

func (RMCMask) Name() string { return "rmc" }

func (RMCMask) Apply(_ config.Params, s *model.SurfaceLocation, beam int, row []float64) {
	if beam >= len(s.Stack) || !s.Stack[beam].Burst.RMC {
		return
	}
	clear(row[len(row)/2:])
}

// DopplerAmbiguityMask zeroes the samples beyond the range at which the
// next Doppler ambiguity folds into the window. The cut-off shrinks with the
// beam's slant-range migration.
type DopplerAmbiguityMask struct{}

func (DopplerAmbiguityMask) Name() string { return "doppler_ambiguity" }

func (DopplerAmbiguityMask) Apply(params config.Params, s *model.SurfaceLocation, beam int, row []float64) {
	if beam >= len(s.Corrections.SlantRange) {
		return
	}
	binZP := params.RangeBinSize() / float64(params.CNF.ZeroPadding)
	// the ambiguous beam is one PRF away in Doppler, i.e. c·PRF/(2·slope) in range
	ambiguous := params.CST.SpeedOfLight * params.PRF() / (2 * params.CHD.ChirpSlope)
	cut := len(row)/2 + int(math.Round((ambiguous-math.Abs(s.Corrections.SlantRange[beam]))/binZP))
	if cut < 0 {
		cut = 0
	}
	if cut < len(row) {
		clear(row[cut:])
	}
}

// MaskStack builds the per-beam, per-sample mask and the per-beam
// contribution vector. With no strategies every sample passes.
func (p *Pipeline) MaskStack(s *model.SurfaceLocation) {
	padded := p.params.PaddedSamples()
	mask := make([][]float64, len(s.BeamsPower))
	vector := make([]int, len(s.BeamsPower))
	for i := range mask {
		row := make([]float64, padded)
		for k := range row {
			row[k] = 1
		}
		for _, m := range p.masks {
			m.Apply(p.params, s, i, row)
		}
		mask[i] = row
		for _, w := range row {
			if w > 0 {
				vector[i] = 1
				break
			}
		}
	}
	s.StackMask = mask
	s.StackMaskVector = vector
}
