package core

import (
	"math"
	"math/cmplx"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// ApplyGeometryCorrections computes the per-beam Doppler, slant-range and
// window-delay corrections (metres) that align every beam's echo of s with
// the location's own range window, then applies their enabled sum as a
// range-frequency ramp on each focused beam.
func (p *Pipeline) ApplyGeometryCorrections(s *model.SurfaceLocation) {
	n := len(s.Stack)
	c := p.params.CST.SpeedOfLight
	slope := p.params.CHD.ChirpSlope
	fs := p.params.CHD.SamplingFrequency
	lambda := p.params.Wavelength()
	cnf := p.params.CNF
	binZP := p.params.RangeBinSize() / float64(cnf.ZeroPadding)

	corr := model.StackCorrections{
		Doppler:      make([]float64, n),
		SlantRange:   make([]float64, n),
		WinDelay:     make([]float64, n),
		Total:        make([]float64, n),
		ShiftBins:    make([]float64, n),
		RangeSatSurf: make([]float64, n),
	}
	beams := make([][]complex128, n)

	for i, sb := range s.Stack {
		b := sb.Burst
		rng := s.Position.DistanceTo(b.SatPosition)
		corr.RangeSatSurf[i] = rng
		corr.Doppler[i] = -c * b.Velocity.Norm() * math.Cos(sb.BeamAngle) / (lambda * slope)
		corr.SlantRange[i] = -(rng - c*s.WinDelay/2)
		corr.WinDelay[i] = c / 2 * (b.WinDelay - s.WinDelay)

		total := 0.0
		if cnf.FlagDopplerCorrection {
			total += corr.Doppler[i]
		}
		if cnf.FlagSlantRangeCorrection {
			total += corr.SlantRange[i]
		}
		if cnf.FlagWinDelayCorrection {
			total += corr.WinDelay[i]
		}
		corr.Total[i] = total
		corr.ShiftBins[i] = total / binZP

		// a range offset of Δ metres is a deramped tone of 2·slope·Δ/c Hz
		freq := 2 * slope * total / c
		out := make([]complex128, len(sb.Focused))
		for k, v := range sb.Focused {
			out[k] = v * cmplx.Exp(complex(0, 2*math.Pi*freq*float64(k)/fs))
		}
		beams[i] = out
	}

	s.Corrections = corr
	s.BeamsGeoCorr = beams
}
