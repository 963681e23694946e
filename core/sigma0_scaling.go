package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// ScaleSigma0 computes the radar-equation factor (dB) that turns multilooked
// power into backscatter, per beam and as a scalar over the contributing
// beams. The illuminated area is the Doppler beam footprint along track times
// the pulse-limited width across track.
func (p *Pipeline) ScaleSigma0(s *model.SurfaceLocation) {
	c := p.params.CST.SpeedOfLight
	lambda := p.params.Wavelength()
	chd := p.params.CHD
	gain := math.Pow(10, chd.AntennaGain/10)
	tauC := 1 / (chd.ChirpSlope * chd.PulseLength)

	perBeam := make([]float64, len(s.Stack))
	var sum float64
	var count int
	for i, sb := range s.Stack {
		var rng float64
		if i < len(s.Corrections.RangeSatSurf) {
			rng = s.Corrections.RangeSatSurf[i]
		} else {
			rng = s.Position.DistanceTo(sb.Burst.SatPosition)
		}
		speed := sb.Burst.Velocity.Norm()
		if rng == 0 || speed == 0 {
			continue
		}
		alpha := 1 + rng/p.params.CST.EarthRadius
		azimuth := alpha * lambda * rng / (2 * speed * chd.PRI * float64(chd.PulsesPerBurst))
		across := 2 * math.Sqrt(c*tauC*rng/alpha)
		area := azimuth * across
		factor := 64 * math.Pow(math.Pi, 3) * math.Pow(rng, 4) /
			(lambda * lambda * gain * gain * chd.TransmitPower * area)
		perBeam[i] = 10 * math.Log10(factor)

		if i >= len(s.StackMaskVector) || s.StackMaskVector[i] == 1 {
			sum += factor
			count++
		}
	}
	s.Sigma0ScaleBeam = perBeam
	if count > 0 {
		s.Sigma0Scale = 10 * math.Log10(sum/float64(count))
	} else {
		s.Sigma0Scale = 0
	}
}
