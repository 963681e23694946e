package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// RangeCompress zero-pads every geometry-corrected beam to S·zp samples,
// transforms it along range and stores the shifted spectrum (I/Q) and its
// power. The transform is scaled by 1/sqrt(S·zp).
func (p *Pipeline) RangeCompress(s *model.SurfaceLocation) {
	padded := p.params.PaddedSamples()
	norm := complex(1/math.Sqrt(float64(padded)), 0)

	iq := make([][]complex128, len(s.BeamsGeoCorr))
	power := make([][]float64, len(s.BeamsGeoCorr))
	buf := make([]complex128, padded)
	for i, beam := range s.BeamsGeoCorr {
		clear(buf)
		copy(buf, beam)
		spectrum := shiftedFFT(buf)
		pw := make([]float64, padded)
		for k := range spectrum {
			spectrum[k] *= norm
			re, im := real(spectrum[k]), imag(spectrum[k])
			pw[k] = re*re + im*im
		}
		iq[i] = spectrum
		power[i] = pw
	}
	s.BeamsIQ = iq
	s.BeamsPower = power
}
