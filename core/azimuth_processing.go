package core

import (
	"math"
	"math/cmplx"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// NadirBeamIndex picks the entry of a beam list closest to broadside. A full
// (steady) list is centred on it; an expanding list lacks the oldest beams,
// so nadir sits N/2 from the end; a contracting list lacks the newest, so
// nadir sits N/2 from the start.
func NadirBeamIndex(size, n int, trend model.BeamTrend) int {
	if size == 0 {
		return 0
	}
	switch trend {
	case model.TrendExpanding:
		return max(0, size-n/2)
	case model.TrendContracting:
		return min(size-1, n/2)
	default:
		return min(size-1, size/2)
	}
}

// AzimuthProcess focuses the burst's calibrated waveform into one row per
// entry of b.BeamAngles, using the configured method. Rows beyond the beam
// list, and beams that fall outside the Doppler band, stay zero.
//
// b.BeamAngles must be ordered oldest location first, as ComputeBeamAngles
// leaves them: the approximate method places Doppler bins around the nadir
// beam on that assumption.
func (p *Pipeline) AzimuthProcess(b *model.Burst) {
	n := len(b.Waveform)
	samples := 0
	if n > 0 {
		samples = len(b.Waveform[0])
	}
	out := make([][]complex128, n)
	for i := range out {
		out[i] = make([]complex128, samples)
	}
	b.BeamsFocused = out
	if len(b.BeamAngles) == 0 || samples == 0 {
		return
	}

	if p.params.CNF.AzimuthMethod == config.AzimuthExact {
		p.azimuthExact(b)
		return
	}
	p.azimuthApproximate(b)
}

// pulsePhases returns exp(-j 4π/λ v PRI p cos β) for every pulse p.
func (p *Pipeline) pulsePhases(n int, speed, beamAngle float64) []complex128 {
	k := 4 * math.Pi / p.params.Wavelength() * speed * p.params.CHD.PRI * math.Cos(beamAngle)
	out := make([]complex128, n)
	for i := range out {
		out[i] = cmplx.Exp(complex(0, -k*float64(i)))
	}
	return out
}

// azimuthApproximate runs one along-track FFT per range sample with the
// nadir beam as phase reference, then picks each beam's Doppler bin.
func (p *Pipeline) azimuthApproximate(b *model.Burst) {
	n := len(b.Waveform)
	samples := len(b.Waveform[0])
	speed := b.Velocity.Norm()
	ref := b.BeamAngles[NadirBeamIndex(len(b.BeamAngles), p.params.CHD.PulsesPerBurst, b.BeamTrend)]
	phases := p.pulsePhases(n, speed, ref)

	binsPerCos := 2 * speed * p.params.CHD.PRI * float64(n) / p.params.Wavelength()
	rows := make([]int, len(b.BeamAngles))
	for i, angle := range b.BeamAngles {
		if i >= n {
			rows[i] = -1
			continue
		}
		rows[i] = n/2 + int(math.Round((math.Cos(angle)-math.Cos(ref))*binsPerCos))
	}

	column := make([]complex128, n)
	for s := 0; s < samples; s++ {
		for pulse := 0; pulse < n; pulse++ {
			column[pulse] = b.Waveform[pulse][s] * phases[pulse]
		}
		spectrum := shiftedFFT(column)
		for i, row := range rows {
			if row >= 0 && row < n {
				b.BeamsFocused[i][s] = spectrum[row]
			}
		}
	}
}

// azimuthExact steers a dedicated transform to every beam angle and keeps
// its zero-Doppler bin.
func (p *Pipeline) azimuthExact(b *model.Burst) {
	n := len(b.Waveform)
	samples := len(b.Waveform[0])
	speed := b.Velocity.Norm()

	column := make([]complex128, n)
	for i, angle := range b.BeamAngles {
		if i >= n {
			break
		}
		phases := p.pulsePhases(n, speed, angle)
		for s := 0; s < samples; s++ {
			for pulse := 0; pulse < n; pulse++ {
				column[pulse] = b.Waveform[pulse][s] * phases[pulse]
			}
			b.BeamsFocused[i][s] = shiftedFFT(column)[n/2]
		}
	}
}
