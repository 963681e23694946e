package core

import (
	"math"
	"math/cmplx"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// Calibrate fills b.Waveform from b.Raw, applying the CAL1 intra-burst
// power/phase correction and the CAL2 gain/phase response when enabled.
// With both disabled the waveform is a copy of the raw echo.
func (p *Pipeline) Calibrate(b *model.Burst) error {
	w := copyMatrix(b.Raw)
	if p.params.CNF.FlagCal1 {
		if err := applyCal1(b, w); err != nil {
			return err
		}
	}
	if p.params.CNF.FlagCal2 {
		if err := applyCal2(b, w); err != nil {
			return err
		}
	}
	b.Waveform = w
	return nil
}

// applyCal1 removes the per-pulse power (dB) and phase (rad) drift. The
// correction is flat across range frequency, so it is applied to the samples
// directly.
func applyCal1(b *model.Burst, w [][]complex128) error {
	n := len(w)
	if len(b.Cal1Power) != n {
		return &MissingCalibrationDataError{Variable: "burst_power_cor", Record: b.RecordIndex}
	}
	if len(b.Cal1Phase) != n {
		return &MissingCalibrationDataError{Variable: "burst_phase_cor", Record: b.RecordIndex}
	}
	for i, pulse := range w {
		k := complex(math.Pow(10, -b.Cal1Power[i]/20), 0) * cmplx.Exp(complex(0, -b.Cal1Phase[i]))
		for j := range pulse {
			pulse[j] *= k
		}
	}
	return nil
}

// applyCal2 divides every range bin by the instrument gain/phase response.
// The table is indexed in shifted bin order, with the zero frequency at the
// centre.
func applyCal2(b *model.Burst, w [][]complex128) error {
	if len(w) == 0 || len(w[0]) == 0 {
		return nil
	}
	s := len(w[0])
	if len(b.Cal2Gain) != s {
		return &MissingCalibrationDataError{Variable: "gprw_meas", Record: b.RecordIndex}
	}
	if len(b.Cal2Phase) != 0 && len(b.Cal2Phase) != s {
		return &MissingCalibrationDataError{Variable: "gprw_phase", Record: b.RecordIndex}
	}
	resp := make([]complex128, s)
	for k, g := range b.Cal2Gain {
		if g == 0 || math.IsNaN(g) {
			return &MissingCalibrationDataError{Variable: "gprw_meas", Record: b.RecordIndex}
		}
		ph := 0.0
		if len(b.Cal2Phase) != 0 {
			ph = b.Cal2Phase[k]
		}
		resp[k] = complex(g, 0) * cmplx.Exp(complex(0, ph))
	}
	for _, pulse := range w {
		spectrum := shiftedFFT(pulse)
		for k := range spectrum {
			spectrum[k] /= resp[k]
		}
		back := inverseFFT(ifftShift(spectrum))
		scale := complex(1/float64(s), 0)
		for j := range back {
			pulse[j] = back[j] * scale
		}
	}
	return nil
}

// ifftShift undoes fftShift.
func ifftShift(shifted []complex128) []complex128 {
	plan := ffts.plan(len(shifted))
	out := make([]complex128, len(shifted))
	for i := range shifted {
		out[plan.fft.ShiftIdx(i)] = shifted[i]
	}
	return out
}

func copyMatrix(m [][]complex128) [][]complex128 {
	out := make([][]complex128, len(m))
	for i, row := range m {
		out[i] = append([]complex128(nil), row...)
	}
	return out
}
