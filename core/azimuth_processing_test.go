package core

import (
	"math"
	"math/cmplx"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

const focusSpeed = 7000.0

// dopplerBeams returns size beam angles, oldest location first, one Doppler
// bin apart in cos(angle) and with broadside at index nadir.
func dopplerBeams(p *Pipeline, size, nadir int) []float64 {
	step := p.Params().BeamResolution(focusSpeed)
	angles := make([]float64, size)
	for i := range angles {
		angles[i] = math.Acos(float64(i-nadir) * step)
	}
	return angles
}

// pointTargetBurst returns a burst whose echo holds a single reflector in the
// beam at angle target, with amplitude s+1 at range sample s.
func pointTargetBurst(p *Pipeline, angles []float64, target float64, trend model.BeamTrend) *model.Burst {
	params := p.Params()
	n, samples := params.CHD.PulsesPerBurst, params.CHD.SamplesPerEcho
	k := 4 * math.Pi / params.Wavelength() * focusSpeed * params.CHD.PRI * math.Cos(target)
	w := make([][]complex128, n)
	for pulse := range w {
		w[pulse] = make([]complex128, samples)
		for s := range w[pulse] {
			w[pulse][s] = complex(float64(s+1), 0) * cmplx.Exp(complex(0, k*float64(pulse)))
		}
	}
	return &model.Burst{
		Velocity:   model.Vec3{X: focusSpeed},
		Waveform:   w,
		BeamAngles: angles,
		BeamTrend:  trend,
	}
}

// requireFocusedOn checks that only row (or no row when row < 0) carries
// energy, n·(s+1) at sample s.
func requireFocusedOn(t *testing.T, b *model.Burst, row int) {
	t.Helper()
	n := len(b.Waveform)
	for i, beam := range b.BeamsFocused {
		for s, v := range beam {
			want := 0.0
			if i == row {
				want = float64(n * (s + 1))
			}
			if math.Abs(cmplx.Abs(v)-want) > 1e-9 {
				t.Fatalf("row %d sample %d: |%v| = %g, want %g (target row %d)", i, s, v, cmplx.Abs(v), want, row)
			}
		}
	}
}

func TestAzimuthFocusesPointTargetToItsBeam(t *testing.T) {
	cases := []struct {
		name  string
		size  int
		trend model.BeamTrend
	}{
		{"steady", 8, model.TrendSteady},
		{"expanding", 5, model.TrendExpanding},
		{"contracting", 5, model.TrendContracting},
	}
	for _, method := range []string{config.AzimuthApproximate, config.AzimuthExact} {
		p := newTestPipeline(t, func(c *config.Params) { c.CNF.AzimuthMethod = method })
		n := p.Params().CHD.PulsesPerBurst
		for _, tc := range cases {
			t.Run(method+"/"+tc.name, func(t *testing.T) {
				angles := dopplerBeams(p, tc.size, NadirBeamIndex(tc.size, n, tc.trend))
				for target := range angles {
					b := pointTargetBurst(p, angles, angles[target], tc.trend)
					p.AzimuthProcess(b)
					if len(b.BeamsFocused) != n {
						t.Fatalf("focused rows = %d, want %d", len(b.BeamsFocused), n)
					}
					requireFocusedOn(t, b, target)
				}
			})
		}
	}
}

func TestAzimuthMethodsAgreeOnEvenlySpacedBeams(t *testing.T) {
	approx := newTestPipeline(t, nil)
	exact := newTestPipeline(t, func(c *config.Params) { c.CNF.AzimuthMethod = config.AzimuthExact })
	n := approx.Params().CHD.PulsesPerBurst
	samples := approx.Params().CHD.SamplesPerEcho
	angles := dopplerBeams(approx, n, NadirBeamIndex(n, n, model.TrendSteady))

	rapid.Check(t, func(rt *rapid.T) {
		values := rapid.SliceOfN(rapid.Float64Range(-1, 1), 2*n*samples, 2*n*samples).Draw(rt, "echo")
		w := make([][]complex128, n)
		for pulse := range w {
			w[pulse] = make([]complex128, samples)
			for s := range w[pulse] {
				i := 2 * (pulse*samples + s)
				w[pulse][s] = complex(values[i], values[i+1])
			}
		}
		a := &model.Burst{Velocity: model.Vec3{X: focusSpeed}, Waveform: w, BeamAngles: angles}
		e := &model.Burst{Velocity: model.Vec3{X: focusSpeed}, Waveform: w, BeamAngles: angles}
		approx.AzimuthProcess(a)
		exact.AzimuthProcess(e)
		if d := maxAbsDiff(a.BeamsFocused, e.BeamsFocused); d > 1e-9 {
			rt.Fatalf("approximate and exact focusing differ by %g", d)
		}
	})
}

func TestAzimuthApproximateExpectsOldestLocationFirst(t *testing.T) {
	approx := newTestPipeline(t, nil)
	exact := newTestPipeline(t, func(c *config.Params) { c.CNF.AzimuthMethod = config.AzimuthExact })
	n := approx.Params().CHD.PulsesPerBurst
	reversed := dopplerBeams(approx, n, NadirBeamIndex(n, n, model.TrendSteady))
	slices.Reverse(reversed)

	for target := range reversed {
		b := pointTargetBurst(exact, reversed, reversed[target], model.TrendSteady)
		exact.AzimuthProcess(b)
		requireFocusedOn(t, b, target)
	}

	// newest-first order pushes the first beam one bin past the Doppler band
	for target := range reversed {
		b := pointTargetBurst(approx, reversed, reversed[target], model.TrendSteady)
		approx.AzimuthProcess(b)
		if target == 0 {
			requireFocusedOn(t, b, -1)
			continue
		}
		requireFocusedOn(t, b, target)
	}
}

func TestAzimuthWithoutBeamsLeavesZeroRows(t *testing.T) {
	p := newTestPipeline(t, nil)
	b := toneBurst(8, 16)
	b.Waveform = b.Raw
	b.Velocity = model.Vec3{X: focusSpeed}
	p.AzimuthProcess(b)
	requireFocusedOn(t, b, -1)
}
