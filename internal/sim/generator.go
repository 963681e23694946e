package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// Scatterer is a point reflector on the ground.
type Scatterer struct {
	Position  model.Vec3
	Amplitude complex128
}

// EchoModel returns the deramped echo of one pulse.
type EchoModel interface {
	Echo(params config.Params, satPos, satVel model.Vec3, winDelay float64) []complex128
}

// ScattererEcho sums the returns of a fixed set of point reflectors. Each
// reflector contributes a deramped tone at its range offset from the window
// centre, shifted by its Doppler frequency, with the two-way carrier phase.
type ScattererEcho struct {
	Scatterers []Scatterer
	// MaxRange drops reflectors farther than this from the satellite
	// (0 keeps all).
	MaxRange float64
}

// Echo implements EchoModel.
func (e *ScattererEcho) Echo(params config.Params, satPos, satVel model.Vec3, winDelay float64) []complex128 {
	c := params.CST.SpeedOfLight
	lambda := params.Wavelength()
	slope := params.CHD.ChirpSlope
	fs := params.CHD.SamplingFrequency
	n := params.CHD.SamplesPerEcho
	rWin := c * winDelay / 2

	out := make([]complex128, n)
	for _, sc := range e.Scatterers {
		los := sc.Position.Sub(satPos)
		r := los.Norm()
		if r == 0 || (e.MaxRange > 0 && r > e.MaxRange) {
			continue
		}
		radial := satVel.Dot(los) / r
		freq := 2*slope*(r-rWin)/c + 2*radial/lambda
		carrier := sc.Amplitude * cmplx.Exp(complex(0, -4*math.Pi*r/lambda))
		for s := range out {
			out[s] += carrier * cmplx.Exp(complex(0, 2*math.Pi*freq*float64(s)/fs))
		}
	}
	return out
}

// TrackScene places reflectors on the ellipsoid along the ground track of
// orbit between start and start+duration, one every spacing metres, with
// Rayleigh amplitudes and uniform phases drawn from seed.
func TrackScene(orbit Orbit, start time.Time, duration time.Duration, spacing float64, seed uint64) ([]Scatterer, error) {
	if spacing <= 0 {
		return nil, errors.New("scene spacing must be positive")
	}
	_, vel, err := orbit.StateAt(start)
	if err != nil {
		return nil, err
	}
	speed := vel.Norm()
	if speed == 0 {
		return nil, errors.New("orbit has zero speed")
	}
	pos, _, err := orbit.StateAt(start)
	if err != nil {
		return nil, err
	}
	_, _, alt := core.WGS84.ToGeodetic(pos)
	// ground speed is the orbital speed scaled down to the surface
	groundSpeed := speed * core.WGS84.A / (core.WGS84.A + alt)
	step := time.Duration(spacing / groundSpeed * float64(time.Second))
	if step <= 0 {
		return nil, errors.New("scene spacing too small")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var out []Scatterer
	for t := start; !t.After(start.Add(duration)); t = t.Add(step) {
		p, _, err := orbit.StateAt(t)
		if err != nil {
			return nil, err
		}
		lat, lon, _ := core.WGS84.ToGeodetic(p)
		amp := math.Sqrt(-2 * math.Log(1-rng.Float64()))
		phase := 2 * math.Pi * rng.Float64()
		out = append(out, Scatterer{
			Position:  core.WGS84.ToECEF(lat, lon, 0),
			Amplitude: cmplx.Rect(amp, phase),
		})
	}
	return out, nil
}

// Generator produces bursts along an orbit.
type Generator struct {
	Params config.Params
	Orbit  Orbit
	Echo   EchoModel
	Start  time.Time
	// Gaps lists burst indices before which an extra GapDuration of silence
	// is inserted.
	Gaps        []int
	GapDuration time.Duration
	// Cal1Drift applies a per-pulse power (dB) and phase (rad) drift that
	// the CAL1 correction removes.
	Cal1Drift bool
	// RMCEvery marks every n-th burst as RMC (0 disables).
	RMCEvery int
	Seed     uint64
}

// Generate returns count bursts.
func (g *Generator) Generate(count int) ([]*model.Burst, error) {
	if g.Orbit == nil || g.Echo == nil {
		return nil, errors.New("generator needs an orbit and an echo model")
	}
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed+1))
	bri := time.Duration(g.Params.CHD.BRI * float64(time.Second))
	offset := time.Duration(0)

	out := make([]*model.Burst, 0, count)
	for k := 0; k < count; k++ {
		for _, gap := range g.Gaps {
			if gap == k {
				offset += g.GapDuration
			}
		}
		t := g.Start.Add(time.Duration(k)*bri + offset)
		b, err := g.burst(k, t, rng)
		if err != nil {
			return nil, fmt.Errorf("burst %d: %w", k, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (g *Generator) burst(k int, t time.Time, rng *rand.Rand) (*model.Burst, error) {
	params := g.Params
	pos, vel, err := g.Orbit.StateAt(t)
	if err != nil {
		return nil, err
	}
	lat, lon, alt := core.WGS84.ToGeodetic(pos)
	winDelay := 2 * alt / params.CST.SpeedOfLight

	n := params.CHD.PulsesPerBurst
	s := params.CHD.SamplesPerEcho
	raw := make([][]complex128, n)
	cal1Power := make([]float64, n)
	cal1Phase := make([]float64, n)
	for p := 0; p < n; p++ {
		dt := float64(p) * params.CHD.PRI
		echo := g.Echo.Echo(params, pos.Add(vel.Scale(dt)), vel, winDelay)
		if g.Cal1Drift {
			cal1Power[p] = 0.2 * rng.NormFloat64()
			cal1Phase[p] = 0.1 * rng.NormFloat64()
			drift := complex(math.Pow(10, cal1Power[p]/20), 0) * cmplx.Exp(complex(0, cal1Phase[p]))
			for i := range echo {
				echo[i] *= drift
			}
		}
		raw[p] = echo
	}
	gain := make([]float64, s)
	for i := range gain {
		gain[i] = 1
	}

	secs := t.Sub(params.CST.Epoch).Seconds()
	coarse := math.Floor(secs)
	return &model.Burst{
		SourceCounter: k % 16384,
		RecordIndex:   k,
		Time:          secs,
		CoarseTime:    int64(coarse),
		FineTime:      int64(math.Round((secs - coarse) * 1e6)),
		Lat:           lat,
		Lon:           lon,
		Alt:           alt,
		SatPosition:   pos,
		Velocity:      vel,
		WinDelay:      winDelay,
		AGC:           30,
		RMC:           g.RMCEvery > 0 && k%g.RMCEvery == 0,
		Raw:           raw,
		Cal1Power:     cal1Power,
		Cal1Phase:     cal1Phase,
		Cal2Gain:      gain,
		Cal2Phase:     make([]float64, s),
	}, nil
}

// SliceSource serves bursts from memory in order.
type SliceSource struct {
	bursts []*model.Burst
	next   int
}

// NewSliceSource wraps bursts.
func NewSliceSource(bursts []*model.Burst) *SliceSource {
	return &SliceSource{bursts: bursts}
}

// Next returns the next burst or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*model.Burst, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.bursts) {
		return nil, io.EOF
	}
	b := s.bursts[s.next]
	s.next++
	return b, nil
}
