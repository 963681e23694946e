package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// BeamWindow returns the visible beam-angle interval, relative to the
// burst's Doppler angle, for a satellite moving at speed: the N Doppler
// beams of a burst are centred on broadside with one more beam looking
// backward than forward.
func (p *Pipeline) BeamWindow(speed float64) (qMin, qMax float64) {
	res := p.params.BeamResolution(speed)
	half := float64(p.params.CHD.PulsesPerBurst / 2)
	return math.Pi/2 - (half-1)*res, math.Pi/2 + half*res
}

// ComputeBeamAngles fills b.BeamAngles and b.BeamSurfaces with every
// location of surfaces (oldest first) that falls inside the burst's beam
// sweep, keeping at most N entries (the newest). Each kept pair is
// registered in the location's Seen list. The trend is derived from the list
// size relative to prevSize. It reports whether working was among the seen
// locations.
func (p *Pipeline) ComputeBeamAngles(b *model.Burst, surfaces []*model.SurfaceLocation, working *model.SurfaceLocation, prevSize int, prevTrend model.BeamTrend) (bool, error) {
	qMin, qMax := p.BeamWindow(b.Velocity.Norm())
	if qMax <= qMin {
		return false, &GeometryDegenerateError{Op: "beam angles"}
	}

	var (
		angles []float64
		seen   []*model.SurfaceLocation
	)
	for _, s := range surfaces {
		angle, err := BeamAngle(b.SatPosition, b.Velocity, s.Position)
		if err != nil {
			return false, err
		}
		rel := angle - b.DopplerAngle
		if rel >= qMin && rel <= qMax {
			angles = append(angles, angle)
			seen = append(seen, s)
			continue
		}
		if len(seen) > 0 {
			// visibility is a contiguous window along track
			break
		}
	}

	n := p.params.CHD.PulsesPerBurst
	if len(angles) > n {
		drop := len(angles) - n
		angles = angles[drop:]
		seen = seen[drop:]
	}

	b.BeamAngles = angles
	b.BeamSurfaces = make([]uint64, len(seen))
	workingSeen := false
	for i, s := range seen {
		b.BeamSurfaces[i] = s.ID
		s.Seen = append(s.Seen, model.SeenBeam{Burst: b, BeamIndex: i})
		if s == working {
			workingSeen = true
		}
	}
	b.BeamTrend = beamTrend(len(angles), n, prevSize, prevTrend)
	return workingSeen, nil
}

func beamTrend(size, full, prevSize int, prevTrend model.BeamTrend) model.BeamTrend {
	switch {
	case size == full:
		return model.TrendSteady
	case size > prevSize:
		return model.TrendExpanding
	case size < prevSize:
		return model.TrendContracting
	default:
		return prevTrend
	}
}
