package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// GatherStack builds s.Stack from the accumulated Seen list. When more beams
// were seen than the configured look count, the contiguous window centred on
// the beam closest to zero look angle is kept. It returns
// ErrLowQualityLocation when the stack holds fewer than half the looks.
func (p *Pipeline) GatherStack(s *model.SurfaceLocation) error {
	nLooks := p.params.CNF.NLooksStack
	seen := s.Seen
	if len(seen) == 0 {
		s.Stack = nil
		return ErrLowQualityLocation
	}

	looks := make([]float64, len(seen))
	center := 0
	for i, sb := range seen {
		beam := sb.Burst.BeamAngles[sb.BeamIndex]
		looks[i] = LookAngle(beam, sb.Burst.DopplerAngle)
		if math.Abs(looks[i]) < math.Abs(looks[center]) {
			center = i
		}
	}

	start, stop := 0, len(seen)
	if len(seen) > nLooks {
		start = min(max(center-nLooks/2, 0), len(seen)-nLooks)
		stop = start + nLooks
	}

	stack := make([]model.StackBeam, 0, stop-start)
	surfaceType := model.SurfaceRaw
	closest := 0
	for i := start; i < stop; i++ {
		sb := seen[i]
		b := sb.Burst
		beam := b.BeamAngles[sb.BeamIndex]
		var focused []complex128
		if sb.BeamIndex < len(b.BeamsFocused) {
			focused = b.BeamsFocused[sb.BeamIndex]
		}
		stack = append(stack, model.StackBeam{
			Burst:         b,
			BeamIndex:     sb.BeamIndex,
			BeamAngle:     beam,
			Time:          b.Time,
			DopplerAngle:  b.DopplerAngle,
			LookAngle:     looks[i],
			PointingAngle: looks[i] - b.Pitch,
			LookIndex:     i - center,
			LookCounter:   i - start + 1,
			Focused:       focused,
		})
		if b.RMC {
			surfaceType = model.SurfaceRMC
		}
		j := len(stack) - 1
		if math.Abs(beam-math.Pi/2) < math.Abs(stack[closest].BeamAngle-math.Pi/2) {
			closest = j
		}
	}

	s.Stack = stack
	s.SurfaceType = surfaceType
	s.ClosestBeam = closest
	if 2*len(stack) < nLooks {
		return ErrLowQualityLocation
	}
	return nil
}
