package core

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// Multilook averages the masked, weighted stack power into s.Multilooked and
// derives the stack statistics and start/stop bookkeeping.
func (p *Pipeline) Multilook(s *model.SurfaceLocation) {
	padded := p.params.PaddedSamples()
	weights := p.weighting.Weights(s)
	avoidZeros := p.params.CNF.FlagAvoidZerosMultilook

	contributing := 0
	for _, v := range s.StackMaskVector {
		contributing += v
	}

	wf := make([]float64, padded)
	for k := 0; k < padded; k++ {
		var sum, den float64
		for i, pw := range s.BeamsPower {
			m := s.StackMask[i][k]
			sum += m * weights[i] * pw[k]
			if avoidZeros && m > 0 {
				den++
			}
		}
		if !avoidZeros {
			den = float64(contributing)
		}
		if den > 0 {
			wf[k] = sum / den
		}
	}
	s.Multilooked = wf

	s.Stats = p.stackStats(s)
	s.StartStop = startStop(s)
}

// stackStats fits Gaussians to the integrated beam power over a window
// around the beam closest to zero look angle: against look angle for the
// width, peak and centre, and against beam index for the shape moments.
func (p *Pipeline) stackStats(s *model.SurfaceLocation) model.StackStats {
	n := len(s.Stack)
	if n == 0 {
		return model.StackStats{}
	}
	center := 0
	for i, sb := range s.Stack {
		if math.Abs(sb.LookAngle) < math.Abs(s.Stack[center].LookAngle) {
			center = i
		}
	}
	half := p.params.CNF.GaussianHalfWindow
	lo, hi := max(0, center-half), min(n-1, center+half)

	var looks, idx, power []float64
	for i := lo; i <= hi; i++ {
		var sum float64
		for k, v := range s.BeamsPower[i] {
			sum += s.StackMask[i][k] * v
		}
		looks = append(looks, s.Stack[i].LookAngle)
		idx = append(idx, float64(i))
		power = append(power, sum)
	}
	if floats.Sum(power) <= 0 {
		return model.StackStats{}
	}

	byAngle := fitGaussian(looks, power)
	byIndex := fitGaussian(idx, power)
	skew, kurt := standardizedMoments(idx, power, byIndex.Mean, byIndex.Sigma)

	return model.StackStats{
		Std:         byAngle.Sigma,
		Skewness:    skew,
		Kurtosis:    kurt,
		Max:         byAngle.Amp,
		CentreAngle: byAngle.Mean,
		Centre:      byIndex.Mean,
	}
}

// startStop records the run of beams between the first and last
// contributing beam of the mask vector.
func startStop(s *model.SurfaceLocation) model.StartStop {
	first, last := -1, -1
	for i, v := range s.StackMaskVector {
		if v == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return model.StartStop{}
	}

	a, b := s.Stack[first], s.Stack[last]
	ss := model.StartStop{
		BeamStart:          first,
		BeamStop:           last,
		NBeams:             last - first + 1,
		BeamAngleStart:     a.BeamAngle,
		BeamAngleStop:      b.BeamAngle,
		LookAngleStart:     a.LookAngle,
		LookAngleStop:      b.LookAngle,
		DopplerAngleStart:  a.DopplerAngle,
		DopplerAngleStop:   b.DopplerAngle,
		PointingAngleStart: a.PointingAngle,
		PointingAngleStop:  b.PointingAngle,
		BurstStart:         a.Burst.Seq,
		BurstStop:          b.Burst.Seq,
		MaskVector:         append([]int(nil), s.StackMaskVector[first:last+1]...),
	}
	for _, sb := range s.Stack[first : last+1] {
		ss.BeamAngles = append(ss.BeamAngles, sb.BeamAngle)
		ss.LookAngles = append(ss.LookAngles, sb.LookAngle)
		ss.DopplerAngles = append(ss.DopplerAngles, sb.DopplerAngle)
		ss.PointingAngles = append(ss.PointingAngles, sb.PointingAngle)
	}
	return ss
}
