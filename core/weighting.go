package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// WeightingStrategy returns one multilooking weight per stack beam.
type WeightingStrategy interface {
	Name() string
	Weights(s *model.SurfaceLocation) []float64
}

// UniformWeighting weights every beam equally.
type UniformWeighting struct{}

func (UniformWeighting) Name() string { return "uniform" }

func (UniformWeighting) Weights(s *model.SurfaceLocation) []float64 {
	w := make([]float64, len(s.Stack))
	for i := range w {
		w[i] = 1
	}
	return w
}

// AntennaWeighting compensates the two-way along-track antenna pattern at
// each beam's pointing angle. Weights are normalized to a mean of 1.
type AntennaWeighting struct {
	pattern interp.PiecewiseLinear
}

// NewAntennaWeighting fits the pattern table. Angles must be strictly
// increasing and at least two points are required.
func NewAntennaWeighting(p config.AntennaPattern) (*AntennaWeighting, error) {
	if len(p.Angles) < 2 || len(p.Angles) != len(p.Gains) {
		return nil, errors.New("antenna weighting needs a pattern of at least 2 points")
	}
	for i := 1; i < len(p.Angles); i++ {
		if p.Angles[i] <= p.Angles[i-1] {
			return nil, fmt.Errorf("antenna pattern angle %d not increasing", i)
		}
	}
	w := &AntennaWeighting{}
	if err := w.pattern.Fit(p.Angles, p.Gains); err != nil {
		return nil, fmt.Errorf("fit antenna pattern: %w", err)
	}
	return w, nil
}

func (*AntennaWeighting) Name() string { return "antenna" }

// Weights evaluates the pattern (clamped at the table ends) and inverts the
// two-way linear gain.
func (a *AntennaWeighting) Weights(s *model.SurfaceLocation) []float64 {
	w := make([]float64, len(s.Stack))
	var sum float64
	for i, sb := range s.Stack {
		gainDB := a.pattern.Predict(sb.PointingAngle)
		w[i] = math.Pow(10, -2*gainDB/10)
		sum += w[i]
	}
	if sum == 0 {
		return w
	}
	mean := sum / float64(len(w))
	for i := range w {
		w[i] /= mean
	}
	return w
}
