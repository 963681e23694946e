package core

import (
	"fmt"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// Pipeline carries the immutable parameters and the pluggable strategies
// shared by every processing stage. A Pipeline holds no per-run state and is
// safe for concurrent use once constructed.
type Pipeline struct {
	params    config.Params
	ellipsoid Ellipsoid
	masks     []MaskStrategy
	weighting WeightingStrategy
	masksSet  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMasks replaces the mask strategies derived from the run configuration.
// Passing none leaves every sample unmasked.
func WithMasks(masks ...MaskStrategy) Option {
	return func(p *Pipeline) {
		p.masks = masks
		p.masksSet = true
	}
}

// WithWeighting replaces the weighting strategy derived from the run
// configuration.
func WithWeighting(w WeightingStrategy) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.weighting = w
		}
	}
}

// NewPipeline validates params and builds the default strategies from the
// run configuration flags.
func NewPipeline(params config.Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	p := &Pipeline{
		params:    params,
		ellipsoid: Ellipsoid{A: params.CST.SemiMajorAxis, F: params.CST.Flattening},
	}
	for _, opt := range opts {
		opt(p)
	}

	if !p.masksSet {
		p.masks = DefaultMasks(params.CNF)
	}
	if p.weighting == nil {
		if params.CNF.FlagAntennaWeighting {
			w, err := NewAntennaWeighting(params.CHD.AntennaPattern)
			if err != nil {
				return nil, err
			}
			p.weighting = w
		} else {
			p.weighting = UniformWeighting{}
		}
	}
	return p, nil
}

// Params returns the parameter bundle the pipeline was built with.
func (p *Pipeline) Params() config.Params {
	return p.params
}

// Ellipsoid returns the reference ellipsoid derived from the constants.
func (p *Pipeline) Ellipsoid() Ellipsoid {
	return p.ellipsoid
}

// DefaultMasks returns the mask strategies enabled by cnf.
func DefaultMasks(cnf config.Configuration) []MaskStrategy {
	if !cnf.FlagStackMasking {
		return nil
	}
	masks := []MaskStrategy{GeometryMask{}, RMCMask{}}
	if cnf.FlagRemoveDopplerAmbig {
		masks = append(masks, DopplerAmbiguityMask{})
	}
	return masks
}

// FinalizeSurface runs stack gathering, geometry corrections, range
// compression, masking, multilooking and sigma0 scaling on s. It returns
// ErrLowQualityLocation, without running the later stages, when the stack is
// too small to keep.
func (p *Pipeline) FinalizeSurface(s *model.SurfaceLocation) error {
	if err := p.GatherStack(s); err != nil {
		return err
	}
	p.ApplyGeometryCorrections(s)
	p.RangeCompress(s)
	p.MaskStack(s)
	p.Multilook(s)
	p.ScaleSigma0(s)
	return nil
}
