package l1b

import (
	"context"

	"github.com/signalsfoundry/delay-doppler-processor/internal/logging"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// State is a state of the processor's finite-state machine.
type State int

const (
	// StateAwaitingMinSurfaces reads bursts until enough locations are
	// buffered to finalize the oldest one.
	StateAwaitingMinSurfaces State = iota
	// StateProcessingSurface finalizes the oldest location. After the end of
	// input it keeps finalizing until the buffer is empty.
	StateProcessingSurface
	// StateGapDetected records a burst that does not continue the segment.
	StateGapDetected
	// StateDrainingGap finalizes every location of the closed segment.
	StateDrainingGap
	// StateResuming clears the segment state and restarts tracking with the
	// held burst.
	StateResuming
	// StateDone is terminal.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingMinSurfaces:
		return "awaiting_min_surfaces"
	case StateProcessingSurface:
		return "processing_surface"
	case StateGapDetected:
		return "gap_detected"
	case StateDrainingGap:
		return "draining_gap"
	case StateResuming:
		return "resuming"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// step runs the current state once and returns the next one.
func (p *Processor) step(ctx context.Context, src BurstSource, sink RecordSink) (State, error) {
	switch p.state {
	case StateAwaitingMinSurfaces:
		return p.stepAwaiting(ctx, src)
	case StateProcessingSurface:
		return p.stepProcessing(ctx, sink)
	case StateGapDetected:
		return p.stepGapDetected(ctx)
	case StateDrainingGap:
		return p.stepDraining(ctx, sink)
	case StateResuming:
		return p.stepResuming()
	default:
		return StateDone, nil
	}
}

func (p *Processor) stepAwaiting(ctx context.Context, src BurstSource) (State, error) {
	b, err := p.readBurst(ctx, src)
	if err != nil {
		return p.state, err
	}
	if b == nil {
		p.eof = true
		return StateProcessingSurface, nil
	}
	if p.isGap(b) {
		p.pending = b
		return StateGapDetected, nil
	}
	if err := p.intake(b, false); err != nil {
		return p.state, err
	}
	return p.afterIntake(), nil
}

func (p *Processor) afterIntake() State {
	if p.enoughSurfaces() {
		return StateProcessingSurface
	}
	return StateAwaitingMinSurfaces
}

func (p *Processor) stepProcessing(ctx context.Context, sink RecordSink) (State, error) {
	if p.surfaces.Len() == 0 {
		if p.eof {
			return StateDone, nil
		}
		return StateAwaitingMinSurfaces, nil
	}
	if err := p.processWorking(ctx, sink); err != nil {
		return p.state, err
	}
	if p.eof {
		return StateProcessingSurface, nil
	}
	return p.afterIntake(), nil
}

func (p *Processor) stepGapDetected(ctx context.Context) (State, error) {
	p.summary.Gaps++
	p.metrics.GapDetected()
	var dt float64
	if p.lastBurst != nil {
		dt = p.pending.Time - p.lastBurst.Time
	}
	p.log.Info(ctx, "acquisition gap detected",
		logging.Uint64("burst", p.pending.Seq),
		logging.Float64("dt_seconds", dt),
		logging.Int("pending_surfaces", p.surfaces.Len()))
	return StateDrainingGap, nil
}

func (p *Processor) stepDraining(ctx context.Context, sink RecordSink) (State, error) {
	if p.surfaces.Len() == 0 {
		return StateResuming, nil
	}
	if err := p.processWorking(ctx, sink); err != nil {
		return p.state, err
	}
	return StateDrainingGap, nil
}

func (p *Processor) stepResuming() (State, error) {
	p.bursts.Reset()
	p.lastBurst = nil
	p.lastSurface = nil
	p.prevSize = 0
	p.prevTrend = model.TrendSteady
	b := p.pending
	p.pending = nil
	if err := p.intake(b, true); err != nil {
		return p.state, err
	}
	return p.afterIntake(), nil
}
