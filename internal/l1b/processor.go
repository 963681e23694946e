// Package l1b drives the SAR pipeline over a burst stream: it buffers
// bursts and surface locations, detects acquisition gaps and hands finished
// locations to a sink.
package l1b

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/internal/logging"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

const tracerName = "github.com/signalsfoundry/delay-doppler-processor/internal/l1b"

// Skip reasons reported to the metrics recorder.
const (
	SkipLowQuality = "low_quality"
)

// BurstSource yields bursts in acquisition order and io.EOF when exhausted.
type BurstSource interface {
	Next(ctx context.Context) (*model.Burst, error)
}

// RecordSink receives finalized surface locations in creation order.
type RecordSink interface {
	Write(ctx context.Context, s *model.SurfaceLocation) error
}

// MetricsRecorder receives processing counters. Implementations must be
// safe to call from a single goroutine; the processor never calls them
// concurrently.
type MetricsRecorder interface {
	BurstRead()
	SurfacesCreated(n int)
	SurfaceWritten(d time.Duration)
	SurfaceSkipped(reason string)
	GapDetected()
	SetBuffered(bursts, surfaces int)
}

type noopMetrics struct{}

func (noopMetrics) BurstRead()                   {}
func (noopMetrics) SurfacesCreated(int)          {}
func (noopMetrics) SurfaceWritten(time.Duration) {}
func (noopMetrics) SurfaceSkipped(string)        {}
func (noopMetrics) GapDetected()                 {}
func (noopMetrics) SetBuffered(int, int)         {}

// Summary counts what one run did.
type Summary struct {
	BurstsRead      int
	SurfacesCreated int
	SurfacesWritten int
	SurfacesSkipped int
	Gaps            int
	// FirstTime and LastTime bound the written records (seconds since epoch).
	FirstTime float64
	LastTime  float64
}

// Option customises Processor construction.
type Option func(*Processor)

// WithLogger attaches a logger; the default drops everything.
func WithLogger(l logging.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics attaches an optional metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Processor is the burst-by-burst orchestrator. It is not safe for
// concurrent use; each Run owns the buffers until it returns.
type Processor struct {
	pipeline *core.Pipeline
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer

	state    State
	bursts   fifo[*model.Burst]
	surfaces fifo[*model.SurfaceLocation]
	tracker  *core.SurfaceTracker

	lastBurst   *model.Burst
	lastSurface *model.SurfaceLocation
	pending     *model.Burst
	prevSize    int
	prevTrend   model.BeamTrend
	nextSeq     uint64
	eof         bool
	summary     Summary
}

// NewProcessor returns a processor running the stages of pipeline.
func NewProcessor(pipeline *core.Pipeline, opts ...Option) *Processor {
	p := &Processor{
		pipeline: pipeline,
		log:      logging.Noop(),
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state of the machine.
func (p *Processor) State() State {
	return p.state
}

// Run consumes src until io.EOF, writing every retained surface location to
// sink. The buffers are reset at the start of each call, so nothing carries
// over between files. Cancellation is checked between bursts and between
// surface locations; records already handed to sink stay valid.
func (p *Processor) Run(ctx context.Context, src BurstSource, sink RecordSink) (Summary, error) {
	p.reset()
	ctx, span := p.tracer.Start(ctx, "l1b.Run")
	defer span.End()

	for p.state != StateDone {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return p.summary, err
		}
		next, err := p.step(ctx, src, sink)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return p.summary, err
		}
		if next != p.state {
			p.log.Debug(ctx, "state transition",
				logging.String("from", p.state.String()),
				logging.String("to", next.String()))
		}
		p.state = next
	}

	span.SetAttributes(
		attribute.Int("ddp.bursts_read", p.summary.BurstsRead),
		attribute.Int("ddp.surfaces_written", p.summary.SurfacesWritten),
		attribute.Int("ddp.surfaces_skipped", p.summary.SurfacesSkipped),
		attribute.Int("ddp.gaps", p.summary.Gaps),
	)
	if p.summary.SurfacesCreated == 0 {
		err := &core.InsufficientInputError{Bursts: p.summary.BurstsRead}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p.summary, err
	}
	return p.summary, nil
}

func (p *Processor) reset() {
	p.state = StateAwaitingMinSurfaces
	p.bursts.Reset()
	p.surfaces.Reset()
	p.tracker = p.pipeline.NewSurfaceTracker()
	p.lastBurst = nil
	p.lastSurface = nil
	p.pending = nil
	p.prevSize = 0
	p.prevTrend = model.TrendSteady
	p.nextSeq = 0
	p.eof = false
	p.summary = Summary{}
}

// readBurst pulls, calibrates and prepares the next burst. It returns nil at
// the end of input.
func (p *Processor) readBurst(ctx context.Context, src BurstSource) (*model.Burst, error) {
	b, err := src.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read burst: %w", err)
	}
	b.Seq = p.nextSeq
	p.nextSeq++
	p.summary.BurstsRead++
	p.metrics.BurstRead()

	if err := p.pipeline.Calibrate(b); err != nil {
		return nil, err
	}
	if err := p.pipeline.PrepareBurst(b); err != nil {
		return nil, fmt.Errorf("burst %d: %w", b.Seq, err)
	}
	return b, nil
}

// isGap reports whether b does not continue the current segment.
func (p *Processor) isGap(b *model.Burst) bool {
	if p.lastBurst == nil {
		return false
	}
	dt := b.Time - p.lastBurst.Time
	return dt <= 0 || dt >= p.pipeline.Params().GapThreshold()
}

// intake buffers b and lets the tracker create any locations it makes due.
func (p *Processor) intake(b *model.Burst, forceNew bool) error {
	p.bursts.Push(b)
	created, err := p.tracker.Track(p.lastBurst, b, p.lastSurface, forceNew)
	if err != nil {
		return fmt.Errorf("burst %d: %w", b.Seq, err)
	}
	for _, s := range created {
		p.surfaces.Push(s)
		p.lastSurface = s
	}
	p.lastBurst = b
	if len(created) > 0 {
		p.summary.SurfacesCreated += len(created)
		p.metrics.SurfacesCreated(len(created))
	}
	p.metrics.SetBuffered(p.bursts.Len(), p.surfaces.Len())
	return nil
}

// enoughSurfaces reports whether the oldest location can be finalized
// without waiting for more input.
func (p *Processor) enoughSurfaces() bool {
	return p.surfaces.Len() >= p.pipeline.Params().MinSurfaces()
}

// processWorking finalizes the oldest buffered location: it runs beam angles
// and azimuth processing on buffered bursts until one no longer sees the
// location, then the per-location stages, hands the result to sink and
// evicts what is no longer needed.
func (p *Processor) processWorking(ctx context.Context, sink RecordSink) error {
	working := p.surfaces.Front()
	ctx, span := p.tracer.Start(ctx, "l1b.Surface", trace.WithAttributes(
		attribute.Int64("ddp.surface_id", int64(working.ID)),
		attribute.Float64("ddp.surface_time", working.Time),
	))
	defer span.End()
	start := time.Now()

	for i := 0; i < p.bursts.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := p.bursts.At(i)
		if b.Processed {
			continue
		}
		seen, err := p.pipeline.ComputeBeamAngles(b, p.surfaces.Slice(), working, p.prevSize, p.prevTrend)
		if err != nil {
			return fmt.Errorf("burst %d: %w", b.Seq, err)
		}
		p.prevSize = len(b.BeamAngles)
		p.prevTrend = b.BeamTrend
		p.pipeline.AzimuthProcess(b)
		b.Processed = true
		if !seen && (len(working.Seen) > 0 || b.Time > working.Time) {
			break
		}
	}

	err := p.pipeline.FinalizeSurface(working)
	switch {
	case errors.Is(err, core.ErrLowQualityLocation):
		p.summary.SurfacesSkipped++
		p.metrics.SurfaceSkipped(SkipLowQuality)
		span.SetAttributes(attribute.Bool("ddp.skipped", true))
		p.log.Debug(ctx, "surface skipped",
			logging.Uint64("surface_id", working.ID),
			logging.Int("stack_size", working.StackSize()),
			logging.String("reason", SkipLowQuality))
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("surface %d: %w", working.ID, err)
	default:
		if err := sink.Write(ctx, working); err != nil {
			span.RecordError(err)
			return fmt.Errorf("write surface %d: %w", working.ID, err)
		}
		if p.summary.SurfacesWritten == 0 {
			p.summary.FirstTime = working.Time
		}
		p.summary.LastTime = working.Time
		p.summary.SurfacesWritten++
		p.metrics.SurfaceWritten(time.Since(start))
		span.SetAttributes(attribute.Int("ddp.stack_size", working.StackSize()))
	}

	p.surfaces.Pop()
	p.evict(working.ID)
	p.metrics.SetBuffered(p.bursts.Len(), p.surfaces.Len())
	return nil
}

// evict drops processed bursts from the front of the buffer that no longer
// feed any pending location.
func (p *Processor) evict(finalized uint64) {
	for p.bursts.Len() > 0 {
		b := p.bursts.Front()
		if !b.Processed || b.SeesSurfaceAfter(finalized) {
			return
		}
		p.bursts.Pop()
	}
}
