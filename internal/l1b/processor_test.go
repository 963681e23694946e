package l1b

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/internal/sim"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

func testParams() config.Params {
	p := config.Default()
	p.CHD.PulsesPerBurst = 8
	p.CHD.SamplesPerEcho = 16
	p.CHD.SamplingFrequency = 16 / p.CHD.PulseLength
	p.CHD.BRI = 0.05
	p.CNF.NLooksStack = 32
	return p
}

// testBursts simulates count bursts of an 800 km polar orbit over a
// reflector track. Every call returns fresh bursts.
func testBursts(t *testing.T, params config.Params, count int, gaps []int) []*model.Burst {
	t.Helper()
	start := params.CST.Epoch.Add(time.Hour)
	orbit := sim.CircularOrbit{Altitude: 800e3, Inclination: 98, Epoch: start}
	scene, err := sim.TrackScene(orbit, start.Add(-10*time.Second), 40*time.Second, 1000, 7)
	require.NoError(t, err)

	gen := sim.Generator{
		Params:      params,
		Orbit:       orbit,
		Echo:        &sim.ScattererEcho{Scatterers: scene, MaxRange: 900e3},
		Start:       start,
		Gaps:        gaps,
		GapDuration: 10 * time.Second,
		Seed:        3,
	}
	bursts, err := gen.Generate(count)
	require.NoError(t, err)
	return bursts
}

// captured is what a capturingSink keeps of each location.
type captured struct {
	id         uint64
	time       float64
	stackSize  int
	stackFirst float64
	stackLast  float64
	sigma0     float64
	waveform   []float64
}

type capturingSink struct {
	records []captured
	failAt  int
}

func (c *capturingSink) Write(_ context.Context, s *model.SurfaceLocation) error {
	if c.failAt > 0 && len(c.records)+1 == c.failAt {
		return errors.New("sink full")
	}
	lo, hi := s.StackTimeRange()
	c.records = append(c.records, captured{
		id:         s.ID,
		time:       s.Time,
		stackSize:  s.StackSize(),
		stackFirst: lo,
		stackLast:  hi,
		sigma0:     s.Sigma0Scale,
		waveform:   append([]float64(nil), s.Multilooked...),
	})
	return nil
}

func newProcessor(t *testing.T, params config.Params, opts ...Option) *Processor {
	t.Helper()
	pipeline, err := core.NewPipeline(params)
	require.NoError(t, err)
	return NewProcessor(pipeline, opts...)
}

type countingMetrics struct {
	read, created, written, skipped, gaps int
}

func (m *countingMetrics) BurstRead()                   { m.read++ }
func (m *countingMetrics) SurfacesCreated(n int)        { m.created += n }
func (m *countingMetrics) SurfaceWritten(time.Duration) { m.written++ }
func (m *countingMetrics) SurfaceSkipped(string)        { m.skipped++ }
func (m *countingMetrics) GapDetected()                 { m.gaps++ }
func (m *countingMetrics) SetBuffered(int, int)         {}

func TestRunWritesOrderedRecords(t *testing.T) {
	params := testParams()
	bursts := testBursts(t, params, 300, nil)
	metrics := &countingMetrics{}
	p := newProcessor(t, params, WithMetrics(metrics))
	sink := &capturingSink{}

	summary, err := p.Run(context.Background(), sim.NewSliceSource(bursts), sink)
	require.NoError(t, err)
	require.NotEmpty(t, sink.records)
	assert.Equal(t, StateDone, p.State())

	assert.Equal(t, 300, summary.BurstsRead)
	assert.Equal(t, summary.SurfacesCreated, summary.SurfacesWritten+summary.SurfacesSkipped)
	assert.Equal(t, len(sink.records), summary.SurfacesWritten)
	assert.Zero(t, summary.Gaps)
	assert.Equal(t, sink.records[0].time, summary.FirstTime)
	assert.Equal(t, sink.records[len(sink.records)-1].time, summary.LastTime)

	assert.Equal(t, summary.BurstsRead, metrics.read)
	assert.Equal(t, summary.SurfacesCreated, metrics.created)
	assert.Equal(t, summary.SurfacesWritten, metrics.written)
	assert.Equal(t, summary.SurfacesSkipped, metrics.skipped)

	nLooks := params.CNF.NLooksStack
	padded := params.PaddedSamples()
	for i, r := range sink.records {
		if i > 0 {
			require.Greater(t, r.id, sink.records[i-1].id, "records out of creation order")
			require.Greater(t, r.time, sink.records[i-1].time, "record times not increasing")
		}
		require.LessOrEqual(t, r.stackSize, nLooks)
		require.GreaterOrEqual(t, 2*r.stackSize, nLooks)
		require.GreaterOrEqual(t, r.time, r.stackFirst-1e-9, "record %d before its stack", r.id)
		require.LessOrEqual(t, r.time, r.stackLast+1e-9, "record %d after its stack", r.id)
		require.False(t, math.IsNaN(r.sigma0) || math.IsInf(r.sigma0, 0), "sigma0 of record %d", r.id)
		require.Len(t, r.waveform, padded)
	}
}

func TestRunAcrossGapKeepsStacksOnOneSide(t *testing.T) {
	params := testParams()
	const gapAt = 150

	run := func() ([]captured, Summary, float64) {
		bursts := testBursts(t, params, 300, []int{gapAt})
		p := newProcessor(t, params)
		sink := &capturingSink{}
		summary, err := p.Run(context.Background(), sim.NewSliceSource(bursts), sink)
		require.NoError(t, err)
		return sink.records, summary, bursts[gapAt].Time
	}

	first, summary, gapTime := run()
	assert.Equal(t, 1, summary.Gaps)

	var before, after int
	for _, r := range first {
		switch {
		case r.stackLast < gapTime:
			before++
		case r.stackFirst >= gapTime:
			after++
		default:
			t.Fatalf("record %d stacks bursts from both sides of the gap", r.id)
		}
	}
	assert.Positive(t, before)
	assert.Positive(t, after)

	second, _, _ := run()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].time, second[i].time)
		assert.Equal(t, first[i].waveform, second[i].waveform)
	}
}

func TestRunSplitAtGapMatchesSeparateSegments(t *testing.T) {
	params := testParams()
	const count, gapAt = 300, 150

	run := func(bursts []*model.Burst) []captured {
		sink := &capturingSink{}
		_, err := newProcessor(t, params).Run(context.Background(), sim.NewSliceSource(bursts), sink)
		require.NoError(t, err)
		return sink.records
	}

	joined := run(testBursts(t, params, count, []int{gapAt}))
	before := run(testBursts(t, params, count, []int{gapAt})[:gapAt])
	after := run(testBursts(t, params, count, []int{gapAt})[gapAt:])
	require.NotEmpty(t, before)
	require.NotEmpty(t, after)

	separate := append(before, after...)
	require.Len(t, joined, len(separate))
	for i := range joined {
		assert.InDelta(t, separate[i].time, joined[i].time, 1e-9, "record %d time", i)
		assert.Equal(t, separate[i].stackSize, joined[i].stackSize, "record %d stack size", i)
		assert.InDelta(t, separate[i].sigma0, joined[i].sigma0, 1e-9, "record %d sigma0", i)
		require.Len(t, joined[i].waveform, len(separate[i].waveform))
		for k := range joined[i].waveform {
			require.InDelta(t, separate[i].waveform[k], joined[i].waveform[k], 1e-9*(1+math.Abs(separate[i].waveform[k])),
				"record %d sample %d", i, k)
		}
	}
}

func TestRunSkipsUndersizedStack(t *testing.T) {
	params := testParams()
	params.CNF.NLooksStack = 4
	bursts := testBursts(t, params, 1, nil)
	sink := &capturingSink{}

	summary, err := newProcessor(t, params).Run(context.Background(), sim.NewSliceSource(bursts), sink)
	require.NoError(t, err)
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, summary.SurfacesCreated)
	assert.Equal(t, 1, summary.SurfacesSkipped)
}

func TestRunWithoutBurstsIsInsufficientInput(t *testing.T) {
	_, err := newProcessor(t, testParams()).Run(context.Background(), sim.NewSliceSource(nil), &capturingSink{})
	var insufficient *core.InsufficientInputError
	require.ErrorAs(t, err, &insufficient)
	assert.Zero(t, insufficient.Bursts)
}

func TestRunStopsOnCancel(t *testing.T) {
	params := testParams()
	bursts := testBursts(t, params, 20, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newProcessor(t, params).Run(ctx, sim.NewSliceSource(bursts), &capturingSink{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPropagatesSinkFailure(t *testing.T) {
	params := testParams()
	bursts := testBursts(t, params, 300, nil)
	sink := &capturingSink{failAt: 2}

	_, err := newProcessor(t, params).Run(context.Background(), sim.NewSliceSource(bursts), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink full")
	assert.Len(t, sink.records, 1)
}

func TestRunPropagatesCalibrationFailure(t *testing.T) {
	params := testParams()
	bursts := testBursts(t, params, 5, nil)
	bursts[3].Cal2Gain = nil

	_, err := newProcessor(t, params).Run(context.Background(), sim.NewSliceSource(bursts), &capturingSink{})
	var missing *core.MissingCalibrationDataError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 3, missing.Record)
}

func TestStateNames(t *testing.T) {
	cases := map[State]string{
		StateAwaitingMinSurfaces: "awaiting_min_surfaces",
		StateProcessingSurface:   "processing_surface",
		StateGapDetected:         "gap_detected",
		StateDrainingGap:         "draining_gap",
		StateResuming:            "resuming",
		StateDone:                "done",
		State(99):                "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
