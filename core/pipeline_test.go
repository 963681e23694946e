package core

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"pgregory.net/rapid"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

func smallParams() config.Params {
	p := config.Default()
	p.CHD.PulsesPerBurst = 8
	p.CHD.SamplesPerEcho = 16
	p.CHD.SamplingFrequency = 16 / p.CHD.PulseLength
	p.CNF.NLooksStack = 32
	return p
}

func newTestPipeline(t *testing.T, mutate func(*config.Params)) *Pipeline {
	t.Helper()
	params := smallParams()
	if mutate != nil {
		mutate(&params)
	}
	p, err := NewPipeline(params)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func toneBurst(n, s int) *model.Burst {
	b := &model.Burst{Raw: make([][]complex128, n)}
	for p := range b.Raw {
		b.Raw[p] = make([]complex128, s)
		for k := range b.Raw[p] {
			b.Raw[p][k] = cmplx.Exp(complex(0, 2*math.Pi*3*float64(k)/float64(s)+0.4*float64(p)))
		}
	}
	b.Cal1Power = make([]float64, n)
	b.Cal1Phase = make([]float64, n)
	b.Cal2Gain = make([]float64, s)
	for i := range b.Cal2Gain {
		b.Cal2Gain[i] = 1
	}
	return b
}

func maxAbsDiff(a, b [][]complex128) float64 {
	worst := 0.0
	for i := range a {
		for j := range a[i] {
			worst = math.Max(worst, cmplx.Abs(a[i][j]-b[i][j]))
		}
	}
	return worst
}

func TestCalibrateRemovesCal1Drift(t *testing.T) {
	p := newTestPipeline(t, nil)
	clean := toneBurst(8, 16)
	drifted := toneBurst(8, 16)
	for i := range drifted.Raw {
		drifted.Cal1Power[i] = 0.5 * float64(i-4)
		drifted.Cal1Phase[i] = 0.1 * float64(i)
		k := complex(math.Pow(10, drifted.Cal1Power[i]/20), 0) * cmplx.Exp(complex(0, drifted.Cal1Phase[i]))
		for j := range drifted.Raw[i] {
			drifted.Raw[i][j] *= k
		}
	}
	if err := p.Calibrate(drifted); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if d := maxAbsDiff(drifted.Waveform, clean.Raw); d > 1e-9 {
		t.Fatalf("calibrated waveform differs from clean echo by %g", d)
	}
}

func TestCalibrateCal1IsFlatAcrossRange(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) { c.CNF.FlagCal2 = false })
	b := toneBurst(8, 16)
	for i := range b.Raw {
		// an impulse per pulse spans every range frequency
		clear(b.Raw[i])
		b.Raw[i][i] = complex(1, float64(i))
		b.Cal1Power[i] = float64(i)
		b.Cal1Phase[i] = -0.3 * float64(i)
	}
	if err := p.Calibrate(b); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	for i := range b.Raw {
		k := complex(math.Pow(10, -b.Cal1Power[i]/20), 0) * cmplx.Exp(complex(0, -b.Cal1Phase[i]))
		for j := range b.Raw[i] {
			if want := b.Raw[i][j] * k; cmplx.Abs(b.Waveform[i][j]-want) > 1e-15 {
				t.Fatalf("pulse %d sample %d: got %v, want %v", i, j, b.Waveform[i][j], want)
			}
		}
	}
}

func TestCalibrateDividesByCal2Gain(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) { c.CNF.FlagCal1 = false })
	b := toneBurst(8, 16)
	for i := range b.Cal2Gain {
		b.Cal2Gain[i] = 2
	}
	if err := p.Calibrate(b); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	for i := range b.Raw {
		for j := range b.Raw[i] {
			if cmplx.Abs(b.Waveform[i][j]-b.Raw[i][j]/2) > 1e-9 {
				t.Fatalf("pulse %d sample %d: got %v, want %v", i, j, b.Waveform[i][j], b.Raw[i][j]/2)
			}
		}
	}
}

func TestCalibrateWithoutCorrectionsCopiesRaw(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) {
		c.CNF.FlagCal1 = false
		c.CNF.FlagCal2 = false
	})
	b := toneBurst(8, 16)
	b.Cal1Power, b.Cal2Gain = nil, nil
	if err := p.Calibrate(b); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if maxAbsDiff(b.Waveform, b.Raw) != 0 {
		t.Fatalf("waveform should equal raw echo")
	}
	b.Waveform[0][0] = 42
	if b.Raw[0][0] == 42 {
		t.Fatalf("waveform must not alias the raw echo")
	}
}

func TestCalibrateReportsMissingTables(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*model.Burst)
		variable string
	}{
		{"cal1 power", func(b *model.Burst) { b.Cal1Power = b.Cal1Power[:3] }, "burst_power_cor"},
		{"cal1 phase", func(b *model.Burst) { b.Cal1Phase = nil }, "burst_phase_cor"},
		{"cal2 gain", func(b *model.Burst) { b.Cal2Gain = nil }, "gprw_meas"},
		{"cal2 zero gain", func(b *model.Burst) { b.Cal2Gain[5] = 0 }, "gprw_meas"},
		{"cal2 phase", func(b *model.Burst) { b.Cal2Phase = []float64{1} }, "gprw_phase"},
	}
	p := newTestPipeline(t, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := toneBurst(8, 16)
			b.RecordIndex = 7
			tc.mutate(b)
			err := p.Calibrate(b)
			var missing *MissingCalibrationDataError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingCalibrationDataError, got %v", err)
			}
			if missing.Variable != tc.variable || missing.Record != 7 {
				t.Fatalf("got %+v", missing)
			}
		})
	}
}

func TestNadirBeamIndex(t *testing.T) {
	cases := []struct {
		size, n int
		trend   model.BeamTrend
		want    int
	}{
		{64, 64, model.TrendSteady, 32},
		{10, 64, model.TrendExpanding, 0},
		{40, 64, model.TrendExpanding, 8},
		{40, 64, model.TrendContracting, 32},
		{10, 64, model.TrendContracting, 9},
		{7, 64, model.TrendSteady, 3},
		{0, 64, model.TrendSteady, 0},
	}
	for _, tc := range cases {
		if got := NadirBeamIndex(tc.size, tc.n, tc.trend); got != tc.want {
			t.Fatalf("NadirBeamIndex(%d, %d, %v) = %d, want %d", tc.size, tc.n, tc.trend, got, tc.want)
		}
	}
}

func TestBeamTrend(t *testing.T) {
	cases := []struct {
		size, prevSize int
		prev           model.BeamTrend
		want           model.BeamTrend
	}{
		{8, 8, model.TrendExpanding, model.TrendSteady},
		{5, 4, model.TrendSteady, model.TrendExpanding},
		{3, 4, model.TrendSteady, model.TrendContracting},
		{4, 4, model.TrendContracting, model.TrendContracting},
	}
	for _, tc := range cases {
		if got := beamTrend(tc.size, 8, tc.prevSize, tc.prev); got != tc.want {
			t.Fatalf("beamTrend(%d, prev %d/%v) = %v, want %v", tc.size, tc.prevSize, tc.prev, got, tc.want)
		}
	}
}

func TestBeamWindowSpansOneBurstOfBeams(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Params().BeamResolution(7500)
	lo, hi := p.BeamWindow(7500)
	if math.Abs((hi-lo)-7*res) > 1e-12 {
		t.Fatalf("window width = %g, want %g", hi-lo, 7*res)
	}
	if !(lo < math.Pi/2 && math.Pi/2 < hi) {
		t.Fatalf("broadside outside window [%g, %g]", lo, hi)
	}
}

// seenLocation builds a location seen once by each of the given beam angles,
// from bursts with zero Doppler angle.
func seenLocation(beams []float64, rmc map[int]bool) *model.SurfaceLocation {
	s := &model.SurfaceLocation{ClosestBeam: -1}
	for i, beam := range beams {
		b := &model.Burst{
			Seq:          uint64(i),
			Time:         float64(i),
			BeamAngles:   []float64{beam},
			BeamsFocused: [][]complex128{{complex(float64(i), 0)}},
			RMC:          rmc[i],
		}
		s.Seen = append(s.Seen, model.SeenBeam{Burst: b, BeamIndex: 0})
	}
	return s
}

func TestGatherStackKeepsBeamsAroundBroadside(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) { c.CNF.NLooksStack = 2 })
	s := seenLocation([]float64{math.Pi/2 - 0.01, math.Pi / 2, math.Pi/2 + 0.01}, map[int]bool{0: true})

	if err := p.GatherStack(s); err != nil {
		t.Fatalf("GatherStack: %v", err)
	}
	if s.StackSize() != 2 {
		t.Fatalf("stack size = %d, want 2", s.StackSize())
	}
	if s.Stack[0].Burst.Seq != 0 || s.Stack[1].Burst.Seq != 1 {
		t.Fatalf("expected the broadside beam and the one before it, got bursts %d and %d",
			s.Stack[0].Burst.Seq, s.Stack[1].Burst.Seq)
	}
	if s.Stack[0].LookIndex != -1 || s.Stack[1].LookIndex != 0 {
		t.Fatalf("look indices = %d, %d", s.Stack[0].LookIndex, s.Stack[1].LookIndex)
	}
	if s.Stack[0].LookCounter != 1 || s.Stack[1].LookCounter != 2 {
		t.Fatalf("look counters = %d, %d", s.Stack[0].LookCounter, s.Stack[1].LookCounter)
	}
	if s.ClosestBeam != 1 || s.ClosestBurst() != s.Stack[1].Burst {
		t.Fatalf("closest beam = %d", s.ClosestBeam)
	}
	if s.SurfaceType != model.SurfaceRMC {
		t.Fatalf("surface type = %v, want RMC", s.SurfaceType)
	}
	if math.Abs(s.Stack[0].LookAngle-0.01) > 1e-12 {
		t.Fatalf("look angle = %v, want 0.01", s.Stack[0].LookAngle)
	}
}

func TestGatherStackSkipsSmallStacks(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) { c.CNF.NLooksStack = 4 })
	s := seenLocation([]float64{math.Pi / 2}, nil)
	if err := p.GatherStack(s); !errors.Is(err, ErrLowQualityLocation) {
		t.Fatalf("expected ErrLowQualityLocation, got %v", err)
	}
	if err := p.GatherStack(&model.SurfaceLocation{}); !errors.Is(err, ErrLowQualityLocation) {
		t.Fatalf("expected ErrLowQualityLocation for an unseen location, got %v", err)
	}
}

func TestGatherStackBoundProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nLooks := rapid.IntRange(1, 40).Draw(rt, "nLooks")
		beams := rapid.SliceOfN(rapid.Float64Range(math.Pi/2-0.05, math.Pi/2+0.05), 1, 80).Draw(rt, "beams")

		params := smallParams()
		params.CNF.NLooksStack = nLooks
		p, err := NewPipeline(params)
		if err != nil {
			rt.Fatalf("NewPipeline: %v", err)
		}
		s := seenLocation(beams, nil)
		err = p.GatherStack(s)

		want := min(len(beams), nLooks)
		if s.StackSize() != want {
			rt.Fatalf("stack size = %d, want %d", s.StackSize(), want)
		}
		if (2*want < nLooks) != errors.Is(err, ErrLowQualityLocation) {
			rt.Fatalf("skip decision wrong: size %d looks %d err %v", want, nLooks, err)
		}
		for i, sb := range s.Stack {
			if sb.LookCounter != i+1 {
				rt.Fatalf("look counter %d at %d", sb.LookCounter, i)
			}
			if i > 0 && sb.Burst.Seq != s.Stack[i-1].Burst.Seq+1 {
				rt.Fatalf("stack is not contiguous in burst order")
			}
		}
	})
}

func TestGeometryCorrectionsAlignToLocation(t *testing.T) {
	p := newTestPipeline(t, nil)
	params := p.Params()
	c := params.CST.SpeedOfLight

	sat := model.Vec3{Z: 800e3}
	s := &model.SurfaceLocation{WinDelay: 2 * 800e3 / c}
	b := &model.Burst{
		SatPosition: sat,
		Velocity:    model.Vec3{X: 7000},
		WinDelay:    2 * 800.1e3 / c,
	}
	s.Stack = []model.StackBeam{{Burst: b, BeamAngle: math.Pi / 2, Focused: make([]complex128, 16)}}
	p.ApplyGeometryCorrections(s)

	corr := s.Corrections
	if math.Abs(corr.SlantRange[0]) > 1e-6 {
		t.Fatalf("slant range correction = %v, want 0 at the window centre", corr.SlantRange[0])
	}
	if math.Abs(corr.WinDelay[0]-100) > 1e-6 {
		t.Fatalf("window delay correction = %v, want 100", corr.WinDelay[0])
	}
	if math.Abs(corr.Doppler[0]) > 1e-6 {
		t.Fatalf("doppler correction at broadside = %v, want 0", corr.Doppler[0])
	}
	binZP := params.RangeBinSize() / float64(params.CNF.ZeroPadding)
	if math.Abs(corr.ShiftBins[0]-corr.Total[0]/binZP) > 1e-9 {
		t.Fatalf("shift bins = %v, total %v", corr.ShiftBins[0], corr.Total[0])
	}
	if len(s.BeamsGeoCorr) != 1 || len(s.BeamsGeoCorr[0]) != 16 {
		t.Fatalf("unexpected corrected beam shape")
	}
}

func TestGeometryCorrectionMovesToneByShift(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) {
		c.CNF.FlagDopplerCorrection = false
		c.CNF.FlagSlantRangeCorrection = false
	})
	params := p.Params()
	c := params.CST.SpeedOfLight
	padded := params.PaddedSamples()
	binZP := params.RangeBinSize() / float64(params.CNF.ZeroPadding)

	// a window-delay offset of exactly 4 padded bins
	offset := 4 * binZP
	s := &model.SurfaceLocation{WinDelay: 0.005}
	b := &model.Burst{Velocity: model.Vec3{X: 7000}, WinDelay: 0.005 + 2*offset/c}
	flat := make([]complex128, 16)
	for i := range flat {
		flat[i] = 1
	}
	s.Stack = []model.StackBeam{{Burst: b, BeamAngle: math.Pi / 2, Focused: flat}}
	p.ApplyGeometryCorrections(s)
	p.RangeCompress(s)

	peak := 0
	for k, v := range s.BeamsPower[0] {
		if v > s.BeamsPower[0][peak] {
			peak = k
		}
	}
	if peak != padded/2+4 {
		t.Fatalf("peak at bin %d, want %d", peak, padded/2+4)
	}
}

func TestMultilookWithoutMaskingIsStackMean(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) {
		c.CNF.FlagStackMasking = false
		c.CNF.NLooksStack = 2
	})
	padded := p.Params().PaddedSamples()
	s := seenLocation([]float64{math.Pi/2 - 0.01, math.Pi / 2, math.Pi/2 + 0.01}, nil)
	if err := p.GatherStack(s); err != nil {
		t.Fatalf("GatherStack: %v", err)
	}
	s.BeamsPower = make([][]float64, s.StackSize())
	for i := range s.BeamsPower {
		s.BeamsPower[i] = make([]float64, padded)
		for k := range s.BeamsPower[i] {
			s.BeamsPower[i][k] = float64((i + 1) * (k + 1))
		}
	}
	p.MaskStack(s)
	p.Multilook(s)

	for k, v := range s.Multilooked {
		want := (float64(k+1) + 2*float64(k+1)) / 2
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("multilooked[%d] = %v, want %v", k, v, want)
		}
	}
	if s.StartStop.NBeams != 2 || s.StartStop.BeamStart != 0 || s.StartStop.BeamStop != 1 {
		t.Fatalf("start/stop = %+v", s.StartStop)
	}
}

func TestMultilookAvoidZerosCountsUnmaskedBeams(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) { c.CNF.NLooksStack = 2 })
	padded := p.Params().PaddedSamples()
	s := seenLocation([]float64{math.Pi / 2, math.Pi/2 + 0.001}, nil)
	if err := p.GatherStack(s); err != nil {
		t.Fatalf("GatherStack: %v", err)
	}
	s.BeamsPower = [][]float64{make([]float64, padded), make([]float64, padded)}
	s.StackMask = [][]float64{make([]float64, padded), make([]float64, padded)}
	for k := 0; k < padded; k++ {
		s.BeamsPower[0][k], s.BeamsPower[1][k] = 2, 4
		s.StackMask[0][k] = 1
		if k < padded/2 {
			s.StackMask[1][k] = 1
		}
	}
	s.StackMaskVector = []int{1, 1}
	p.Multilook(s)

	if got := s.Multilooked[0]; got != 3 {
		t.Fatalf("sample with both beams = %v, want 3", got)
	}
	if got := s.Multilooked[padded-1]; got != 2 {
		t.Fatalf("sample with one beam = %v, want 2", got)
	}
}

func TestMaskStrategies(t *testing.T) {
	params := smallParams()
	padded := params.PaddedSamples()
	s := &model.SurfaceLocation{
		Stack: []model.StackBeam{
			{Burst: &model.Burst{}},
			{Burst: &model.Burst{RMC: true}},
		},
		Corrections: model.StackCorrections{
			ShiftBins:  []float64{2.5, -3},
			SlantRange: []float64{0, 0},
		},
	}
	ones := func() []float64 {
		r := make([]float64, padded)
		for i := range r {
			r[i] = 1
		}
		return r
	}
	zeros := func(r []float64) (front, back int) {
		for i := 0; i < len(r) && r[i] == 0; i++ {
			front++
		}
		for i := len(r) - 1; i >= 0 && r[i] == 0; i-- {
			back++
		}
		return
	}

	row := ones()
	GeometryMask{}.Apply(params, s, 0, row)
	if f, b := zeros(row); f != 3 || b != 0 {
		t.Fatalf("positive shift masked front=%d back=%d, want 3/0", f, b)
	}
	row = ones()
	GeometryMask{}.Apply(params, s, 1, row)
	if f, b := zeros(row); f != 0 || b != 3 {
		t.Fatalf("negative shift masked front=%d back=%d, want 0/3", f, b)
	}

	row = ones()
	RMCMask{}.Apply(params, s, 1, row)
	if _, b := zeros(row); b != padded/2 {
		t.Fatalf("rmc mask cleared %d samples, want %d", b, padded/2)
	}
	row = ones()
	RMCMask{}.Apply(params, s, 0, row)
	if f, b := zeros(row); f+b != 0 {
		t.Fatalf("rmc mask touched a raw burst")
	}

	row = ones()
	DopplerAmbiguityMask{}.Apply(params, s, 0, row)
	binZP := params.RangeBinSize() / float64(params.CNF.ZeroPadding)
	ambiguous := params.CST.SpeedOfLight * params.PRF() / (2 * params.CHD.ChirpSlope)
	cut := padded/2 + int(math.Round(ambiguous/binZP))
	wantBack := 0
	if cut < padded {
		wantBack = padded - cut
	}
	if _, b := zeros(row); b != wantBack {
		t.Fatalf("doppler ambiguity mask cleared %d, want %d", b, wantBack)
	}
}

func TestDefaultMasksFollowFlags(t *testing.T) {
	cnf := config.DefaultConfiguration()
	if got := len(DefaultMasks(cnf)); got != 2 {
		t.Fatalf("default masks = %d, want 2", got)
	}
	cnf.FlagRemoveDopplerAmbig = true
	if got := len(DefaultMasks(cnf)); got != 3 {
		t.Fatalf("masks with ambiguity removal = %d, want 3", got)
	}
	cnf.FlagStackMasking = false
	if DefaultMasks(cnf) != nil {
		t.Fatalf("masking disabled should yield no strategies")
	}
}

func TestFitGaussianRecoversParameters(t *testing.T) {
	var x, y []float64
	for i := -40; i <= 40; i++ {
		xi := float64(i) * 0.25
		x = append(x, xi)
		d := (xi - 1.5) / 2
		y = append(y, 5*math.Exp(-d*d/2))
	}
	g := fitGaussian(x, y)
	if math.Abs(g.Amp-5) > 1e-2 || math.Abs(g.Mean-1.5) > 1e-2 || math.Abs(g.Sigma-2) > 1e-2 {
		t.Fatalf("fit = %+v, want amp 5 mean 1.5 sigma 2", g)
	}

	skew, kurt := standardizedMoments(x, y, g.Mean, g.Sigma)
	if math.Abs(skew) > 1e-2 || math.Abs(kurt) > 5e-2 {
		t.Fatalf("moments of a symmetric Gaussian: skew %v kurt %v", skew, kurt)
	}
}

func TestFitGaussianDegenerateInputs(t *testing.T) {
	if g := fitGaussian(nil, nil); g != (gaussian{}) {
		t.Fatalf("empty input fit = %+v", g)
	}
	if g := fitGaussian([]float64{1, 2}, []float64{0, 0}); g != (gaussian{}) {
		t.Fatalf("zero power fit = %+v", g)
	}
	g := fitGaussian([]float64{3}, []float64{2})
	if g.Mean != 3 || g.Amp != 2 {
		t.Fatalf("single point fit = %+v", g)
	}
}

func TestAntennaWeightingNormalizesToMeanOne(t *testing.T) {
	w, err := NewAntennaWeighting(config.DefaultCharacterization().AntennaPattern)
	if err != nil {
		t.Fatalf("NewAntennaWeighting: %v", err)
	}
	s := &model.SurfaceLocation{Stack: []model.StackBeam{
		{PointingAngle: -0.005}, {PointingAngle: 0}, {PointingAngle: 0.005},
	}}
	weights := w.Weights(s)
	sum := 0.0
	for _, v := range weights {
		sum += v
	}
	if math.Abs(sum/3-1) > 1e-12 {
		t.Fatalf("mean weight = %v, want 1", sum/3)
	}
	if !(weights[1] < weights[0] && weights[1] < weights[2]) {
		t.Fatalf("broadside should be weighted least: %v", weights)
	}

	for _, v := range (UniformWeighting{}).Weights(s) {
		if v != 1 {
			t.Fatalf("uniform weight %v", v)
		}
	}
}

func TestScaleSigma0IsFinite(t *testing.T) {
	p := newTestPipeline(t, nil)
	b := &model.Burst{SatPosition: model.Vec3{Z: 800e3 + 6371e3}, Velocity: model.Vec3{X: 7000}}
	s := &model.SurfaceLocation{
		Position:        model.Vec3{Z: 6371e3},
		Stack:           []model.StackBeam{{Burst: b}, {Burst: b}},
		StackMaskVector: []int{1, 0},
	}
	p.ScaleSigma0(s)
	if len(s.Sigma0ScaleBeam) != 2 {
		t.Fatalf("per-beam factors = %d", len(s.Sigma0ScaleBeam))
	}
	if math.IsNaN(s.Sigma0Scale) || math.IsInf(s.Sigma0Scale, 0) || s.Sigma0Scale <= 0 {
		t.Fatalf("sigma0 scale = %v", s.Sigma0Scale)
	}
	if math.Abs(s.Sigma0Scale-s.Sigma0ScaleBeam[0]) > 1e-9 {
		t.Fatalf("scalar factor should match the only contributing beam")
	}
}

// sigma0Pipeline uses round constants: λ = 1 cm, PRI = 100 µs, 8 pulses,
// 10 dB gain, 1 W, a 100 MHz chirp and a 6000 km Earth radius.
func sigma0Pipeline(t *testing.T, earthRadius float64) *Pipeline {
	return newTestPipeline(t, func(c *config.Params) {
		c.CST.SpeedOfLight = 3e8
		c.CST.EarthRadius = earthRadius
		c.CHD.CarrierFrequency = 3e10
		c.CHD.PRI = 1e-4
		c.CHD.AntennaGain = 10
		c.CHD.TransmitPower = 1
		c.CHD.PulseLength = 1e-5
		c.CHD.ChirpSlope = 1e13
	})
}

func sigma0Location(ranges ...float64) *model.SurfaceLocation {
	b := &model.Burst{Velocity: model.Vec3{X: 5000}}
	s := &model.SurfaceLocation{Corrections: model.StackCorrections{RangeSatSurf: ranges}}
	for range ranges {
		s.Stack = append(s.Stack, model.StackBeam{Burst: b})
	}
	return s
}

func TestScaleSigma0MatchesRadarEquation(t *testing.T) {
	p := sigma0Pipeline(t, 6e6)
	s := sigma0Location(600e3)
	p.ScaleSigma0(s)

	// α = 1.1; along track 1.1·0.01·6e5/(2·5000·1e-4·8) = 825 m; across track
	// 2·sqrt(3e8·1e-8·6e5/1.1) = 2558.4086 m;
	// 64π³·(6e5)⁴ / (0.01²·10²·1·825·2558.4086) = 1.2184585e22
	const want = 220.858107394
	if math.Abs(s.Sigma0Scale-want) > 1e-6 {
		t.Fatalf("sigma0 scale = %.9f dB, want %.9f", s.Sigma0Scale, want)
	}
	if s.Sigma0ScaleBeam[0] != s.Sigma0Scale {
		t.Fatalf("single beam factor %v differs from scalar %v", s.Sigma0ScaleBeam[0], s.Sigma0Scale)
	}
}

func TestScaleSigma0GrowsWithRange(t *testing.T) {
	// a flat Earth keeps α at 1, so the factor goes as R⁴/(R·sqrt(R)) = R^2.5
	p := sigma0Pipeline(t, 1e30)
	s := sigma0Location(400e3, 800e3, 1600e3)
	p.ScaleSigma0(s)

	step := 25 * math.Log10(2)
	for i := 1; i < len(s.Sigma0ScaleBeam); i++ {
		if d := s.Sigma0ScaleBeam[i] - s.Sigma0ScaleBeam[i-1]; math.Abs(d-step) > 1e-9 {
			t.Fatalf("doubling the range added %.9f dB, want %.9f", d, step)
		}
	}

	// the scalar averages the linear factors of all unmasked beams
	var sum float64
	for _, db := range s.Sigma0ScaleBeam {
		sum += math.Pow(10, db/10)
	}
	if want := 10 * math.Log10(sum/3); math.Abs(s.Sigma0Scale-want) > 1e-9 {
		t.Fatalf("sigma0 scale = %v, want %v", s.Sigma0Scale, want)
	}
}

// TestWorkedStackExample follows three bursts at t = 0, 1, 2 s seeing one
// location at beam angles just behind, at and just past broadside, with
// n_looks_stack = 2, no masking and uniform weights. The stack keeps the
// broadside beam and the one before it, so the multilooked waveform is the
// mean of the first two beams' power.
func TestWorkedStackExample(t *testing.T) {
	p := newTestPipeline(t, func(c *config.Params) {
		c.CNF.NLooksStack = 2
		c.CNF.FlagStackMasking = false
		c.CNF.FlagAntennaWeighting = false
		c.CNF.FlagDopplerCorrection = false
		c.CNF.FlagSlantRangeCorrection = false
		c.CNF.FlagWinDelayCorrection = false
	})
	params := p.Params()
	padded := params.PaddedSamples()

	s := &model.SurfaceLocation{ClosestBeam: -1}
	for i, beam := range []float64{math.Pi/2 + 0.01, math.Pi / 2, math.Pi/2 - 0.01} {
		// an impulse of amplitude i+1 compresses to a flat (i+1)²/padded
		focused := make([]complex128, params.CHD.SamplesPerEcho)
		focused[0] = complex(float64(i+1), 0)
		b := &model.Burst{
			Seq:          uint64(i),
			Time:         float64(i),
			Velocity:     model.Vec3{X: 7000},
			BeamAngles:   []float64{beam},
			BeamsFocused: [][]complex128{focused},
		}
		s.Seen = append(s.Seen, model.SeenBeam{Burst: b, BeamIndex: 0})
	}

	if err := p.GatherStack(s); err != nil {
		t.Fatalf("GatherStack: %v", err)
	}
	p.ApplyGeometryCorrections(s)
	p.RangeCompress(s)
	p.MaskStack(s)
	p.Multilook(s)

	if s.StackSize() != 2 || s.Stack[0].Time != 0 || s.Stack[1].Time != 1 {
		t.Fatalf("stack = %d beams starting at t=%v", s.StackSize(), s.Stack[0].Time)
	}
	want := (1.0 + 4.0) / 2 / float64(padded)
	for k, v := range s.Multilooked {
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("multilooked[%d] = %v, want %v", k, v, want)
		}
	}
}

func TestNewPipelineRejectsInvalidParams(t *testing.T) {
	params := smallParams()
	params.CNF.AzimuthMethod = "fourier"
	if _, err := NewPipeline(params); err == nil {
		t.Fatalf("expected validation error")
	}
}
