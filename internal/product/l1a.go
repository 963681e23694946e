package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// L1A variable and dimension names.
const (
	dimL1ATime   = "time_l1a_echo_sar_ku"
	dimL1APulse  = "echo_pulse_ind"
	dimL1ASample = "echo_sample_ind"

	varL1ATime       = "time_l1a_echo_sar_ku"
	varL1ASeqCount   = "seq_count_l1a_echo_sar_ku"
	varL1ACoarseTime = "isp_coarse_time_l1a_echo_sar_ku"
	varL1AFineTime   = "isp_fine_time_l1a_echo_sar_ku"
	varL1ALat        = "lat_l1a_echo_sar_ku"
	varL1ALon        = "lon_l1a_echo_sar_ku"
	varL1AAlt        = "alt_l1a_echo_sar_ku"
	varL1AXPos       = "x_pos_l1a_echo_sar_ku"
	varL1AYPos       = "y_pos_l1a_echo_sar_ku"
	varL1AZPos       = "z_pos_l1a_echo_sar_ku"
	varL1AXVel       = "x_vel_l1a_echo_sar_ku"
	varL1AYVel       = "y_vel_l1a_echo_sar_ku"
	varL1AZVel       = "z_vel_l1a_echo_sar_ku"
	varL1ARoll       = "roll_sral_mispointing_l1a_echo_sar_ku"
	varL1APitch      = "pitch_sral_mispointing_l1a_echo_sar_ku"
	varL1AYaw        = "yaw_sral_mispointing_l1a_echo_sar_ku"
	varL1AWinDelay   = "win_delay_l1a_echo_sar_ku"
	varL1AAGC        = "agc_ku_l1a_echo_sar_ku"
	varL1ARMC        = "rmc_flag_l1a_echo_sar_ku"
	varL1AI          = "i_meas_ku_l1a_echo_sar_ku"
	varL1AQ          = "q_meas_ku_l1a_echo_sar_ku"
	varL1ACal1Power  = "burst_power_cor_ku_l1a_echo_sar_ku"
	varL1ACal1Phase  = "burst_phase_cor_ku_l1a_echo_sar_ku"
	varL1ACal2Gain   = "gprw_meas_ku_l1a_echo_sar_ku"
	varL1ACal2Phase  = "gprw_phase_ku_l1a_echo_sar_ku"
)

// L1AOptions controls what the reader requires and filters.
type L1AOptions struct {
	// RequireCal1 and RequireCal2 make the corresponding tables mandatory.
	RequireCal1 bool
	RequireCal2 bool
	// ROI drops records whose satellite position falls outside the box.
	ROI config.Region
}

// L1AOptionsFor derives reader options from the processing configuration.
func L1AOptionsFor(cnf config.Configuration) L1AOptions {
	return L1AOptions{
		RequireCal1: cnf.FlagCal1,
		RequireCal2: cnf.FlagCal2,
		ROI:         cnf.ROI,
	}
}

// L1AReader serves the records of one L1A file as bursts, in ascending
// record order. The file is decoded at open; Next only assembles bursts.
type L1AReader struct {
	path    string
	mission string

	scalars map[string]numericVar
	i, q    numericVar
	cal     map[string]numericVar

	pulses, samples int
	records         []int
	next            int
}

var l1aRequired = []string{
	varL1ATime, varL1ALat, varL1ALon, varL1AAlt,
	varL1AXVel, varL1AYVel, varL1AZVel, varL1AWinDelay,
}

var l1aOptional = []string{
	varL1ASeqCount, varL1ACoarseTime, varL1AFineTime,
	varL1AXPos, varL1AYPos, varL1AZPos,
	varL1ARoll, varL1APitch, varL1AYaw, varL1AAGC, varL1ARMC,
}

// OpenL1A decodes the L1A file at path.
func OpenL1A(path string, opts L1AOptions) (*L1AReader, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open l1a: %w", err)
	}
	defer g.Close()
	return newL1AReader(path, g, opts)
}

func newL1AReader(path string, g api.Group, opts L1AOptions) (*L1AReader, error) {
	r := &L1AReader{
		path:    path,
		mission: attrString(g.Attributes(), "mission_name"),
		scalars: make(map[string]numericVar),
		cal:     make(map[string]numericVar),
	}
	for _, name := range l1aRequired {
		v, err := readNumeric(g, name)
		if err != nil {
			return nil, err
		}
		r.scalars[name] = v
	}
	for _, name := range l1aOptional {
		if !hasVariable(g, name) {
			continue
		}
		v, err := readNumeric(g, name)
		if err != nil {
			return nil, err
		}
		r.scalars[name] = v
	}
	n := len(r.scalars[varL1ATime].Data)
	for name, v := range r.scalars {
		if len(v.Data) != n {
			return nil, fmt.Errorf("variable %s: %d values, want %d", name, len(v.Data), n)
		}
	}

	var err error
	if r.i, err = readNumeric(g, varL1AI); err != nil {
		return nil, err
	}
	if r.q, err = readNumeric(g, varL1AQ); err != nil {
		return nil, err
	}
	if len(r.i.Shape) != 3 || r.i.Shape[0] != n {
		return nil, fmt.Errorf("variable %s: shape %v, want [%d pulses samples]", varL1AI, r.i.Shape, n)
	}
	if len(r.q.Shape) != 3 || r.q.Shape[0] != n || r.q.Shape[1] != r.i.Shape[1] || r.q.Shape[2] != r.i.Shape[2] {
		return nil, fmt.Errorf("variable %s: shape %v does not match %s", varL1AQ, r.q.Shape, varL1AI)
	}
	r.pulses, r.samples = r.i.Shape[1], r.i.Shape[2]

	calVars := []struct {
		name     string
		required bool
		width    int
	}{
		{varL1ACal1Power, opts.RequireCal1, r.pulses},
		{varL1ACal1Phase, opts.RequireCal1, r.pulses},
		{varL1ACal2Gain, opts.RequireCal2, r.samples},
		{varL1ACal2Phase, false, r.samples},
	}
	for _, cv := range calVars {
		if !hasVariable(g, cv.name) {
			if cv.required {
				return nil, &core.MissingCalibrationDataError{Variable: cv.name, Record: -1}
			}
			continue
		}
		v, err := readNumeric(g, cv.name)
		if err != nil {
			return nil, err
		}
		if len(v.Shape) != 2 || v.Shape[0] != n || v.Shape[1] != cv.width {
			return nil, &core.MissingCalibrationDataError{Variable: cv.name, Record: -1}
		}
		r.cal[cv.name] = v
	}

	lat, lon := r.scalars[varL1ALat].Data, r.scalars[varL1ALon].Data
	for k := 0; k < n; k++ {
		if opts.ROI.Enabled() && !opts.ROI.Contains(lat[k], lon[k]) {
			continue
		}
		r.records = append(r.records, k)
	}
	return r, nil
}

// Path returns the file the reader was opened on.
func (r *L1AReader) Path() string { return r.path }

// Mission returns the mission_name global attribute, if any.
func (r *L1AReader) Mission() string { return r.mission }

// Len returns the number of records that pass the region filter.
func (r *L1AReader) Len() int { return len(r.records) }

// Next returns the next burst, or io.EOF when every record has been served.
func (r *L1AReader) Next(ctx context.Context) (*model.Burst, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= len(r.records) {
		return nil, io.EOF
	}
	k := r.records[r.next]
	r.next++

	b := &model.Burst{
		RecordIndex:   k,
		Time:          r.scalar(varL1ATime, k),
		SourceCounter: int(r.scalar(varL1ASeqCount, k)),
		CoarseTime:    int64(r.scalar(varL1ACoarseTime, k)),
		FineTime:      int64(r.scalar(varL1AFineTime, k)),
		Lat:           r.scalar(varL1ALat, k),
		Lon:           r.scalar(varL1ALon, k),
		Alt:           r.scalar(varL1AAlt, k),
		SatPosition: model.Vec3{
			X: r.scalar(varL1AXPos, k),
			Y: r.scalar(varL1AYPos, k),
			Z: r.scalar(varL1AZPos, k),
		},
		Velocity: model.Vec3{
			X: r.scalar(varL1AXVel, k),
			Y: r.scalar(varL1AYVel, k),
			Z: r.scalar(varL1AZVel, k),
		},
		Roll:     r.scalar(varL1ARoll, k) * math.Pi / 180,
		Pitch:    r.scalar(varL1APitch, k) * math.Pi / 180,
		Yaw:      r.scalar(varL1AYaw, k) * math.Pi / 180,
		WinDelay: r.scalar(varL1AWinDelay, k),
		AGC:      r.scalar(varL1AAGC, k),
		RMC:      r.scalar(varL1ARMC, k) != 0,
	}

	iRow, qRow := r.i.row(k), r.q.row(k)
	b.Raw = make([][]complex128, r.pulses)
	for p := range b.Raw {
		pulse := make([]complex128, r.samples)
		for s := range pulse {
			idx := p*r.samples + s
			pulse[s] = complex(iRow[idx], qRow[idx])
		}
		b.Raw[p] = pulse
	}
	if v, ok := r.cal[varL1ACal1Power]; ok {
		b.Cal1Power = append([]float64(nil), v.row(k)...)
	}
	if v, ok := r.cal[varL1ACal1Phase]; ok {
		b.Cal1Phase = append([]float64(nil), v.row(k)...)
	}
	if v, ok := r.cal[varL1ACal2Gain]; ok {
		b.Cal2Gain = append([]float64(nil), v.row(k)...)
	}
	if v, ok := r.cal[varL1ACal2Phase]; ok {
		b.Cal2Phase = append([]float64(nil), v.row(k)...)
	}
	return b, nil
}

// scalar returns the k-th value of a per-record variable, zero when absent
// or filled.
func (r *L1AReader) scalar(name string, k int) float64 {
	v, ok := r.scalars[name]
	if !ok {
		return 0
	}
	x := v.Data[k]
	if math.IsNaN(x) {
		return 0
	}
	return x
}

// WriteL1A stores bursts as an L1A file. Every burst must share the pulse
// and sample counts of the first one.
func WriteL1A(path, mission string, bursts []*model.Burst) (err error) {
	if len(bursts) == 0 {
		return errors.New("write l1a: no bursts")
	}
	pulses, samples := bursts[0].NumPulses(), bursts[0].NumSamples()
	for _, b := range bursts {
		if b.NumPulses() != pulses || b.NumSamples() != samples {
			return fmt.Errorf("write l1a: record %d is %dx%d, want %dx%d",
				b.RecordIndex, b.NumPulses(), b.NumSamples(), pulses, samples)
		}
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("write l1a: %w", err)
	}
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("write l1a: %w", cerr)
		}
	}()

	n := len(bursts)
	dims := []string{dimL1ATime}
	f64 := func(get func(*model.Burst) float64) []float64 {
		out := make([]float64, n)
		for k, b := range bursts {
			out[k] = get(b)
		}
		return out
	}
	i32 := func(get func(*model.Burst) int64) []int32 {
		out := make([]int32, n)
		for k, b := range bursts {
			out[k] = int32(get(b))
		}
		return out
	}
	deg := func(rad float64) float64 { return rad * 180 / math.Pi }

	vars := []ncVar{
		{varL1ATime, f64(func(b *model.Burst) float64 { return b.Time }), dims, "seconds since 2000-01-01 00:00:00.0"},
		{varL1ASeqCount, i32(func(b *model.Burst) int64 { return int64(b.SourceCounter) }), dims, "count"},
		{varL1ACoarseTime, i32(func(b *model.Burst) int64 { return b.CoarseTime }), dims, "s"},
		{varL1AFineTime, i32(func(b *model.Burst) int64 { return b.FineTime }), dims, "1e-6 s"},
		{varL1ALat, f64(func(b *model.Burst) float64 { return b.Lat }), dims, "degrees_north"},
		{varL1ALon, f64(func(b *model.Burst) float64 { return b.Lon }), dims, "degrees_east"},
		{varL1AAlt, f64(func(b *model.Burst) float64 { return b.Alt }), dims, "m"},
		{varL1AXPos, f64(func(b *model.Burst) float64 { return b.SatPosition.X }), dims, "m"},
		{varL1AYPos, f64(func(b *model.Burst) float64 { return b.SatPosition.Y }), dims, "m"},
		{varL1AZPos, f64(func(b *model.Burst) float64 { return b.SatPosition.Z }), dims, "m"},
		{varL1AXVel, f64(func(b *model.Burst) float64 { return b.Velocity.X }), dims, "m/s"},
		{varL1AYVel, f64(func(b *model.Burst) float64 { return b.Velocity.Y }), dims, "m/s"},
		{varL1AZVel, f64(func(b *model.Burst) float64 { return b.Velocity.Z }), dims, "m/s"},
		{varL1ARoll, f64(func(b *model.Burst) float64 { return deg(b.Roll) }), dims, "degrees"},
		{varL1APitch, f64(func(b *model.Burst) float64 { return deg(b.Pitch) }), dims, "degrees"},
		{varL1AYaw, f64(func(b *model.Burst) float64 { return deg(b.Yaw) }), dims, "degrees"},
		{varL1AWinDelay, f64(func(b *model.Burst) float64 { return b.WinDelay }), dims, "s"},
		{varL1AAGC, f64(func(b *model.Burst) float64 { return b.AGC }), dims, "dB"},
	}

	rmc := make([]int8, n)
	iMeas := make([][][]float32, n)
	qMeas := make([][][]float32, n)
	for k, b := range bursts {
		if b.RMC {
			rmc[k] = 1
		}
		iMeas[k] = make([][]float32, pulses)
		qMeas[k] = make([][]float32, pulses)
		for p, pulse := range b.Raw {
			iMeas[k][p] = make([]float32, samples)
			qMeas[k][p] = make([]float32, samples)
			for s, v := range pulse {
				iMeas[k][p][s] = float32(real(v))
				qMeas[k][p][s] = float32(imag(v))
			}
		}
	}
	cube := []string{dimL1ATime, dimL1APulse, dimL1ASample}
	vars = append(vars,
		ncVar{varL1ARMC, rmc, dims, "flag"},
		ncVar{varL1AI, iMeas, cube, "count"},
		ncVar{varL1AQ, qMeas, cube, "count"},
	)

	tables := []struct {
		name  string
		get   func(*model.Burst) []float64
		width int
		dim   string
		units string
	}{
		{varL1ACal1Power, func(b *model.Burst) []float64 { return b.Cal1Power }, pulses, dimL1APulse, "dB"},
		{varL1ACal1Phase, func(b *model.Burst) []float64 { return b.Cal1Phase }, pulses, dimL1APulse, "rad"},
		{varL1ACal2Gain, func(b *model.Burst) []float64 { return b.Cal2Gain }, samples, dimL1ASample, "1"},
		{varL1ACal2Phase, func(b *model.Burst) []float64 { return b.Cal2Phase }, samples, dimL1ASample, "rad"},
	}
	for _, tb := range tables {
		values, ok := calTable(bursts, tb.get, tb.width)
		if !ok {
			continue
		}
		vars = append(vars, ncVar{tb.name, values, []string{dimL1ATime, tb.dim}, tb.units})
	}

	for _, v := range vars {
		if err := w.AddVar(v.name, api.Variable{
			Values:     v.values,
			Dimensions: v.dims,
			Attributes: attrs("units", v.units),
		}); err != nil {
			return fmt.Errorf("write l1a %s: %w", v.name, err)
		}
	}
	if err := w.AddGlobalAttrs(attrs(
		"mission_name", mission,
		"product_name", "L1A",
		"first_meas_time", bursts[0].Time,
		"last_meas_time", bursts[n-1].Time,
	)); err != nil {
		return fmt.Errorf("write l1a attributes: %w", err)
	}
	return nil
}

// ncVar is one variable queued for writing.
type ncVar struct {
	name   string
	values any
	dims   []string
	units  string
}

// calTable gathers one per-record table; ok is false when any burst lacks it.
func calTable(bursts []*model.Burst, get func(*model.Burst) []float64, width int) ([][]float64, bool) {
	out := make([][]float64, len(bursts))
	for k, b := range bursts {
		row := get(b)
		if len(row) != width {
			return nil, false
		}
		out[k] = append([]float64(nil), row...)
	}
	return out, true
}
