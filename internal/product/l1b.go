package product

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/signalsfoundry/delay-doppler-processor/internal/l1b"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

const (
	dimL1BTime   = "time_l1b_echo_sar_ku"
	dimL1BSample = "echo_sample_ind"
	dimL1BStack  = "max_multi_stack_ind"

	varL1BTime          = "time_l1b_echo_sar_ku"
	varL1BWaveform      = "i2q2_meas_ku_l1b_echo_sar_ku"
	varL1BWaveformScale = "waveform_scale_factor_l1b_echo_sar_ku"
	varL1BStackMask     = "stack_mask_vector_l1b_echo_sar_ku"
)

// L1BRecord is one multilooked record as stored in the L1B product. Angles
// are in radians, attitude in radians, positions in metres.
type L1BRecord struct {
	Time       float64
	CoarseTime int64
	FineTime   int64
	SeqCount   int

	Lat, Lon, Alt          float64
	SatLat, SatLon, SatAlt float64
	SatPosition            model.Vec3
	SatVelocity            model.Vec3
	Roll, Pitch, Yaw       float64
	WinDelay               float64
	AGC                    float64
	SurfaceType            model.SurfaceType

	StackSize   int
	Stats       model.StackStats
	Sigma0Scale float64

	BeamStart, BeamStop, NBeams           int
	BeamAngleStart, BeamAngleStop         float64
	LookAngleStart, LookAngleStop         float64
	DopplerAngleStart, DopplerAngleStop   float64
	PointingAngleStart, PointingAngleStop float64
	BurstStart, BurstStop                 int64

	// StackMask flags which stack beams contributed; its length is the
	// stack size.
	StackMask []int
	// Waveform is the multilooked power waveform.
	Waveform []float64
}

// NewL1BRecord flattens a finalized surface location.
func NewL1BRecord(s *model.SurfaceLocation) L1BRecord {
	r := L1BRecord{
		Time:        s.Time,
		Lat:         s.Lat,
		Lon:         s.Lon,
		Alt:         s.Alt,
		SatLat:      s.SatLat,
		SatLon:      s.SatLon,
		SatAlt:      s.SatAlt,
		SatPosition: s.SatPosition,
		SatVelocity: s.SatVelocity,
		Roll:        s.Roll,
		Pitch:       s.Pitch,
		Yaw:         s.Yaw,
		WinDelay:    s.WinDelay,
		AGC:         s.AGC,
		SurfaceType: s.SurfaceType,
		StackSize:   s.StackSize(),
		Stats:       s.Stats,
		Sigma0Scale: s.Sigma0Scale,

		BeamStart:          s.StartStop.BeamStart,
		BeamStop:           s.StartStop.BeamStop,
		NBeams:             s.StartStop.NBeams,
		BeamAngleStart:     s.StartStop.BeamAngleStart,
		BeamAngleStop:      s.StartStop.BeamAngleStop,
		LookAngleStart:     s.StartStop.LookAngleStart,
		LookAngleStop:      s.StartStop.LookAngleStop,
		DopplerAngleStart:  s.StartStop.DopplerAngleStart,
		DopplerAngleStop:   s.StartStop.DopplerAngleStop,
		PointingAngleStart: s.StartStop.PointingAngleStart,
		PointingAngleStop:  s.StartStop.PointingAngleStop,
		BurstStart:         int64(s.StartStop.BurstStart),
		BurstStop:          int64(s.StartStop.BurstStop),

		StackMask: append([]int(nil), s.StackMaskVector...),
		Waveform:  append([]float64(nil), s.Multilooked...),
	}
	if b := s.ClosestBurst(); b != nil {
		r.CoarseTime = b.CoarseTime
		r.FineTime = b.FineTime
		r.SeqCount = b.SourceCounter
	}
	return r
}

type fieldKind int

const (
	kindFloat64 fieldKind = iota
	kindInt32
	kindInt8
)

// field is one per-record scalar variable of the L1B product.
type field struct {
	name  string
	units string
	long  string
	kind  fieldKind
	pack  packing
	get   func(*L1BRecord) float64
	set   func(*L1BRecord, float64)
}

const rad2deg = 180 / math.Pi

func scaled(s float64) packing { return packing{Scale: s} }

// asInt converts an unpacked value back to an integer, mapping fill to 0.
func asInt(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(v))
}

var l1bFields = []field{
	{name: varL1BTime, units: "seconds since 2000-01-01 00:00:00.0", long: "UTC time of the surface location", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.Time }, set: func(r *L1BRecord, v float64) { r.Time = v }},
	{name: "isp_coarse_time_l1b_echo_sar_ku", units: "s", long: "onboard coarse time of the closest burst", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.CoarseTime) }, set: func(r *L1BRecord, v float64) { r.CoarseTime = asInt(v) }},
	{name: "isp_fine_time_l1b_echo_sar_ku", units: "1e-6 s", long: "onboard fine time of the closest burst", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.FineTime) }, set: func(r *L1BRecord, v float64) { r.FineTime = asInt(v) }},
	{name: "seq_count_l1b_echo_sar_ku", units: "count", long: "source sequence count of the closest burst", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.SeqCount) }, set: func(r *L1BRecord, v float64) { r.SeqCount = int(asInt(v)) }},
	{name: "lat_l1b_echo_sar_ku", units: "degrees_north", long: "surface latitude", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.Lat }, set: func(r *L1BRecord, v float64) { r.Lat = v }},
	{name: "lon_l1b_echo_sar_ku", units: "degrees_east", long: "surface longitude", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.Lon }, set: func(r *L1BRecord, v float64) { r.Lon = v }},
	{name: "alt_l1b_echo_sar_ku", units: "m", long: "surface altitude", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.Alt }, set: func(r *L1BRecord, v float64) { r.Alt = v }},
	{name: "sat_lat_l1b_echo_sar_ku", units: "degrees_north", long: "satellite latitude", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.SatLat }, set: func(r *L1BRecord, v float64) { r.SatLat = v }},
	{name: "sat_lon_l1b_echo_sar_ku", units: "degrees_east", long: "satellite longitude", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.SatLon }, set: func(r *L1BRecord, v float64) { r.SatLon = v }},
	{name: "sat_alt_l1b_echo_sar_ku", units: "m", long: "satellite altitude", kind: kindInt32, pack: scaled(1e-3),
		get: func(r *L1BRecord) float64 { return r.SatAlt }, set: func(r *L1BRecord, v float64) { r.SatAlt = v }},
	{name: "x_pos_l1b_echo_sar_ku", units: "m", long: "satellite ECEF x", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.SatPosition.X }, set: func(r *L1BRecord, v float64) { r.SatPosition.X = v }},
	{name: "y_pos_l1b_echo_sar_ku", units: "m", long: "satellite ECEF y", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.SatPosition.Y }, set: func(r *L1BRecord, v float64) { r.SatPosition.Y = v }},
	{name: "z_pos_l1b_echo_sar_ku", units: "m", long: "satellite ECEF z", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.SatPosition.Z }, set: func(r *L1BRecord, v float64) { r.SatPosition.Z = v }},
	{name: "x_vel_l1b_echo_sar_ku", units: "m/s", long: "satellite ECEF velocity x", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.SatVelocity.X }, set: func(r *L1BRecord, v float64) { r.SatVelocity.X = v }},
	{name: "y_vel_l1b_echo_sar_ku", units: "m/s", long: "satellite ECEF velocity y", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.SatVelocity.Y }, set: func(r *L1BRecord, v float64) { r.SatVelocity.Y = v }},
	{name: "z_vel_l1b_echo_sar_ku", units: "m/s", long: "satellite ECEF velocity z", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.SatVelocity.Z }, set: func(r *L1BRecord, v float64) { r.SatVelocity.Z = v }},
	{name: "roll_sat_pointing_l1b_echo_sar_ku", units: "degrees", long: "platform roll", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.Roll * rad2deg }, set: func(r *L1BRecord, v float64) { r.Roll = v / rad2deg }},
	{name: "pitch_sat_pointing_l1b_echo_sar_ku", units: "degrees", long: "platform pitch", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.Pitch * rad2deg }, set: func(r *L1BRecord, v float64) { r.Pitch = v / rad2deg }},
	{name: "yaw_sat_pointing_l1b_echo_sar_ku", units: "degrees", long: "platform yaw", kind: kindInt32, pack: scaled(1e-7),
		get: func(r *L1BRecord) float64 { return r.Yaw * rad2deg }, set: func(r *L1BRecord, v float64) { r.Yaw = v / rad2deg }},
	{name: "win_delay_l1b_echo_sar_ku", units: "s", long: "two-way window delay", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.WinDelay }, set: func(r *L1BRecord, v float64) { r.WinDelay = v }},
	{name: "agc_ku_l1b_echo_sar_ku", units: "dB", long: "automatic gain control", kind: kindInt32, pack: scaled(1e-2),
		get: func(r *L1BRecord) float64 { return r.AGC }, set: func(r *L1BRecord, v float64) { r.AGC = v }},
	{name: "surf_type_l1b_echo_sar_ku", units: "flag", long: "0 raw, 1 range-migration corrected", kind: kindInt8,
		get: func(r *L1BRecord) float64 { return float64(r.SurfaceType) }, set: func(r *L1BRecord, v float64) { r.SurfaceType = model.SurfaceType(asInt(v)) }},
	{name: "nb_stack_l1b_echo_sar_ku", units: "count", long: "number of beams in the stack", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.StackSize) }, set: func(r *L1BRecord, v float64) { r.StackSize = int(asInt(v)) }},
	{name: "stack_std_l1b_echo_sar_ku", units: "rad", long: "Gaussian width of the stack power in look angle", kind: kindInt32, pack: scaled(1e-9),
		get: func(r *L1BRecord) float64 { return r.Stats.Std }, set: func(r *L1BRecord, v float64) { r.Stats.Std = v }},
	{name: "stack_skewness_l1b_echo_sar_ku", units: "1", long: "skewness of the stack power", kind: kindInt32, pack: scaled(1e-5),
		get: func(r *L1BRecord) float64 { return r.Stats.Skewness }, set: func(r *L1BRecord, v float64) { r.Stats.Skewness = v }},
	{name: "stack_kurtosis_l1b_echo_sar_ku", units: "1", long: "excess kurtosis of the stack power", kind: kindInt32, pack: scaled(1e-5),
		get: func(r *L1BRecord) float64 { return r.Stats.Kurtosis }, set: func(r *L1BRecord, v float64) { r.Stats.Kurtosis = v }},
	{name: "stack_max_l1b_echo_sar_ku", units: "count", long: "Gaussian peak of the stack power", kind: kindFloat64,
		get: func(r *L1BRecord) float64 { return r.Stats.Max }, set: func(r *L1BRecord, v float64) { r.Stats.Max = v }},
	{name: "stack_centre_angle_l1b_echo_sar_ku", units: "rad", long: "look angle of the stack power centre", kind: kindInt32, pack: scaled(1e-9),
		get: func(r *L1BRecord) float64 { return r.Stats.CentreAngle }, set: func(r *L1BRecord, v float64) { r.Stats.CentreAngle = v }},
	{name: "stack_centre_l1b_echo_sar_ku", units: "count", long: "beam index of the stack power centre", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.Stats.Centre }, set: func(r *L1BRecord, v float64) { r.Stats.Centre = v }},
	{name: "sig0_scaling_factor_l1b_echo_sar_ku", units: "dB", long: "sigma0 scaling factor", kind: kindInt32, pack: scaled(1e-4),
		get: func(r *L1BRecord) float64 { return r.Sigma0Scale }, set: func(r *L1BRecord, v float64) { r.Sigma0Scale = v }},
	{name: "beam_start_l1b_echo_sar_ku", units: "count", long: "first contributing stack beam", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.BeamStart) }, set: func(r *L1BRecord, v float64) { r.BeamStart = int(asInt(v)) }},
	{name: "beam_stop_l1b_echo_sar_ku", units: "count", long: "last contributing stack beam", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.BeamStop) }, set: func(r *L1BRecord, v float64) { r.BeamStop = int(asInt(v)) }},
	{name: "n_beams_start_stop_l1b_echo_sar_ku", units: "count", long: "number of beams between start and stop", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.NBeams) }, set: func(r *L1BRecord, v float64) { r.NBeams = int(asInt(v)) }},
	{name: "beam_ang_start_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.BeamAngleStart }, set: func(r *L1BRecord, v float64) { r.BeamAngleStart = v }},
	{name: "beam_ang_stop_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.BeamAngleStop }, set: func(r *L1BRecord, v float64) { r.BeamAngleStop = v }},
	{name: "look_ang_start_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.LookAngleStart }, set: func(r *L1BRecord, v float64) { r.LookAngleStart = v }},
	{name: "look_ang_stop_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.LookAngleStop }, set: func(r *L1BRecord, v float64) { r.LookAngleStop = v }},
	{name: "dop_ang_start_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.DopplerAngleStart }, set: func(r *L1BRecord, v float64) { r.DopplerAngleStart = v }},
	{name: "dop_ang_stop_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.DopplerAngleStop }, set: func(r *L1BRecord, v float64) { r.DopplerAngleStop = v }},
	{name: "pointing_ang_start_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.PointingAngleStart }, set: func(r *L1BRecord, v float64) { r.PointingAngleStart = v }},
	{name: "pointing_ang_stop_l1b_echo_sar_ku", units: "rad", kind: kindInt32, pack: scaled(1e-8),
		get: func(r *L1BRecord) float64 { return r.PointingAngleStop }, set: func(r *L1BRecord, v float64) { r.PointingAngleStop = v }},
	{name: "burst_start_l1b_echo_sar_ku", units: "count", long: "sequence of the first contributing burst", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.BurstStart) }, set: func(r *L1BRecord, v float64) { r.BurstStart = asInt(v) }},
	{name: "burst_stop_l1b_echo_sar_ku", units: "count", long: "sequence of the last contributing burst", kind: kindInt32, pack: scaled(1),
		get: func(r *L1BRecord) float64 { return float64(r.BurstStop) }, set: func(r *L1BRecord, v float64) { r.BurstStop = asInt(v) }},
}

// Precision returns the packing step of the named scalar variable, zero for
// unpacked variables.
func Precision(name string) float64 {
	for _, f := range l1bFields {
		if f.name == name && f.kind == kindInt32 {
			return f.pack.Scale
		}
	}
	return 0
}

func (f field) variable(recs []*L1BRecord) api.Variable {
	n := len(recs)
	var values any
	kv := []any{"units", f.units}
	if f.long != "" {
		kv = append(kv, "long_name", f.long)
	}
	switch f.kind {
	case kindInt32:
		out := make([]int32, n)
		for k, r := range recs {
			out[k] = f.pack.int32(f.get(r))
		}
		values = out
		kv = append(kv, "_FillValue", int32(fillInt32))
		if f.pack.Scale != 1 {
			kv = append(kv, "scale_factor", f.pack.Scale)
		}
	case kindInt8:
		out := make([]int8, n)
		for k, r := range recs {
			out[k] = int8(f.get(r))
		}
		values = out
	default:
		out := make([]float64, n)
		for k, r := range recs {
			out[k] = f.get(r)
		}
		values = out
	}
	return api.Variable{
		Values:     values,
		Dimensions: []string{dimL1BTime},
		Attributes: attrs(kv...),
	}
}

// addL1BVariables writes the L1B record set; L1B-S products reuse it.
func addL1BVariables(w *cdf.CDFWriter, recs []*L1BRecord, samples, maxLooks int) error {
	for _, f := range l1bFields {
		if err := w.AddVar(f.name, f.variable(recs)); err != nil {
			return fmt.Errorf("variable %s: %w", f.name, err)
		}
	}

	n := len(recs)
	wf := make([][]int32, n)
	wfScale := make([]float64, n)
	mask := make([][]int8, n)
	for k, r := range recs {
		if len(r.Waveform) != samples {
			return fmt.Errorf("record %d: waveform has %d samples, want %d", k, len(r.Waveform), samples)
		}
		if len(r.StackMask) > maxLooks {
			return fmt.Errorf("record %d: stack of %d beams exceeds %d", k, len(r.StackMask), maxLooks)
		}
		wfScale[k] = waveformScale(r.Waveform)
		p := scaled(wfScale[k])
		wf[k] = make([]int32, samples)
		for i, v := range r.Waveform {
			wf[k][i] = p.int32(v)
		}
		mask[k] = make([]int8, maxLooks)
		for i := range mask[k] {
			mask[k][i] = fillInt8
			if i < len(r.StackMask) {
				mask[k][i] = int8(r.StackMask[i])
			}
		}
	}
	extra := []namedVar{
		{varL1BWaveform, api.Variable{
			Values:     wf,
			Dimensions: []string{dimL1BTime, dimL1BSample},
			Attributes: attrs("units", "count", "long_name", "multilooked power waveform, scaled per record",
				"_FillValue", int32(fillInt32)),
		}},
		{varL1BWaveformScale, api.Variable{
			Values:     wfScale,
			Dimensions: []string{dimL1BTime},
			Attributes: attrs("units", "count", "long_name", "scale of the power waveform of the record"),
		}},
		{varL1BStackMask, api.Variable{
			Values:     mask,
			Dimensions: []string{dimL1BTime, dimL1BStack},
			Attributes: attrs("units", "flag", "long_name", "1 where the stack beam contributed",
				"_FillValue", int8(fillInt8)),
		}},
	}
	for _, e := range extra {
		if err := w.AddVar(e.name, e.v); err != nil {
			return fmt.Errorf("variable %s: %w", e.name, err)
		}
	}
	return nil
}

// waveformScale maps the peak of w to the top of the int32 range.
func waveformScale(w []float64) float64 {
	peak := 0.0
	for _, v := range w {
		if a := math.Abs(v); a > peak && !math.IsInf(a, 0) {
			peak = a
		}
	}
	if peak == 0 {
		return 1
	}
	return peak / (math.MaxInt32 - 1)
}

// readL1BVariables reads the L1B record set from g.
func readL1BVariables(g api.Group) ([]*L1BRecord, error) {
	t, err := readNumeric(g, varL1BTime)
	if err != nil {
		return nil, err
	}
	n := len(t.Data)
	recs := make([]*L1BRecord, n)
	for k := range recs {
		recs[k] = &L1BRecord{}
	}
	for _, f := range l1bFields {
		v, err := readNumeric(g, f.name)
		if err != nil {
			return nil, err
		}
		if len(v.Data) != n {
			return nil, fmt.Errorf("variable %s: %d values, want %d", f.name, len(v.Data), n)
		}
		for k, r := range recs {
			f.set(r, v.Data[k])
		}
	}

	wf, err := readNumeric(g, varL1BWaveform)
	if err != nil {
		return nil, err
	}
	scale, err := readNumeric(g, varL1BWaveformScale)
	if err != nil {
		return nil, err
	}
	mask, err := readNumeric(g, varL1BStackMask)
	if err != nil {
		return nil, err
	}
	for k, r := range recs {
		row := wf.row(k)
		r.Waveform = make([]float64, len(row))
		for i, v := range row {
			r.Waveform[i] = v * scale.Data[k]
		}
		for _, v := range mask.row(k) {
			if math.IsNaN(v) {
				break
			}
			r.StackMask = append(r.StackMask, int(v))
		}
	}
	return recs, nil
}

// globals are the attributes common to both products.
func globals(info Info, productType string, first, last float64, samples, maxLooks int) api.AttributeMap {
	return attrs(
		"mission_name", info.Mission,
		"product_type", productType,
		"software_version", info.SoftwareVersion,
		"creation_time", ISO(info.now()),
		"first_meas_time", ISO(info.At(first)),
		"last_meas_time", ISO(info.At(last)),
		"n_looks_stack", int32(maxLooks),
		"n_samples_waveform", int32(samples),
	)
}

// Header is the global metadata read back from a product.
type Header struct {
	Mission         string
	ProductType     string
	SoftwareVersion string
	CreationTime    string
	FirstMeasTime   string
	LastMeasTime    string
}

func readHeader(g api.Group) Header {
	a := g.Attributes()
	return Header{
		Mission:         attrString(a, "mission_name"),
		ProductType:     attrString(a, "product_type"),
		SoftwareVersion: attrString(a, "software_version"),
		CreationTime:    attrString(a, "creation_time"),
		FirstMeasTime:   attrString(a, "first_meas_time"),
		LastMeasTime:    attrString(a, "last_meas_time"),
	}
}

// L1BWriter buffers multilooked records and writes the L1B file on Close.
// The file name is derived from the time span of the records.
type L1BWriter struct {
	dir      string
	info     Info
	samples  int
	maxLooks int
	records  []*L1BRecord
	path     string
}

var _ l1b.RecordSink = (*L1BWriter)(nil)

// NewL1BWriter returns a writer placing its file in dir. samples is the
// zero-padded waveform length and maxLooks the stack dimension.
func NewL1BWriter(dir string, info Info, samples, maxLooks int) *L1BWriter {
	return &L1BWriter{dir: dir, info: info, samples: samples, maxLooks: maxLooks}
}

// Write implements l1b.RecordSink.
func (w *L1BWriter) Write(_ context.Context, s *model.SurfaceLocation) error {
	r := NewL1BRecord(s)
	return w.Add(&r)
}

// Add buffers one record.
func (w *L1BWriter) Add(r *L1BRecord) error {
	if len(r.Waveform) != w.samples {
		return fmt.Errorf("l1b record: waveform has %d samples, want %d", len(r.Waveform), w.samples)
	}
	w.records = append(w.records, r)
	return nil
}

// Len returns the number of buffered records.
func (w *L1BWriter) Len() int { return len(w.records) }

// Path returns the written file, empty before Close.
func (w *L1BWriter) Path() string { return w.path }

// Close writes the product file.
func (w *L1BWriter) Close() error {
	path, err := writeProduct(w.dir, w.info, TypeL1B, w.records, w.samples, w.maxLooks, nil)
	if err != nil {
		return err
	}
	w.path = path
	return nil
}

// writeProduct creates the product file and writes the shared L1B variable
// set, then any product-specific ones.
func writeProduct(dir string, info Info, productType string, recs []*L1BRecord, samples, maxLooks int,
	more func(*cdf.CDFWriter) error) (path string, err error) {
	var first, last float64
	if len(recs) > 0 {
		first, last = recs[0].Time, recs[len(recs)-1].Time
	}
	name, err := info.FileName(productType, first, last)
	if err != nil {
		return "", err
	}
	path = filepath.Join(dir, name)

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return "", &l1b.FileError{Path: path, Err: err}
	}
	defer func() {
		if cerr := cw.Close(); err == nil && cerr != nil {
			err = &l1b.FileError{Path: path, Err: cerr}
		}
	}()

	if len(recs) > 0 {
		if err := addL1BVariables(cw, recs, samples, maxLooks); err != nil {
			return "", &l1b.FileError{Path: path, Err: err}
		}
		if more != nil {
			if err := more(cw); err != nil {
				return "", &l1b.FileError{Path: path, Err: err}
			}
		}
	}
	if err := cw.AddGlobalAttrs(globals(info, productType, first, last, samples, maxLooks)); err != nil {
		return "", &l1b.FileError{Path: path, Err: err}
	}
	return path, nil
}

// L1BFile is a decoded L1B product.
type L1BFile struct {
	Header  Header
	Records []*L1BRecord
}

// ReadL1B decodes an L1B product.
func ReadL1B(path string) (*L1BFile, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, &l1b.FileError{Path: path, Err: err}
	}
	defer g.Close()

	f := &L1BFile{Header: readHeader(g)}
	if !hasVariable(g, varL1BTime) {
		return f, nil
	}
	if f.Records, err = readL1BVariables(g); err != nil {
		return nil, &l1b.FileError{Path: path, Err: err}
	}
	return f, nil
}
