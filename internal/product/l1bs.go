package product

import (
	"context"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/signalsfoundry/delay-doppler-processor/internal/l1b"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

const (
	varL1BSI       = "i_echoes_ku_l1bs_echo_sar_ku"
	varL1BSQ       = "q_echoes_ku_l1bs_echo_sar_ku"
	varL1BSIQScale = "iq_scale_factor_l1bs_echo_sar_ku"
	varL1BSSigma0  = "sig0_scaling_factor_beam_l1bs_echo_sar_ku"

	// AnglePrecision is the packing step of the per-beam angle variables.
	AnglePrecision = 1e-8
	// Sigma0Precision is the packing step of the per-beam sigma0 factors.
	Sigma0Precision = 1e-4
)

// L1BSRecord extends an L1B record with the range-compressed stack.
type L1BSRecord struct {
	L1BRecord

	// BeamIQ is stack beams × zero-padded range samples.
	BeamIQ         [][]complex128
	BeamAngles     []float64
	LookAngles     []float64
	DopplerAngles  []float64
	PointingAngles []float64
	Sigma0Beam     []float64
}

// NewL1BSRecord flattens a finalized surface location with its stack.
func NewL1BSRecord(s *model.SurfaceLocation) L1BSRecord {
	r := L1BSRecord{L1BRecord: NewL1BRecord(s)}
	r.BeamIQ = make([][]complex128, len(s.BeamsIQ))
	for i, row := range s.BeamsIQ {
		r.BeamIQ[i] = append([]complex128(nil), row...)
	}
	for _, b := range s.Stack {
		r.BeamAngles = append(r.BeamAngles, b.BeamAngle)
		r.LookAngles = append(r.LookAngles, b.LookAngle)
		r.DopplerAngles = append(r.DopplerAngles, b.DopplerAngle)
		r.PointingAngles = append(r.PointingAngles, b.PointingAngle)
	}
	r.Sigma0Beam = append([]float64(nil), s.Sigma0ScaleBeam...)
	return r
}

type beamArray struct {
	name  string
	units string
	pack  packing
	get   func(*L1BSRecord) []float64
	set   func(*L1BSRecord, []float64)
}

var l1bsBeamArrays = []beamArray{
	{"beam_ang_l1bs_echo_sar_ku", "rad", scaled(AnglePrecision),
		func(r *L1BSRecord) []float64 { return r.BeamAngles }, func(r *L1BSRecord, v []float64) { r.BeamAngles = v }},
	{"look_ang_l1bs_echo_sar_ku", "rad", scaled(AnglePrecision),
		func(r *L1BSRecord) []float64 { return r.LookAngles }, func(r *L1BSRecord, v []float64) { r.LookAngles = v }},
	{"dop_ang_l1bs_echo_sar_ku", "rad", scaled(AnglePrecision),
		func(r *L1BSRecord) []float64 { return r.DopplerAngles }, func(r *L1BSRecord, v []float64) { r.DopplerAngles = v }},
	{"pointing_ang_l1bs_echo_sar_ku", "rad", scaled(AnglePrecision),
		func(r *L1BSRecord) []float64 { return r.PointingAngles }, func(r *L1BSRecord, v []float64) { r.PointingAngles = v }},
	{varL1BSSigma0, "dB", scaled(Sigma0Precision),
		func(r *L1BSRecord) []float64 { return r.Sigma0Beam }, func(r *L1BSRecord, v []float64) { r.Sigma0Beam = v }},
}

// iqScale maps the largest I or Q magnitude to the top of the int16 range.
func iqScale(iq [][]complex128) float64 {
	peak := 0.0
	for _, row := range iq {
		for _, v := range row {
			peak = math.Max(peak, math.Max(math.Abs(real(v)), math.Abs(imag(v))))
		}
	}
	if peak == 0 || math.IsInf(peak, 0) || math.IsNaN(peak) {
		return 1
	}
	return peak / (math.MaxInt16 - 1)
}

func addL1BSVariables(w *cdf.CDFWriter, recs []*L1BSRecord, samples, maxLooks int) error {
	n := len(recs)
	iv := make([][][]int16, n)
	qv := make([][][]int16, n)
	scales := make([]float64, n)
	for k, r := range recs {
		if len(r.BeamIQ) > maxLooks {
			return fmt.Errorf("record %d: stack of %d beams exceeds %d", k, len(r.BeamIQ), maxLooks)
		}
		scales[k] = iqScale(r.BeamIQ)
		iv[k] = make([][]int16, maxLooks)
		qv[k] = make([][]int16, maxLooks)
		for b := 0; b < maxLooks; b++ {
			iv[k][b] = make([]int16, samples)
			qv[k][b] = make([]int16, samples)
			if b >= len(r.BeamIQ) {
				for s := 0; s < samples; s++ {
					iv[k][b][s], qv[k][b][s] = fillInt16, fillInt16
				}
				continue
			}
			if len(r.BeamIQ[b]) != samples {
				return fmt.Errorf("record %d beam %d: %d samples, want %d", k, b, len(r.BeamIQ[b]), samples)
			}
			for s, v := range r.BeamIQ[b] {
				iv[k][b][s] = int16(math.Round(real(v) / scales[k]))
				qv[k][b][s] = int16(math.Round(imag(v) / scales[k]))
			}
		}
	}
	cube := []string{dimL1BTime, dimL1BStack, dimL1BSample}
	vars := []namedVar{
		{varL1BSI, api.Variable{Values: iv, Dimensions: cube,
			Attributes: attrs("units", "count", "long_name", "in-phase stack samples, scaled per record", "_FillValue", int16(fillInt16))}},
		{varL1BSQ, api.Variable{Values: qv, Dimensions: cube,
			Attributes: attrs("units", "count", "long_name", "quadrature stack samples, scaled per record", "_FillValue", int16(fillInt16))}},
		{varL1BSIQScale, api.Variable{Values: scales, Dimensions: []string{dimL1BTime},
			Attributes: attrs("units", "count", "long_name", "scale of the stack samples of the record")}},
	}
	for _, a := range l1bsBeamArrays {
		values := make([][]int32, n)
		for k, r := range recs {
			src := a.get(r)
			values[k] = make([]int32, maxLooks)
			for b := range values[k] {
				values[k][b] = fillInt32
				if b < len(src) {
					values[k][b] = a.pack.int32(src[b])
				}
			}
		}
		vars = append(vars, namedVar{a.name, api.Variable{
			Values:     values,
			Dimensions: []string{dimL1BTime, dimL1BStack},
			Attributes: attrs("units", a.units, "scale_factor", a.pack.Scale, "_FillValue", int32(fillInt32)),
		}})
	}
	for _, v := range vars {
		if err := w.AddVar(v.name, v.v); err != nil {
			return fmt.Errorf("variable %s: %w", v.name, err)
		}
	}
	return nil
}

// L1BSWriter buffers stack records and writes the L1B-S file on Close.
type L1BSWriter struct {
	dir      string
	info     Info
	samples  int
	maxLooks int
	records  []*L1BSRecord
	path     string
}

var _ l1b.RecordSink = (*L1BSWriter)(nil)

// NewL1BSWriter returns a writer placing its file in dir.
func NewL1BSWriter(dir string, info Info, samples, maxLooks int) *L1BSWriter {
	return &L1BSWriter{dir: dir, info: info, samples: samples, maxLooks: maxLooks}
}

// Write implements l1b.RecordSink.
func (w *L1BSWriter) Write(_ context.Context, s *model.SurfaceLocation) error {
	r := NewL1BSRecord(s)
	return w.Add(&r)
}

// Add buffers one record.
func (w *L1BSWriter) Add(r *L1BSRecord) error {
	if len(r.Waveform) != w.samples {
		return fmt.Errorf("l1bs record: waveform has %d samples, want %d", len(r.Waveform), w.samples)
	}
	w.records = append(w.records, r)
	return nil
}

// Len returns the number of buffered records.
func (w *L1BSWriter) Len() int { return len(w.records) }

// Path returns the written file, empty before Close.
func (w *L1BSWriter) Path() string { return w.path }

// Close writes the product file.
func (w *L1BSWriter) Close() error {
	base := make([]*L1BRecord, len(w.records))
	for i, r := range w.records {
		base[i] = &r.L1BRecord
	}
	path, err := writeProduct(w.dir, w.info, TypeL1BS, base, w.samples, w.maxLooks, func(cw *cdf.CDFWriter) error {
		return addL1BSVariables(cw, w.records, w.samples, w.maxLooks)
	})
	if err != nil {
		return err
	}
	w.path = path
	return nil
}

// L1BSFile is a decoded L1B-S product.
type L1BSFile struct {
	Header  Header
	Records []*L1BSRecord
}

// ReadL1BS decodes an L1B-S product.
func ReadL1BS(path string) (*L1BSFile, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, &l1b.FileError{Path: path, Err: err}
	}
	defer g.Close()

	f := &L1BSFile{Header: readHeader(g)}
	if !hasVariable(g, varL1BTime) {
		return f, nil
	}
	if f.Records, err = readL1BSVariables(g); err != nil {
		return nil, &l1b.FileError{Path: path, Err: err}
	}
	return f, nil
}

func readL1BSVariables(g api.Group) ([]*L1BSRecord, error) {
	base, err := readL1BVariables(g)
	if err != nil {
		return nil, err
	}
	recs := make([]*L1BSRecord, len(base))
	for k, b := range base {
		recs[k] = &L1BSRecord{L1BRecord: *b}
	}

	iv, err := readNumeric(g, varL1BSI)
	if err != nil {
		return nil, err
	}
	qv, err := readNumeric(g, varL1BSQ)
	if err != nil {
		return nil, err
	}
	scales, err := readNumeric(g, varL1BSIQScale)
	if err != nil {
		return nil, err
	}
	if len(iv.Shape) != 3 {
		return nil, fmt.Errorf("variable %s: shape %v", varL1BSI, iv.Shape)
	}
	maxLooks, samples := iv.Shape[1], iv.Shape[2]
	for k, r := range recs {
		irow, qrow := iv.row(k), qv.row(k)
		for b := 0; b < maxLooks; b++ {
			if math.IsNaN(irow[b*samples]) {
				break
			}
			beam := make([]complex128, samples)
			for s := range beam {
				beam[s] = complex(irow[b*samples+s]*scales.Data[k], qrow[b*samples+s]*scales.Data[k])
			}
			r.BeamIQ = append(r.BeamIQ, beam)
		}
	}

	for _, a := range l1bsBeamArrays {
		v, err := readNumeric(g, a.name)
		if err != nil {
			return nil, err
		}
		for k, r := range recs {
			var out []float64
			for _, x := range v.row(k) {
				if math.IsNaN(x) {
					break
				}
				out = append(out, x)
			}
			a.set(r, out)
		}
	}
	return recs, nil
}
