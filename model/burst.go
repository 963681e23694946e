package model

// BeamTrend describes how a burst's list of seen beam angles changed size
// relative to the previously processed burst.
type BeamTrend int

const (
	// TrendSteady means the list is full or unchanged in size.
	TrendSteady BeamTrend = iota
	// TrendExpanding means the list grew: older locations behind the
	// satellite are missing, so the list is truncated at its head.
	TrendExpanding
	// TrendContracting means the list shrank: newer locations ahead of the
	// satellite are missing, so the list is truncated at its tail.
	TrendContracting
)

func (t BeamTrend) String() string {
	switch t {
	case TrendExpanding:
		return "expanding"
	case TrendContracting:
		return "contracting"
	default:
		return "steady"
	}
}

// Burst is one instrument echo record: satellite state, timing and the
// raw and calibrated waveforms of every pulse in the burst.
type Burst struct {
	// Seq is the processor-assigned sequence counter, strictly increasing
	// in read order within one run.
	Seq uint64
	// SourceCounter is the instrument's own source sequence count.
	SourceCounter int
	// RecordIndex is the record position in the input file.
	RecordIndex int

	// Time is the acquisition time in seconds since 2000-01-01T00:00:00Z.
	Time       float64
	CoarseTime int64
	FineTime   int64

	// Satellite geodetic position (degrees, degrees, metres).
	Lat, Lon, Alt float64
	SatPosition   Vec3
	Velocity      Vec3

	// Attitude angles in radians.
	Roll, Pitch, Yaw float64

	// WinDelay is the two-way window delay in seconds.
	WinDelay float64
	// AGC is the automatic gain control setting in dB.
	AGC float64
	// RMC marks bursts acquired in range-migration-corrected mode.
	RMC bool

	// Raw is the echo as read, pulses × range samples.
	Raw [][]complex128
	// Cal1Power and Cal1Phase are per-pulse intra-burst corrections
	// (dB and radians).
	Cal1Power []float64
	Cal1Phase []float64
	// Cal2Gain and Cal2Phase are the per-sample gain/phase response
	// (linear gain and radians). Cal2Phase may be empty.
	Cal2Gain  []float64
	Cal2Phase []float64

	// Waveform is the calibrated echo, pulses × range samples.
	Waveform [][]complex128

	// Derived geometry.
	SurfacePosition        Vec3
	SurfaceLat, SurfaceLon float64
	SurfaceAlt             float64
	DopplerAngle           float64

	// BeamAngles holds the angle between velocity and line of sight for
	// every location this burst sees, oldest location first.
	// BeamSurfaces holds the matching location IDs.
	BeamAngles   []float64
	BeamSurfaces []uint64
	BeamTrend    BeamTrend

	// BeamsFocused is the azimuth-processed output, one row per entry
	// of BeamAngles (rows past len(BeamAngles) are zero).
	BeamsFocused [][]complex128

	// Processed becomes true once beam angles and azimuth processing have
	// run for this burst.
	Processed bool
}

// NumPulses returns the number of pulses in the raw waveform.
func (b *Burst) NumPulses() int {
	return len(b.Raw)
}

// NumSamples returns the number of range samples per pulse.
func (b *Burst) NumSamples() int {
	if len(b.Raw) == 0 {
		return 0
	}
	return len(b.Raw[0])
}

// SeesSurfaceAfter reports whether the burst's beam list references any
// location with an ID greater than id.
func (b *Burst) SeesSurfaceAfter(id uint64) bool {
	for _, sid := range b.BeamSurfaces {
		if sid > id {
			return true
		}
	}
	return false
}
