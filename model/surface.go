package model

// SurfaceType classifies a location by the acquisition mode of the bursts
// that contributed to it.
type SurfaceType int

const (
	SurfaceRaw SurfaceType = iota
	SurfaceRMC
)

func (s SurfaceType) String() string {
	if s == SurfaceRMC {
		return "RMC"
	}
	return "RAW"
}

// SeenBeam records that a burst observed a location in one of its beams.
type SeenBeam struct {
	Burst     *Burst
	BeamIndex int
}

// StackBeam is one focused beam gathered into a location's stack.
type StackBeam struct {
	Burst     *Burst
	BeamIndex int

	BeamAngle     float64
	Time          float64
	DopplerAngle  float64
	LookAngle     float64
	PointingAngle float64
	// LookIndex is the signed index relative to the beam closest to
	// broadside among all seen beams.
	LookIndex int
	// LookCounter is the 1-based position within the gathered stack.
	LookCounter int

	Focused []complex128
}

// StartStop is the bookkeeping over the contiguous run of beams that
// contributed to the multilooked waveform.
type StartStop struct {
	BeamStart, BeamStop int
	NBeams              int

	BeamAngleStart, BeamAngleStop         float64
	LookAngleStart, LookAngleStop         float64
	DopplerAngleStart, DopplerAngleStop   float64
	PointingAngleStart, PointingAngleStop float64
	BurstStart, BurstStop                 uint64

	MaskVector     []int
	BeamAngles     []float64
	LookAngles     []float64
	DopplerAngles  []float64
	PointingAngles []float64
}

// StackCorrections holds the per-beam geometry corrections in metres.
type StackCorrections struct {
	Doppler    []float64
	SlantRange []float64
	WinDelay   []float64
	// Total is the sum of the enabled corrections.
	Total []float64
	// ShiftBins is Total expressed in zero-padded range bins.
	ShiftBins    []float64
	RangeSatSurf []float64
}

// StackStats holds the Gaussian-fit descriptors of the stack.
type StackStats struct {
	Std      float64
	Skewness float64
	Kurtosis float64
	Max      float64
	// CentreAngle is the fitted centre of power in look angle (radians).
	CentreAngle float64
	// Centre is the fitted centre of power in beam index.
	Centre float64
}

// SurfaceLocation is one ground along-track output record.
type SurfaceLocation struct {
	ID uint64

	Time     float64
	Position Vec3
	Lat, Lon float64
	Alt      float64

	SatPosition         Vec3
	SatVelocity         Vec3
	SatLat, SatLon      float64
	SatAlt              float64
	Roll, Pitch, Yaw    float64
	WinDelay            float64
	AGC                 float64

	// Seen accumulates every (burst, beam) observation in burst order.
	Seen []SeenBeam

	// Filled by stack gathering.
	Stack       []StackBeam
	SurfaceType SurfaceType
	ClosestBeam int

	// Filled by geometry corrections.
	Corrections  StackCorrections
	BeamsGeoCorr [][]complex128

	// Filled by range compression.
	BeamsPower [][]float64
	BeamsIQ    [][]complex128

	// Filled by stack masking: per-sample weights in [0, 1] and per-beam
	// contribution flags.
	StackMask       [][]float64
	StackMaskVector []int

	// Filled by multilooking.
	Multilooked []float64
	Stats       StackStats
	StartStop   StartStop

	// Filled by sigma0 scaling (dB).
	Sigma0Scale     float64
	Sigma0ScaleBeam []float64
}

// StackSize returns the number of gathered beams.
func (s *SurfaceLocation) StackSize() int {
	return len(s.Stack)
}

// ClosestBurst returns the stack burst nearest broadside, or nil when the
// stack is empty.
func (s *SurfaceLocation) ClosestBurst() *Burst {
	if s.ClosestBeam < 0 || s.ClosestBeam >= len(s.Stack) {
		return nil
	}
	return s.Stack[s.ClosestBeam].Burst
}

// StackTimeRange returns the earliest and latest burst time in the stack.
func (s *SurfaceLocation) StackTimeRange() (float64, float64) {
	if len(s.Stack) == 0 {
		return s.Time, s.Time
	}
	lo, hi := s.Stack[0].Time, s.Stack[0].Time
	for _, b := range s.Stack[1:] {
		if b.Time < lo {
			lo = b.Time
		}
		if b.Time > hi {
			hi = b.Time
		}
	}
	return lo, hi
}
