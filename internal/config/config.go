// Package config holds the three read-only parameter sets consumed by the
// processor: physical constants (CST), instrument characterization (CHD) and
// run configuration (CNF).
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Azimuth processing methods.
const (
	AzimuthApproximate = "approximate"
	AzimuthExact       = "exact"
)

// Constants holds physical and geodetic constants.
type Constants struct {
	SpeedOfLight  float64 `yaml:"c_cst"`
	SemiMajorAxis float64 `yaml:"semi_major_axis_cst"`
	Flattening    float64 `yaml:"flat_coeff_cst"`
	EarthRadius   float64 `yaml:"earth_radius_cst"`
	// Epoch is the reference for all processor times (seconds since Epoch).
	Epoch time.Time `yaml:"epoch"`
}

// AntennaPattern is the along-track one-way antenna gain table.
type AntennaPattern struct {
	// Angles in radians, strictly increasing.
	Angles []float64 `yaml:"angles"`
	// Gains in dB relative to boresight.
	Gains []float64 `yaml:"gains"`
}

// Characterization describes the instrument.
type Characterization struct {
	Mission           string         `yaml:"mission"`
	CarrierFrequency  float64        `yaml:"freq_ku_chd"`
	PulseLength       float64        `yaml:"pulse_length_chd"`
	ChirpSlope        float64        `yaml:"chirp_slope_chd"`
	SamplingFrequency float64        `yaml:"fs_clock_ku_chd"`
	PRI               float64        `yaml:"pri_sar_chd"`
	BRI               float64        `yaml:"bri_chd"`
	PulsesPerBurst    int            `yaml:"n_ku_pulses_burst_chd"`
	SamplesPerEcho    int            `yaml:"n_samples_sar_chd"`
	AntennaGain       float64        `yaml:"antenna_gain_ku_chd"`
	TransmitPower     float64        `yaml:"power_tx_ant_ku_chd"`
	AntennaPattern    AntennaPattern `yaml:"antenna_pattern"`
}

// Region is a latitude/longitude box in degrees. A zero Region disables
// filtering.
type Region struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
}

// Enabled reports whether the region restricts anything.
func (r Region) Enabled() bool {
	return r != Region{}
}

// Contains reports whether (lat, lon) lies inside the box. Longitudes are
// compared in [-180, 180).
func (r Region) Contains(lat, lon float64) bool {
	if !r.Enabled() {
		return true
	}
	lon = wrapLon(lon)
	if lat < r.LatMin || lat > r.LatMax {
		return false
	}
	if r.LonMin <= r.LonMax {
		return lon >= r.LonMin && lon <= r.LonMax
	}
	// box crosses the antimeridian
	return lon >= r.LonMin || lon <= r.LonMax
}

func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Configuration is the run configuration.
type Configuration struct {
	ZeroPadding         int     `yaml:"zp_fact_range_cnf"`
	NLooksStack         int     `yaml:"n_looks_stack_cnf"`
	MinSurfacesMargin   int     `yaml:"min_surfaces_margin_cnf"`
	SurfaceSpacingBeams float64 `yaml:"surface_spacing_beams_cnf"`
	AzimuthMethod       string  `yaml:"azimuth_method_cnf"`

	FlagCal1 bool `yaml:"flag_cal1_corrections_cnf"`
	FlagCal2 bool `yaml:"flag_cal2_correction_cnf"`

	FlagDopplerCorrection    bool `yaml:"flag_doppler_range_correction_cnf"`
	FlagSlantRangeCorrection bool `yaml:"flag_slant_range_correction_cnf"`
	FlagWinDelayCorrection   bool `yaml:"flag_window_delay_alignment_method_cnf"`

	FlagStackMasking        bool `yaml:"flag_stack_masking_cnf"`
	FlagRemoveDopplerAmbig  bool `yaml:"flag_remove_doppler_ambiguities_cnf"`
	FlagAntennaWeighting    bool `yaml:"flag_antenna_weighting_cnf"`
	FlagAvoidZerosMultilook bool `yaml:"flag_avoid_zeros_in_multilooking_cnf"`

	// GapFactor is the burst time gap, in nominal BRIs, that triggers a drain.
	GapFactor float64 `yaml:"gap_factor_cnf"`
	// GaussianHalfWindow is the number of beams each side of broadside used
	// by the stack Gaussian fits.
	GaussianHalfWindow int `yaml:"gaussian_half_window_cnf"`

	ROI Region `yaml:"roi"`

	WriteL1B        bool   `yaml:"write_l1b_cnf"`
	WriteL1BS       bool   `yaml:"write_l1bs_cnf"`
	TimestampFormat string `yaml:"timestamp_format_cnf"`
}

// Params bundles the three parameter sets. It is treated as immutable once
// constructed.
type Params struct {
	CST Constants
	CHD Characterization
	CNF Configuration
}

// DefaultConstants returns WGS84 constants with the 2000-01-01 epoch.
func DefaultConstants() Constants {
	return Constants{
		SpeedOfLight:  299792458.0,
		SemiMajorAxis: 6378137.0,
		Flattening:    1 / 298.257223563,
		EarthRadius:   6371008.8,
		Epoch:         time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// DefaultCharacterization returns a Ku-band SAR altimeter in the CryoSat /
// Sentinel class.
func DefaultCharacterization() Characterization {
	const (
		pulseLength = 44.8e-6
		bandwidth   = 320e6
		samples     = 128
	)
	return Characterization{
		Mission:           "SARALT",
		CarrierFrequency:  13.575e9,
		PulseLength:       pulseLength,
		ChirpSlope:        bandwidth / pulseLength,
		SamplingFrequency: samples / pulseLength,
		PRI:               55e-6,
		BRI:               11.7e-3,
		PulsesPerBurst:    64,
		SamplesPerEcho:    samples,
		AntennaGain:       42.6,
		TransmitPower:     25.1,
		AntennaPattern:    defaultPattern(),
	}
}

// defaultPattern is a Gaussian main lobe with a 1.1° along-track 3 dB width.
func defaultPattern() AntennaPattern {
	const halfWidth = 0.55 * math.Pi / 180
	p := AntennaPattern{}
	for i := -8; i <= 8; i++ {
		a := float64(i) * halfWidth / 2
		p.Angles = append(p.Angles, a)
		p.Gains = append(p.Gains, -3*(a/halfWidth)*(a/halfWidth))
	}
	return p
}

// DefaultConfiguration returns the nominal run configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		ZeroPadding:              2,
		NLooksStack:              240,
		MinSurfacesMargin:        2,
		SurfaceSpacingBeams:      1,
		AzimuthMethod:            AzimuthApproximate,
		FlagCal1:                 true,
		FlagCal2:                 true,
		FlagDopplerCorrection:    true,
		FlagSlantRangeCorrection: true,
		FlagWinDelayCorrection:   true,
		FlagStackMasking:         true,
		FlagAvoidZerosMultilook:  true,
		GapFactor:                1.5,
		GaussianHalfWindow:       124,
		WriteL1B:                 true,
		WriteL1BS:                false,
		TimestampFormat:          "%Y%m%dT%H%M%S",
	}
}

// Default returns the full default parameter bundle.
func Default() Params {
	return Params{
		CST: DefaultConstants(),
		CHD: DefaultCharacterization(),
		CNF: DefaultConfiguration(),
	}
}

// ApplyDefaults replaces zero-valued numeric and string fields with their
// defaults. Boolean flags are left as given.
func (c Constants) ApplyDefaults() Constants {
	d := DefaultConstants()
	if c.SpeedOfLight == 0 {
		c.SpeedOfLight = d.SpeedOfLight
	}
	if c.SemiMajorAxis == 0 {
		c.SemiMajorAxis = d.SemiMajorAxis
	}
	if c.Flattening == 0 {
		c.Flattening = d.Flattening
	}
	if c.EarthRadius == 0 {
		c.EarthRadius = d.EarthRadius
	}
	if c.Epoch.IsZero() {
		c.Epoch = d.Epoch
	}
	return c
}

// ApplyDefaults replaces zero-valued fields with their defaults. The chirp
// slope and sampling frequency default from the pulse length when only that
// is given.
func (c Characterization) ApplyDefaults() Characterization {
	d := DefaultCharacterization()
	if c.Mission == "" {
		c.Mission = d.Mission
	}
	if c.CarrierFrequency == 0 {
		c.CarrierFrequency = d.CarrierFrequency
	}
	if c.PulseLength == 0 {
		c.PulseLength = d.PulseLength
	}
	if c.SamplesPerEcho == 0 {
		c.SamplesPerEcho = d.SamplesPerEcho
	}
	if c.ChirpSlope == 0 {
		c.ChirpSlope = d.ChirpSlope * d.PulseLength / c.PulseLength
	}
	if c.SamplingFrequency == 0 {
		c.SamplingFrequency = float64(c.SamplesPerEcho) / c.PulseLength
	}
	if c.PRI == 0 {
		c.PRI = d.PRI
	}
	if c.BRI == 0 {
		c.BRI = d.BRI
	}
	if c.PulsesPerBurst == 0 {
		c.PulsesPerBurst = d.PulsesPerBurst
	}
	if c.AntennaGain == 0 {
		c.AntennaGain = d.AntennaGain
	}
	if c.TransmitPower == 0 {
		c.TransmitPower = d.TransmitPower
	}
	if len(c.AntennaPattern.Angles) == 0 {
		c.AntennaPattern = d.AntennaPattern
	}
	return c
}

// ApplyDefaults replaces zero-valued numeric and string fields with their
// defaults. Boolean flags are left as given.
func (c Configuration) ApplyDefaults() Configuration {
	d := DefaultConfiguration()
	if c.ZeroPadding == 0 {
		c.ZeroPadding = d.ZeroPadding
	}
	if c.NLooksStack == 0 {
		c.NLooksStack = d.NLooksStack
	}
	if c.SurfaceSpacingBeams == 0 {
		c.SurfaceSpacingBeams = d.SurfaceSpacingBeams
	}
	if c.AzimuthMethod == "" {
		c.AzimuthMethod = d.AzimuthMethod
	}
	c.AzimuthMethod = strings.ToLower(c.AzimuthMethod)
	if c.GapFactor == 0 {
		c.GapFactor = d.GapFactor
	}
	if c.GaussianHalfWindow == 0 {
		c.GaussianHalfWindow = d.GaussianHalfWindow
	}
	if c.TimestampFormat == "" {
		c.TimestampFormat = d.TimestampFormat
	}
	return c
}

// ApplyDefaults applies defaults to all three sets.
func (p Params) ApplyDefaults() Params {
	p.CST = p.CST.ApplyDefaults()
	p.CHD = p.CHD.ApplyDefaults()
	p.CNF = p.CNF.ApplyDefaults()
	return p
}

// Validate returns an error describing every invalid field.
func (p Params) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(p.CST.SpeedOfLight > 0, "cst: c_cst must be positive")
	check(p.CST.SemiMajorAxis > 0, "cst: semi_major_axis_cst must be positive")
	check(p.CST.Flattening >= 0 && p.CST.Flattening < 1, "cst: flat_coeff_cst %g out of range", p.CST.Flattening)
	check(p.CST.EarthRadius > 0, "cst: earth_radius_cst must be positive")

	check(p.CHD.CarrierFrequency > 0, "chd: freq_ku_chd must be positive")
	check(p.CHD.PulseLength > 0, "chd: pulse_length_chd must be positive")
	check(p.CHD.ChirpSlope > 0, "chd: chirp_slope_chd must be positive")
	check(p.CHD.SamplingFrequency > 0, "chd: fs_clock_ku_chd must be positive")
	check(p.CHD.PRI > 0, "chd: pri_sar_chd must be positive")
	check(p.CHD.BRI > 0, "chd: bri_chd must be positive")
	check(p.CHD.PulsesPerBurst >= 2, "chd: n_ku_pulses_burst_chd must be at least 2, got %d", p.CHD.PulsesPerBurst)
	check(p.CHD.SamplesPerEcho >= 2, "chd: n_samples_sar_chd must be at least 2, got %d", p.CHD.SamplesPerEcho)
	check(p.CHD.TransmitPower > 0, "chd: power_tx_ant_ku_chd must be positive")
	check(len(p.CHD.AntennaPattern.Angles) == len(p.CHD.AntennaPattern.Gains),
		"chd: antenna pattern has %d angles and %d gains",
		len(p.CHD.AntennaPattern.Angles), len(p.CHD.AntennaPattern.Gains))
	check(len(p.CHD.AntennaPattern.Angles) != 1, "chd: antenna pattern needs at least 2 points")
	for i := 1; i < len(p.CHD.AntennaPattern.Angles); i++ {
		if p.CHD.AntennaPattern.Angles[i] <= p.CHD.AntennaPattern.Angles[i-1] {
			errs = append(errs, errors.New("chd: antenna pattern angles must be strictly increasing"))
			break
		}
	}

	check(p.CNF.ZeroPadding >= 1, "cnf: zp_fact_range_cnf must be >= 1, got %d", p.CNF.ZeroPadding)
	check(p.CNF.NLooksStack >= 1, "cnf: n_looks_stack_cnf must be >= 1, got %d", p.CNF.NLooksStack)
	check(p.CNF.MinSurfacesMargin >= 0, "cnf: min_surfaces_margin_cnf must not be negative")
	check(p.CNF.SurfaceSpacingBeams > 0, "cnf: surface_spacing_beams_cnf must be positive")
	check(p.CNF.AzimuthMethod == AzimuthApproximate || p.CNF.AzimuthMethod == AzimuthExact,
		"cnf: unknown azimuth_method_cnf %q", p.CNF.AzimuthMethod)
	check(p.CNF.GapFactor > 1, "cnf: gap_factor_cnf must exceed 1, got %g", p.CNF.GapFactor)
	check(p.CNF.GaussianHalfWindow >= 1, "cnf: gaussian_half_window_cnf must be >= 1")
	if p.CNF.ROI.Enabled() {
		check(p.CNF.ROI.LatMin <= p.CNF.ROI.LatMax, "cnf: roi lat_min exceeds lat_max")
	}

	return errors.Join(errs...)
}

// Wavelength returns the carrier wavelength in metres.
func (p Params) Wavelength() float64 {
	return p.CST.SpeedOfLight / p.CHD.CarrierFrequency
}

// PRF returns the pulse repetition frequency in Hz.
func (p Params) PRF() float64 {
	return 1 / p.CHD.PRI
}

// BeamResolution returns the angular separation of adjacent Doppler beams
// for a satellite moving at speed (m/s).
func (p Params) BeamResolution(speed float64) float64 {
	if speed <= 0 {
		return 0
	}
	return p.Wavelength() / (2 * speed * p.CHD.PRI * float64(p.CHD.PulsesPerBurst))
}

// MinSurfaces returns how many surface locations must be buffered before the
// oldest one can be finalized.
func (p Params) MinSurfaces() int {
	return p.CHD.PulsesPerBurst + p.CNF.MinSurfacesMargin
}

// RangeBinSize returns the size of one un-padded range bin in metres.
func (p Params) RangeBinSize() float64 {
	return p.CST.SpeedOfLight * p.CHD.SamplingFrequency /
		(2 * p.CHD.ChirpSlope * float64(p.CHD.SamplesPerEcho))
}

// PaddedSamples returns the number of range samples after zero padding.
func (p Params) PaddedSamples() int {
	return p.CHD.SamplesPerEcho * p.CNF.ZeroPadding
}

// GapThreshold returns the burst time difference (s) treated as a gap.
func (p Params) GapThreshold() float64 {
	return p.CNF.GapFactor * p.CHD.BRI
}

// Load reads the three parameter files, applies defaults and validates the
// result. An empty path selects the built-in defaults for that set.
func Load(cstPath, chdPath, cnfPath string) (Params, error) {
	p := Default()
	if err := loadYAML(cstPath, &p.CST); err != nil {
		return Params{}, fmt.Errorf("load constants: %w", err)
	}
	if err := loadYAML(chdPath, &p.CHD); err != nil {
		return Params{}, fmt.Errorf("load characterization: %w", err)
	}
	if err := loadYAML(cnfPath, &p.CNF); err != nil {
		return Params{}, fmt.Errorf("load configuration: %w", err)
	}
	p = p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// loadYAML decodes path over the defaults already in out. JSON files decode
// too since JSON is a YAML subset.
func loadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
