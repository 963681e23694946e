package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// AngleBetween returns the angle between a and b in radians. Zero-length
// inputs are rejected rather than silently yielding 0.
func AngleBetween(op string, a, b model.Vec3) (float64, error) {
	if a.Norm() == 0 || b.Norm() == 0 {
		return 0, &GeometryDegenerateError{Op: op}
	}
	return a.Angle(b), nil
}

// DopplerAngle returns the angle between the velocity and the local nadir
// direction, minus π/2. It is zero when the velocity is horizontal.
func DopplerAngle(velocity, nadir model.Vec3) (float64, error) {
	a, err := AngleBetween("doppler angle", velocity, nadir)
	if err != nil {
		return 0, err
	}
	return a - math.Pi/2, nil
}

// BeamAngle returns the angle between the velocity and the line of sight
// from the satellite to the surface point.
func BeamAngle(satPos, velocity, surface model.Vec3) (float64, error) {
	return AngleBetween("beam angle", velocity, surface.Sub(satPos))
}

// LookAngle returns the look angle of a beam: broadside plus the Doppler
// angle minus the beam angle.
func LookAngle(beamAngle, dopplerAngle float64) float64 {
	return math.Pi/2 + dopplerAngle - beamAngle
}
