package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Ellipsoid is a reference ellipsoid given by its semi-major axis (m) and
// flattening.
type Ellipsoid struct {
	A float64
	F float64
}

// WGS84 is the default reference ellipsoid.
var WGS84 = Ellipsoid{A: 6378137.0, F: 1 / 298.257223563}

func (e Ellipsoid) e2() float64 {
	return e.F * (2 - e.F)
}

// ToECEF converts geodetic latitude/longitude (degrees) and ellipsoidal
// height (m) to an ECEF position in metres.
func (e Ellipsoid) ToECEF(lat, lon, alt float64) model.Vec3 {
	sinp, cosp := math.Sincos(lat * degToRad)
	sinl, cosl := math.Sincos(lon * degToRad)
	e2 := e.e2()
	v := e.A / math.Sqrt(1-e2*sinp*sinp)
	return model.Vec3{
		X: (v + alt) * cosp * cosl,
		Y: (v + alt) * cosp * sinl,
		Z: (v*(1-e2) + alt) * sinp,
	}
}

// ToGeodetic converts an ECEF position in metres to geodetic latitude and
// longitude (degrees) and ellipsoidal height (m) on e. The iteration on the
// auxiliary z coordinate starts from the geocentric latitude.
func (e Ellipsoid) ToGeodetic(p model.Vec3) (lat, lon, alt float64) {
	r2 := p.X*p.X + p.Y*p.Y
	if r2 <= 1e-12 {
		lat = 90
		if p.Z < 0 {
			lat = -90
		}
		return lat, 0, math.Abs(p.Z) - e.A*(1-e.F)
	}

	e2 := e.e2()
	sinp := p.Z / math.Sqrt(r2+p.Z*p.Z)
	v := e.A / math.Sqrt(1-e2*sinp*sinp)
	z := p.Z + v*e2*sinp
	for i := 0; i < 10; i++ {
		zk := z
		sinp = z / math.Sqrt(r2+z*z)
		v = e.A / math.Sqrt(1-e2*sinp*sinp)
		z = p.Z + v*e2*sinp
		if math.Abs(z-zk) < 1e-6 {
			break
		}
	}

	lat = math.Atan(z/math.Sqrt(r2)) * radToDeg
	lon = math.Atan2(p.Y, p.X) * radToDeg
	alt = math.Sqrt(r2+z*z) - v
	return lat, lon, alt
}

// Nadir returns the unit vector normal to the ellipsoid pointing down from
// the geodetic position (degrees).
func Nadir(lat, lon float64) model.Vec3 {
	sinp, cosp := math.Sincos(lat * degToRad)
	sinl, cosl := math.Sincos(lon * degToRad)
	return model.Vec3{X: -cosp * cosl, Y: -cosp * sinl, Z: -sinp}
}

// SurfaceUnderSatellite returns the ECEF position and geodetic coordinates of
// the point tracked by the range window: directly below the satellite at the
// height reached by half the two-way window delay.
func (e Ellipsoid) SurfaceUnderSatellite(satPos model.Vec3, winDelay, c float64) (model.Vec3, float64, float64, float64) {
	lat, lon, alt := e.ToGeodetic(satPos)
	surfAlt := alt - c*winDelay/2
	return e.ToECEF(lat, lon, surfAlt), lat, lon, surfAlt
}
