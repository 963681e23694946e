// Package sim produces synthetic L1A bursts: an orbit model for the
// satellite state and an echo model for the ground returns.
package sim

import (
	"errors"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// earthRotationRate is the WGS84 angular velocity of the Earth (rad/s).
const earthRotationRate = 7.2921151467e-5

const kmToM = 1000.0

// Orbit returns the ECEF position (m) and velocity (m/s) of the satellite.
type Orbit interface {
	StateAt(t time.Time) (pos, vel model.Vec3, err error)
}

// CircularOrbit is a circular orbit at fixed altitude above the equatorial
// radius. Inclination, ascending node and the argument of latitude at Epoch
// are in degrees. With Rotating set the ECEF frame turns with the Earth.
type CircularOrbit struct {
	Altitude    float64
	Inclination float64
	RAAN        float64
	Phase       float64
	Epoch       time.Time
	Rotating    bool
}

// gm is the WGS84 Earth gravitational constant (m³/s²).
const gm = 3.986004418e14

// StateAt evaluates the orbit analytically.
func (o CircularOrbit) StateAt(t time.Time) (model.Vec3, model.Vec3, error) {
	r := core.WGS84.A + o.Altitude
	if r <= 0 {
		return model.Vec3{}, model.Vec3{}, errors.New("circular orbit below the Earth's centre")
	}
	n := math.Sqrt(gm / (r * r * r))
	dt := t.Sub(o.Epoch).Seconds()
	u := o.Phase*math.Pi/180 + n*dt

	inc := o.Inclination * math.Pi / 180
	raan := o.RAAN * math.Pi / 180
	if o.Rotating {
		raan -= earthRotationRate * dt
	}

	su, cu := math.Sincos(u)
	so, co := math.Sincos(raan)
	si, ci := math.Sincos(inc)

	pos := model.Vec3{
		X: r * (co*cu - so*su*ci),
		Y: r * (so*cu + co*su*ci),
		Z: r * su * si,
	}
	// inertial velocity: derivative with respect to u
	v := r * n
	vel := model.Vec3{
		X: v * (-co*su - so*cu*ci),
		Y: v * (-so*su + co*cu*ci),
		Z: v * cu * si,
	}
	if o.Rotating {
		// subtract ω × r for the rotating frame
		vel.X += earthRotationRate * pos.Y
		vel.Y -= earthRotationRate * pos.X
	}
	return pos, vel, nil
}

// SGP4Orbit propagates a two-line element set with SGP4. go-satellite
// propagates to whole seconds, so the state between seconds comes from a
// four-point Lagrange fit whose derivative gives the ECEF velocity.
type SGP4Orbit struct {
	sat satellite.Satellite
}

// NewSGP4Orbit parses the TLE lines.
func NewSGP4Orbit(line1, line2 string) (*SGP4Orbit, error) {
	if len(line1) < 69 || len(line2) < 69 {
		return nil, errors.New("tle lines must be 69 characters")
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	return &SGP4Orbit{sat: sat}, nil
}

// StateAt returns the ECEF state at t.
func (o *SGP4Orbit) StateAt(t time.Time) (model.Vec3, model.Vec3, error) {
	t = t.UTC()
	base := t.Truncate(time.Second)
	frac := t.Sub(base).Seconds()

	var knots [4]model.Vec3
	for i := range knots {
		p, err := o.ecefAt(base.Add(time.Duration(i-1) * time.Second))
		if err != nil {
			return model.Vec3{}, model.Vec3{}, err
		}
		knots[i] = p
	}

	// Lagrange basis on nodes -1, 0, 1, 2 evaluated at frac
	x := frac
	w := [4]float64{
		-x * (x - 1) * (x - 2) / 6,
		(x + 1) * (x - 1) * (x - 2) / 2,
		-(x + 1) * x * (x - 2) / 2,
		(x + 1) * x * (x - 1) / 6,
	}
	dw := [4]float64{
		-(3*x*x - 6*x + 2) / 6,
		(3*x*x - 4*x - 1) / 2,
		-(3*x*x - 2*x - 2) / 2,
		(3*x*x - 1) / 6,
	}
	var pos, vel model.Vec3
	for i, k := range knots {
		pos = pos.Add(k.Scale(w[i]))
		vel = vel.Add(k.Scale(dw[i]))
	}
	return pos, vel, nil
}

// ecefAt propagates to a whole second and rotates into ECEF.
// go-satellite works in kilometres; we return metres.
func (o *SGP4Orbit) ecefAt(t time.Time) (model.Vec3, error) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(posECI.X) || (posECI.X == 0 && posECI.Y == 0 && posECI.Z == 0) {
		return model.Vec3{}, errors.New("sgp4 propagation failed")
	}
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	return model.Vec3{
		X: posECEF.X * kmToM,
		Y: posECEF.Y * kmToM,
		Z: posECEF.Z * kmToM,
	}, nil
}
