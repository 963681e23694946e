package core

import (
	"math"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// PrepareBurst derives the satellite ECEF position, the tracked ground point
// under the satellite and the Doppler angle from the burst's geodetic
// position, velocity and window delay.
func (p *Pipeline) PrepareBurst(b *model.Burst) error {
	if b.SatPosition.IsZero() {
		b.SatPosition = p.ellipsoid.ToECEF(b.Lat, b.Lon, b.Alt)
	}
	pos, lat, lon, alt := p.ellipsoid.SurfaceUnderSatellite(b.SatPosition, b.WinDelay, p.params.CST.SpeedOfLight)
	b.SurfacePosition = pos
	b.SurfaceLat, b.SurfaceLon, b.SurfaceAlt = lat, lon, alt

	doppler, err := DopplerAngle(b.Velocity, Nadir(lat, lon))
	if err != nil {
		return err
	}
	b.DopplerAngle = doppler
	return nil
}

// SurfaceTracker decides when a new surface location is due along the
// ground track. It owns the ID sequence and is reset per run.
type SurfaceTracker struct {
	pipeline *Pipeline
	nextID   uint64
}

// NewSurfaceTracker returns a tracker whose first location gets ID 0.
func (p *Pipeline) NewSurfaceTracker() *SurfaceTracker {
	return &SurfaceTracker{pipeline: p}
}

// Track returns the surface locations that become due with burst cur. prev
// is the previous burst of the same segment (nil right after a gap or at the
// start), last the newest existing location (nil if none). With forceNew, or
// when there is no previous location, a location is created directly under
// cur. Otherwise a location is created each time the angle between cur's
// velocity and the line of sight to the last location passes broadside plus
// the configured spacing in Doppler beams. Locations are placed by linear
// interpolation between prev and cur.
func (t *SurfaceTracker) Track(prev, cur *model.Burst, last *model.SurfaceLocation, forceNew bool) ([]*model.SurfaceLocation, error) {
	if forceNew || last == nil {
		return []*model.SurfaceLocation{t.fromBurst(cur)}, nil
	}

	params := t.pipeline.params
	resolution := params.BeamResolution(cur.Velocity.Norm())
	if resolution == 0 {
		return nil, &GeometryDegenerateError{Op: "surface tracking"}
	}
	target := math.Pi/2 + cur.DopplerAngle + params.CNF.SurfaceSpacingBeams*resolution

	var created []*model.SurfaceLocation
	for i := 0; i < params.CHD.PulsesPerBurst; i++ {
		aCur, err := AngleBetween("surface tracking", cur.Velocity, last.Position.Sub(cur.SatPosition))
		if err != nil {
			return created, err
		}
		if aCur < target {
			break
		}

		f := 1.0
		if prev != nil {
			aPrev, err := AngleBetween("surface tracking", prev.Velocity, last.Position.Sub(prev.SatPosition))
			if err != nil {
				return created, err
			}
			if aCur != aPrev {
				f = (target - aPrev) / (aCur - aPrev)
			}
			f = math.Max(0, math.Min(1, f))
		}

		s := t.interpolate(prev, cur, f)
		created = append(created, s)
		last = s
	}
	return created, nil
}

func (t *SurfaceTracker) fromBurst(b *model.Burst) *model.SurfaceLocation {
	return t.interpolate(nil, b, 1)
}

// interpolate builds a location at fraction f of the way from a to b. A nil
// a places it at b.
func (t *SurfaceTracker) interpolate(a, b *model.Burst, f float64) *model.SurfaceLocation {
	if a == nil {
		a, f = b, 1
	}
	lerp := func(x, y float64) float64 { return x + (y-x)*f }

	satPos := a.SatPosition.Lerp(b.SatPosition, f)
	winDelay := lerp(a.WinDelay, b.WinDelay)
	ell := t.pipeline.ellipsoid
	pos, lat, lon, alt := ell.SurfaceUnderSatellite(satPos, winDelay, t.pipeline.params.CST.SpeedOfLight)
	satLat, satLon, satAlt := ell.ToGeodetic(satPos)

	s := &model.SurfaceLocation{
		ID:          t.nextID,
		Time:        lerp(a.Time, b.Time),
		Position:    pos,
		Lat:         lat,
		Lon:         lon,
		Alt:         alt,
		SatPosition: satPos,
		SatVelocity: a.Velocity.Lerp(b.Velocity, f),
		SatLat:      satLat,
		SatLon:      satLon,
		SatAlt:      satAlt,
		Roll:        lerp(a.Roll, b.Roll),
		Pitch:       lerp(a.Pitch, b.Pitch),
		Yaw:         lerp(a.Yaw, b.Yaw),
		WinDelay:    winDelay,
		AGC:         lerp(a.AGC, b.AGC),
		ClosestBeam: -1,
	}
	t.nextID++
	return s
}
