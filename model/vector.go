package model

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec3 is an ECEF vector in metres (or metres per second for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return fromR3(v.r3().Cross(other.r3()))
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Angle returns the angle between v and other in radians, in [0, π].
// The result is computed from atan2(|v×o|, v·o), which stays accurate for
// nearly parallel and nearly perpendicular vectors alike. A zero vector
// yields 0; callers that must reject degenerate input check norms first.
func (v Vec3) Angle(other Vec3) float64 {
	return float64(v.r3().Angle(other.r3()))
}

// Lerp linearly interpolates between v (f=0) and other (f=1).
func (v Vec3) Lerp(other Vec3, f float64) Vec3 {
	return v.Add(other.Sub(v).Scale(f))
}

// IsZero reports whether every component is exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vec3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func fromR3(r r3.Vector) Vec3 {
	return Vec3{X: r.X, Y: r.Y, Z: r.Z}
}
