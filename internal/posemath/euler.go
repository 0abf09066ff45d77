package posemath

import (
	"math"

	"github.com/golang/geo/r3"
)

// gimbalEpsilon is the threshold on sqrt(R00²+R10²) below which the XYZ
// decomposition is treated as singular.
const gimbalEpsilon = 1e-6

// EulerFromRotation decomposes r into XYZ Euler angles (radians) such that
// RotationFromEuler(x, y, z) reproduces r away from gimbal lock. Near the
// singularity z is pinned to zero and the result is an approximation.
func EulerFromRotation(r Rotation) (x, y, z float64) {
	sy := math.Sqrt(r[0]*r[0] + r[3]*r[3])
	if sy >= gimbalEpsilon {
		x = math.Atan2(r[7], r[8])
		y = math.Atan2(-r[6], sy)
		z = math.Atan2(r[3], r[0])
		return x, y, z
	}
	x = math.Atan2(-r[5], r[4])
	y = math.Atan2(-r[6], sy)
	return x, y, 0
}

// RotationFromEuler builds Rz·Ry·Rx from XYZ Euler angles in radians.
func RotationFromEuler(x, y, z float64) Rotation {
	cx, sx := math.Cos(x), math.Sin(x)
	cy, sy := math.Cos(y), math.Sin(y)
	cz, sz := math.Cos(z), math.Sin(z)
	rx := Rotation{
		1, 0, 0,
		0, cx, -sx,
		0, sx, cx,
	}
	ry := Rotation{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	}
	rz := Rotation{
		cz, -sz, 0,
		sz, cz, 0,
		0, 0, 1,
	}
	return rz.Mul(ry).Mul(rx)
}

// RotationFromVector converts a Rodrigues rotation vector (axis scaled by
// angle) into a rotation matrix.
func RotationFromVector(v r3.Vector) Rotation {
	theta := v.Norm()
	if theta < 1e-12 {
		return IdentityRotation()
	}
	k := v.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	return Rotation{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	}
}

// Vector converts r back into a Rodrigues rotation vector.
func (r Rotation) Vector() r3.Vector {
	cosTheta := (r[0] + r[4] + r[8] - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)
	switch {
	case theta < 1e-12:
		return r3.Vector{}
	case math.Pi-theta < 1e-6:
		// sin(theta) vanishes; recover the axis from the symmetric part.
		axis := r3.Vector{
			X: math.Sqrt(math.Max(0, (r[0]+1)/2)),
			Y: math.Sqrt(math.Max(0, (r[4]+1)/2)),
			Z: math.Sqrt(math.Max(0, (r[8]+1)/2)),
		}
		switch {
		case axis.X >= axis.Y && axis.X >= axis.Z:
			axis.Y = math.Copysign(axis.Y, r[1])
			axis.Z = math.Copysign(axis.Z, r[2])
		case axis.Y >= axis.Z:
			axis.X = math.Copysign(axis.X, r[1])
			axis.Z = math.Copysign(axis.Z, r[5])
		default:
			axis.X = math.Copysign(axis.X, r[2])
			axis.Y = math.Copysign(axis.Y, r[5])
		}
		return axis.Normalize().Mul(theta)
	}
	scale := theta / (2 * math.Sin(theta))
	return r3.Vector{
		X: (r[7] - r[5]) * scale,
		Y: (r[2] - r[6]) * scale,
		Z: (r[3] - r[1]) * scale,
	}
}

// FromVectors builds a pose from a Rodrigues rotation vector and a
// translation, the form marker pose estimators report.
func FromVectors(rvec, tvec r3.Vector) Pose {
	return ToHomogeneous(RotationFromVector(rvec), tvec)
}

// Orthonormalize returns the rotation closest to r in the Frobenius sense.
func (r Rotation) Orthonormalize() Rotation {
	return nearestRotation(r)
}
