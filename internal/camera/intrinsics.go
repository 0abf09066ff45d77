package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Intrinsics is a 3x3 camera matrix plus a row of distortion
// coefficients in OpenCV order (k1, k2, p1, p2, k3).
type Intrinsics struct {
	Matrix     *mat.Dense
	Distortion *mat.Dense
}

// NewIntrinsics builds intrinsics from focal lengths, principal point and
// up to five distortion coefficients.
func NewIntrinsics(fx, fy, cx, cy float64, dist ...float64) (Intrinsics, error) {
	if len(dist) > 5 {
		return Intrinsics{}, fmt.Errorf("expected at most 5 distortion coefficients, got %d", len(dist))
	}
	coeffs := make([]float64, 5)
	copy(coeffs, dist)
	in := Intrinsics{
		Matrix: mat.NewDense(3, 3, []float64{
			fx, 0, cx,
			0, fy, cy,
			0, 0, 1,
		}),
		Distortion: mat.NewDense(1, 5, coeffs),
	}
	return in, in.Validate()
}

// Validate checks the matrix shape and that the focal lengths are usable.
func (in Intrinsics) Validate() error {
	if in.Matrix == nil {
		return errors.New("camera matrix is missing")
	}
	if r, c := in.Matrix.Dims(); r != 3 || c != 3 {
		return fmt.Errorf("camera matrix must be 3x3, got %dx%d", r, c)
	}
	if in.Fx() <= 0 || in.Fy() <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%g fy=%g", in.Fx(), in.Fy())
	}
	if in.Distortion != nil {
		if r, c := in.Distortion.Dims(); r != 1 && c != 1 {
			return fmt.Errorf("distortion must be a vector, got %dx%d", r, c)
		}
	}
	return nil
}

func (in Intrinsics) Fx() float64 { return in.Matrix.At(0, 0) }
func (in Intrinsics) Fy() float64 { return in.Matrix.At(1, 1) }
func (in Intrinsics) Cx() float64 { return in.Matrix.At(0, 2) }
func (in Intrinsics) Cy() float64 { return in.Matrix.At(1, 2) }

// Coefficients returns k1, k2, p1, p2, k3, padding missing terms with zero.
// Higher-order rational terms some calibrators emit are ignored.
func (in Intrinsics) Coefficients() [5]float64 {
	var out [5]float64
	if in.Distortion == nil {
		return out
	}
	r, c := in.Distortion.Dims()
	n := 0
	for i := 0; i < r && n < 5; i++ {
		for j := 0; j < c && n < 5; j++ {
			out[n] = in.Distortion.At(i, j)
			n++
		}
	}
	return out
}

// distort applies the forward Brown-Conrady model to normalised
// coordinates.
func (in Intrinsics) distort(x, y float64) (float64, float64) {
	d := in.Coefficients()
	k1, k2, p1, p2, k3 := d[0], d[1], d[2], d[3], d[4]
	r2 := x*x + y*y
	radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// Project maps a camera-frame point to pixel coordinates.
func (in Intrinsics) Project(p r3.Vector) (u, v float64) {
	x, y := in.distort(p.X/p.Z, p.Y/p.Z)
	return in.Fx()*x + in.Cx(), in.Fy()*y + in.Cy()
}

// Normalize maps a pixel to undistorted normalised image coordinates by
// inverting the distortion model with Newton iterations.
func (in Intrinsics) Normalize(u, v float64) (x, y float64) {
	xd := (u - in.Cx()) / in.Fx()
	yd := (v - in.Cy()) / in.Fy()
	d := in.Coefficients()
	if d == [5]float64{} {
		return xd, yd
	}
	k1, k2, p1, p2, k3 := d[0], d[1], d[2], d[3], d[4]

	const (
		maxIterations = 20
		tolerance     = 1e-12
	)
	x, y = xd, yd
	for i := 0; i < maxIterations; i++ {
		ex, ey := in.distort(x, y)
		ex -= xd
		ey -= yd
		if ex*ex+ey*ey < tolerance*tolerance {
			break
		}

		r2 := x*x + y*y
		radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
		dRadial := k1 + 2*k2*r2 + 3*k3*r2*r2 // d(radial)/d(r2)

		j00 := radial + 2*x*x*dRadial + 2*p1*y + 6*p2*x
		j01 := 2*x*y*dRadial + 2*p1*x + 2*p2*y
		j10 := 2*x*y*dRadial + 2*p1*x + 2*p2*y
		j11 := radial + 2*y*y*dRadial + 6*p1*y + 2*p2*x

		det := j00*j11 - j01*j10
		if det == 0 || math.IsNaN(det) {
			break
		}
		x -= (j11*ex - j01*ey) / det
		y -= (-j10*ex + j00*ey) / det
	}
	return x, y
}
