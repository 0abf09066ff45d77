package posemath

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a pose cannot be inverted.
var ErrSingular = errors.New("posemath: singular transform")

// Pose is a 4x4 homogeneous transform in row-major order.
type Pose [16]float64

// Rotation is a 3x3 rotation matrix in row-major order.
type Rotation [9]float64

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// IdentityRotation returns the 3x3 identity.
func IdentityRotation() Rotation {
	return Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Translation returns a pure translation transform.
func Translation(t r3.Vector) Pose {
	return ToHomogeneous(IdentityRotation(), t)
}

// ToHomogeneous packs a rotation and translation into a transform with
// bottom row [0 0 0 1].
func ToHomogeneous(r Rotation, t r3.Vector) Pose {
	return Pose{
		r[0], r[1], r[2], t.X,
		r[3], r[4], r[5], t.Y,
		r[6], r[7], r[8], t.Z,
		0, 0, 0, 1,
	}
}

// At returns the element at row i, column j.
func (p Pose) At(i, j int) float64 { return p[i*4+j] }

// Rotation returns the upper-left 3x3 block.
func (p Pose) Rotation() Rotation {
	return Rotation{
		p[0], p[1], p[2],
		p[4], p[5], p[6],
		p[8], p[9], p[10],
	}
}

// Translation returns the translation column.
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p[3], Y: p[7], Z: p[11]}
}

// Decompose splits the transform back into its rotation and translation.
func (p Pose) Decompose() (Rotation, r3.Vector) {
	return p.Rotation(), p.Translation()
}

// Mul returns p·o.
func (p Pose) Mul(o Pose) Pose {
	var out Pose
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += p[i*4+k] * o[k*4+j]
			}
			out[i*4+j] = sum
		}
	}
	return out
}

// Compose returns the product of the given transforms, left to right.
func Compose(poses ...Pose) Pose {
	out := Identity()
	for _, p := range poses {
		out = out.Mul(p)
	}
	return out
}

// Dense copies the transform into a gonum matrix.
func (p Pose) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, p[:])
	return mat.NewDense(4, 4, data)
}

// PoseFromDense copies a 4x4 gonum matrix into a Pose.
func PoseFromDense(m mat.Matrix) (Pose, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Pose{}, fmt.Errorf("posemath: expected 4x4 matrix, got %dx%d", r, c)
	}
	var p Pose
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p[i*4+j] = m.At(i, j)
		}
	}
	return p, nil
}

// Inverse returns the general matrix inverse of p. Poses built from
// detector output are rigid, but the inverse is not specialised to that
// case so that averaged or otherwise perturbed matrices still invert.
func (p Pose) Inverse() (Pose, error) {
	var inv mat.Dense
	if err := inv.Inverse(p.Dense()); err != nil {
		return Pose{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return PoseFromDense(&inv)
}

// MustInverse is Inverse for transforms known to be invertible, such as
// anything with an orthonormal rotation block. It panics otherwise.
func (p Pose) MustInverse() Pose {
	inv, err := p.Inverse()
	if err != nil {
		panic(err)
	}
	return inv
}

// SquaredDistance is the sum of squared element differences between a
// and b.
func SquaredDistance(a, b Pose) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// ApproxEqual reports whether every element of p is within tol of o.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	for i := range p {
		if math.Abs(p[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// IsFinite reports whether every element is a finite number.
func (p Pose) IsFinite() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Column returns column j of the rotation.
func (r Rotation) Column(j int) r3.Vector {
	return r3.Vector{X: r[j], Y: r[3+j], Z: r[6+j]}
}

// Mul returns r·o.
func (r Rotation) Mul(o Rotation) Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = r[i*3]*o[j] + r[i*3+1]*o[3+j] + r[i*3+2]*o[6+j]
		}
	}
	return out
}

// Transpose returns rᵀ, which is also the inverse of an orthonormal r.
func (r Rotation) Transpose() Rotation {
	return Rotation{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
}

// Apply returns r·v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// Det returns the determinant.
func (r Rotation) Det() float64 {
	return r[0]*(r[4]*r[8]-r[5]*r[7]) -
		r[1]*(r[3]*r[8]-r[5]*r[6]) +
		r[2]*(r[3]*r[7]-r[4]*r[6])
}

// Apply transforms the point v by p.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	return p.Rotation().Apply(v).Add(p.Translation())
}
