package vision

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateCorners is returned when the corners do not define a
// usable plane-to-image mapping.
var ErrDegenerateCorners = errors.New("degenerate marker corners")

// MarkerObjectPoints returns the marker's corners in its own frame,
// centred on the marker with +Y up and +Z out of the marker face.
func MarkerObjectPoints(length float64) [4]r3.Vector {
	h := length / 2
	return [4]r3.Vector{
		{X: -h, Y: h},
		{X: h, Y: h},
		{X: h, Y: -h},
		{X: -h, Y: -h},
	}
}

// PlanarEstimator recovers a square marker's pose from its four corners
// through a plane-to-image homography. With noise-free corners the result
// is exact; with noisy corners it is the usual closed-form initial
// estimate, without reprojection refinement.
type PlanarEstimator struct{}

// EstimatePose implements PoseEstimator.
func (PlanarEstimator) EstimatePose(corners Corners, markerLength float64, in camera.Intrinsics) (r3.Vector, r3.Vector, error) {
	if markerLength <= 0 {
		return r3.Vector{}, r3.Vector{}, fmt.Errorf("marker length must be positive, got %g", markerLength)
	}
	if in.Matrix == nil {
		return r3.Vector{}, r3.Vector{}, camera.ErrNoIntrinsics
	}

	obj := MarkerObjectPoints(markerLength)
	var img [4]Point
	for i, c := range corners {
		x, y := in.Normalize(c.X, c.Y)
		img[i] = Point{X: x, Y: y}
	}

	h, err := homography(obj, img)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}

	h1 := r3.Vector{X: h[0], Y: h[3], Z: h[6]}
	h2 := r3.Vector{X: h[1], Y: h[4], Z: h[7]}
	h3 := r3.Vector{X: h[2], Y: h[5], Z: h[8]}

	norm := (h1.Norm() + h2.Norm()) / 2
	if norm < 1e-12 {
		return r3.Vector{}, r3.Vector{}, ErrDegenerateCorners
	}
	lambda := 1 / norm
	if h3.Z < 0 {
		// The marker must sit in front of the camera.
		lambda = -lambda
	}

	r1 := h1.Mul(lambda)
	r2 := h2.Mul(lambda)
	t := h3.Mul(lambda)
	r3col := r1.Cross(r2)

	rot := posemath.Rotation{
		r1.X, r2.X, r3col.X,
		r1.Y, r2.Y, r3col.Y,
		r1.Z, r2.Z, r3col.Z,
	}.Orthonormalize()

	if math.IsNaN(t.Z) || t.Z <= 0 {
		return r3.Vector{}, r3.Vector{}, ErrDegenerateCorners
	}
	return rot.Vector(), t, nil
}

// homography solves for H (h33 = 1) mapping marker-plane points to
// normalised image points.
func homography(obj [4]r3.Vector, img [4]Point) ([9]float64, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := obj[i].X, obj[i].Y
		x, y := img[i].X, img[i].Y
		a.SetRow(2*i, []float64{X, Y, 1, 0, 0, 0, -x * X, -x * Y})
		a.SetRow(2*i+1, []float64{0, 0, 0, X, Y, 1, -y * X, -y * Y})
		b.SetVec(2*i, x)
		b.SetVec(2*i+1, y)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return [9]float64{}, fmt.Errorf("%w: %v", ErrDegenerateCorners, err)
	}
	var h [9]float64
	for i := 0; i < 8; i++ {
		h[i] = sol.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// ProjectMarker returns the pixel corners of a marker of the given
// length placed at pose. It is the forward model PlanarEstimator inverts.
func ProjectMarker(pose posemath.Pose, markerLength float64, in camera.Intrinsics) Corners {
	var c Corners
	for i, p := range MarkerObjectPoints(markerLength) {
		u, v := in.Project(pose.Apply(p))
		c[i] = Point{X: u, Y: v}
	}
	return c
}
