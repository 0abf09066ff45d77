package fusion

import (
	"fmt"
	"math"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

const (
	// StateDim is the length of the state vector.
	StateDim = 18
	// MeasDim is the length of the measurement vector.
	MeasDim = 6

	groupSize = 3
)

// Default noise and timing parameters.
const (
	DefaultFrameRate         = 30.0
	DefaultProcessNoise      = 1e-5
	DefaultMeasurementNoise  = 1e-4
	DefaultInitialCovariance = 1.0
)

// Params configures a Model.
type Params struct {
	Timestep          float64 // seconds between frames
	ProcessNoise      float64 // diagonal of Q
	MeasurementNoise  float64 // diagonal of R
	InitialCovariance float64 // diagonal of the initial P
}

// DefaultParams returns the defaults for a camera running at frameRate.
func DefaultParams(frameRate float64) Params {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return Params{
		Timestep:          1 / frameRate,
		ProcessNoise:      DefaultProcessNoise,
		MeasurementNoise:  DefaultMeasurementNoise,
		InitialCovariance: DefaultInitialCovariance,
	}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if !(p.Timestep > 0) {
		return fmt.Errorf("timestep must be positive, got %g", p.Timestep)
	}
	if !(p.ProcessNoise > 0) || !(p.MeasurementNoise > 0) || !(p.InitialCovariance > 0) {
		return fmt.Errorf("noise terms must be positive, got q=%g r=%g p0=%g",
			p.ProcessNoise, p.MeasurementNoise, p.InitialCovariance)
	}
	return nil
}

// Model holds the fixed matrices of the filter. It is immutable after
// construction and safe to share.
type Model struct {
	params Params
	f      *mat.Dense // transition
	h      *mat.Dense // measurement
	q      *mat.Dense // process noise
	r      *mat.Dense // measurement noise
}

// NewModel builds the constant-acceleration model. Each group's block of
// the transition matrix is
//
//	[1  dt  dt²/2]
//	[0   1  dt   ]
//	[0   0  1    ]
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dt := p.Timestep
	f := mat.NewDense(StateDim, StateDim, nil)
	for g := 0; g < StateDim; g += groupSize {
		f.Set(g, g, 1)
		f.Set(g, g+1, dt)
		f.Set(g, g+2, 0.5*dt*dt)
		f.Set(g+1, g+1, 1)
		f.Set(g+1, g+2, dt)
		f.Set(g+2, g+2, 1)
	}

	h := mat.NewDense(MeasDim, StateDim, nil)
	for i := 0; i < MeasDim; i++ {
		h.Set(i, i*groupSize, 1)
	}

	return &Model{
		params: p,
		f:      f,
		h:      h,
		q:      scaledIdentity(StateDim, p.ProcessNoise),
		r:      scaledIdentity(MeasDim, p.MeasurementNoise),
	}, nil
}

// Params returns the parameters the model was built with.
func (m *Model) Params() Params { return m.params }

func scaledIdentity(n int, v float64) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, v)
	}
	return d
}

// State is the filter's belief. Step never modifies a State it is given.
type State struct {
	X *mat.VecDense
	P *mat.Dense
}

// Initial returns the zero state with P = InitialCovariance·I.
func (m *Model) Initial() State {
	return State{
		X: mat.NewVecDense(StateDim, nil),
		P: scaledIdentity(StateDim, m.params.InitialCovariance),
	}
}

// Measurement is an observed position and XYZ Euler orientation.
type Measurement struct {
	Position r3.Vector
	Euler    r3.Vector
}

// MeasurementFromPose converts a pose into the filter's measurement space.
func MeasurementFromPose(p posemath.Pose) Measurement {
	x, y, z := posemath.EulerFromRotation(p.Rotation())
	return Measurement{Position: p.Translation(), Euler: r3.Vector{X: x, Y: y, Z: z}}
}

func (z Measurement) vec() *mat.VecDense {
	return mat.NewVecDense(MeasDim, []float64{
		z.Position.X, z.Position.Y, z.Position.Z,
		z.Euler.X, z.Euler.Y, z.Euler.Z,
	})
}

// Estimate is the filter output for one frame.
type Estimate struct {
	Position  r3.Vector
	Euler     r3.Vector
	Velocity  r3.Vector
	Corrected bool
}

// Pose converts the estimate back into a homogeneous transform.
func (e Estimate) Pose() posemath.Pose {
	return posemath.ToHomogeneous(posemath.RotationFromEuler(e.Euler.X, e.Euler.Y, e.Euler.Z), e.Position)
}

// Estimate reads the position and orientation out of a state.
func (s State) Estimate() Estimate {
	at := func(g int) float64 { return s.X.AtVec(g * groupSize) }
	return Estimate{
		Position: r3.Vector{X: at(0), Y: at(1), Z: at(2)},
		Euler:    r3.Vector{X: at(3), Y: at(4), Z: at(5)},
		Velocity: r3.Vector{X: s.X.AtVec(1), Y: s.X.AtVec(4), Z: s.X.AtVec(7)},
	}
}

// Step advances prior by one timestep and, when z is non-nil, corrects it
// with the measurement. A singular innovation covariance skips the
// correction for this frame. Orientation residuals and the orientation
// state are kept in (-π, π]. A non-finite result resets to Initial.
func (m *Model) Step(prior State, z *Measurement) (State, Estimate) {
	// Predict: x = F·x, P = F·P·Fᵀ + Q
	var x mat.VecDense
	x.MulVec(m.f, prior.X)

	var fp, p mat.Dense
	fp.Mul(m.f, prior.P)
	p.Mul(&fp, m.f.T())
	p.Add(&p, m.q)

	corrected := false
	if z != nil {
		corrected = m.correct(&x, &p, z.vec())
	}

	for g := 3; g < MeasDim; g++ {
		i := g * groupSize
		x.SetVec(i, wrapAngle(x.AtVec(i)))
	}

	next := State{X: &x, P: &p}
	if !next.finite() {
		monitoring.Logf("[fusion] non-finite state, resetting filter")
		next = m.Initial()
		corrected = false
	}
	est := next.Estimate()
	est.Corrected = corrected
	return next, est
}

// correct applies the Kalman update in place and reports whether it ran.
func (m *Model) correct(x *mat.VecDense, p *mat.Dense, z *mat.VecDense) bool {
	// Innovation y = z - H·x
	var hx, y mat.VecDense
	hx.MulVec(m.h, x)
	y.SubVec(z, &hx)
	// Euler residuals are compared the short way round the circle.
	for i := 3; i < MeasDim; i++ {
		y.SetVec(i, wrapAngle(y.AtVec(i)))
	}

	// S = H·P·Hᵀ + R
	var hp, s mat.Dense
	hp.Mul(m.h, p)
	s.Mul(&hp, m.h.T())
	s.Add(&s, m.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		monitoring.Logf("[fusion] singular innovation covariance, skipping correction: %v", err)
		return false
	}

	// K = P·Hᵀ·S⁻¹
	var pht, k mat.Dense
	pht.Mul(p, m.h.T())
	k.Mul(&pht, &sInv)

	var ky mat.VecDense
	ky.MulVec(&k, &y)
	x.AddVec(x, &ky)

	// P = (I - K·H)·P
	var kh, ikh mat.Dense
	kh.Mul(&k, m.h)
	ikh.Sub(scaledIdentity(StateDim, 1), &kh)
	var np mat.Dense
	np.Mul(&ikh, p)
	p.CloneFrom(&np)
	return true
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func (s State) finite() bool {
	for i := 0; i < s.X.Len(); i++ {
		v := s.X.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	r, c := s.P.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := s.P.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
