package mapping

import (
	"errors"
	"math"

	"github.com/banshee-data/markertrack/internal/posemath"
)

// ErrNoSamples is returned by BestFit for an empty leg.
var ErrNoSamples = errors.New("mapping: no samples")

// Sample is one confirmed capture of a marker pair. OtherToTarget is
// inv(Target) · Other, the pose of the other marker in the target's
// frame.
type Sample struct {
	Target        posemath.Pose
	Other         posemath.Pose
	OtherToTarget posemath.Pose
}

// NewSample derives the relative transform from the two observed poses.
func NewSample(target, other posemath.Pose) (Sample, error) {
	inv, err := target.Inverse()
	if err != nil {
		return Sample{}, err
	}
	return Sample{Target: target, Other: other, OtherToTarget: inv.Mul(other)}, nil
}

// Fit is the outcome of BestFit.
type Fit struct {
	Transform posemath.Pose
	// Index is the winning sample.
	Index int
	// Error is the winner's mean reconstruction error.
	Error float64
	// Errors holds every candidate's mean error, indexed like the samples.
	Errors []float64
}

// BestFit picks the sample whose OtherToTarget best explains all other
// samples. Each candidate T reconstructs every other sample's target as
// Other · inv(T); the squared element error against the recorded Target
// is averaged over those samples and the lowest mean wins. Picking a
// measured transform keeps the rotation orthonormal, which averaging
// matrices would not.
func BestFit(samples []Sample) (Fit, error) {
	if len(samples) == 0 {
		return Fit{}, ErrNoSamples
	}
	fit := Fit{Index: -1, Error: math.Inf(1), Errors: make([]float64, len(samples))}
	for i, cand := range samples {
		inv, err := cand.OtherToTarget.Inverse()
		if err != nil {
			fit.Errors[i] = math.Inf(1)
			continue
		}
		var sum float64
		var n int
		for j, s := range samples {
			if j == i {
				continue
			}
			sum += posemath.SquaredDistance(s.Other.Mul(inv), s.Target)
			n++
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		fit.Errors[i] = mean
		if mean < fit.Error {
			fit.Index, fit.Error, fit.Transform = i, mean, cand.OtherToTarget
		}
	}
	if fit.Index < 0 {
		return fit, posemath.ErrSingular
	}
	return fit, nil
}
