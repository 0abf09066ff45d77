package vision

import (
	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
)

// Observe estimates a pose for every detection. Detections whose pose
// cannot be recovered are dropped for this frame.
func Observe(dets []Detection, est PoseEstimator, markerLength float64, in camera.Intrinsics) []Observation {
	if len(dets) == 0 {
		return nil
	}
	out := make([]Observation, 0, len(dets))
	for _, d := range dets {
		rvec, tvec, err := est.EstimatePose(d.Corners, markerLength, in)
		if err != nil {
			monitoring.Logf("[vision] marker %d: pose estimation failed: %v", d.ID, err)
			continue
		}
		out = append(out, Observation{
			ID:      d.ID,
			Corners: d.Corners,
			Pose:    posemath.FromVectors(rvec, tvec),
		})
	}
	return out
}
