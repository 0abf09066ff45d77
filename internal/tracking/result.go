package tracking

import (
	"encoding/json"
	"time"

	"github.com/banshee-data/markertrack/internal/posemath"
)

// PoseFields is the fused pose on the wire: the translation and the
// right, up and forward basis vectors (rotation matrix columns).
type PoseFields struct {
	TranslationX     float64 `json:"translation_x"`
	TranslationY     float64 `json:"translation_y"`
	TranslationZ     float64 `json:"translation_z"`
	RotationRightX   float64 `json:"rotation_right_x"`
	RotationRightY   float64 `json:"rotation_right_y"`
	RotationRightZ   float64 `json:"rotation_right_z"`
	RotationUpX      float64 `json:"rotation_up_x"`
	RotationUpY      float64 `json:"rotation_up_y"`
	RotationUpZ      float64 `json:"rotation_up_z"`
	RotationForwardX float64 `json:"rotation_forward_x"`
	RotationForwardY float64 `json:"rotation_forward_y"`
	RotationForwardZ float64 `json:"rotation_forward_z"`
}

// NewPoseFields flattens a pose for the wire.
func NewPoseFields(p posemath.Pose) *PoseFields {
	r, t := p.Decompose()
	right, up, fwd := r.Column(0), r.Column(1), r.Column(2)
	return &PoseFields{
		TranslationX: t.X, TranslationY: t.Y, TranslationZ: t.Z,
		RotationRightX: right.X, RotationRightY: right.Y, RotationRightZ: right.Z,
		RotationUpX: up.X, RotationUpY: up.Y, RotationUpZ: up.Z,
		RotationForwardX: fwd.X, RotationForwardY: fwd.Y, RotationForwardZ: fwd.Z,
	}
}

// Pose rebuilds the transform from the wire fields.
func (f PoseFields) Pose() posemath.Pose {
	return posemath.Pose{
		f.RotationRightX, f.RotationUpX, f.RotationForwardX, f.TranslationX,
		f.RotationRightY, f.RotationUpY, f.RotationForwardY, f.TranslationY,
		f.RotationRightZ, f.RotationUpZ, f.RotationForwardZ, f.TranslationZ,
		0, 0, 0, 1,
	}
}

// FrameResult is the per-frame output. Pose fields are present when
// Success is true, and on misses only when predictions are published, in
// which case Predicted is set.
type FrameResult struct {
	Timestamp float64 `json:"timestamp"`
	Success   bool    `json:"success"`
	Predicted bool    `json:"predicted,omitempty"`
	*PoseFields

	// Raw is the unfiltered pose, when there was one.
	Raw *posemath.Pose `json:"-"`
	// Fused is the filter output for this frame.
	Fused posemath.Pose `json:"-"`
	// Markers lists the marker IDs seen this frame.
	Markers []int `json:"-"`
}

// Seconds converts a time to the wire timestamp.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Encode renders the result as one JSON object with no trailing newline.
func (r FrameResult) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeFrameResult parses a wire record.
func DecodeFrameResult(data []byte) (FrameResult, error) {
	var r FrameResult
	err := json.Unmarshal(data, &r)
	return r, err
}
