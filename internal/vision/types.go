package vision

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/golang/geo/r3"
)

// AnyMarker selects the nearest visible marker in single-marker mode.
const AnyMarker = -1

// ErrEndOfStream is returned by a FrameSource with no more frames.
var ErrEndOfStream = errors.New("end of frame stream")

// ErrEmptyFrame is returned by a FrameSource that produced no image on
// this read, as webcams do while warming up. Later reads may succeed.
var ErrEmptyFrame = errors.New("empty frame")

// Point is a pixel position.
type Point struct {
	X, Y float64
}

// Corners holds a marker's four corners clockwise from top-left, in the
// order OpenCV's ArUco detector reports them.
type Corners [4]Point

// Center returns the mean of the four corners.
func (c Corners) Center() Point {
	var p Point
	for _, q := range c {
		p.X += q.X / 4
		p.Y += q.Y / 4
	}
	return p
}

// Detection is one marker found in a frame.
type Detection struct {
	ID      int     `json:"id"`
	Corners Corners `json:"corners"`
}

// Observation is a detection with its estimated camera-frame pose.
type Observation struct {
	ID      int
	Corners Corners
	Pose    posemath.Pose
}

// Depth is the observation's distance along the camera axis.
func (o Observation) Depth() float64 {
	return o.Pose.Translation().Z
}

// Frame is one captured image. Image carries the backend's native
// representation and is only meaningful to the Detector that matches the
// FrameSource.
type Frame struct {
	Index    int
	Captured time.Time
	Width    int
	Height   int
	Image    any
}

// FrameSource yields frames until the context ends or the source is
// exhausted.
type FrameSource interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Detector finds markers in a frame.
type Detector interface {
	Detect(frame Frame) ([]Detection, error)
}

// PoseEstimator recovers a marker pose from its corners. It reports the
// rotation as a Rodrigues vector with the translation in the same units
// as markerLength.
type PoseEstimator interface {
	EstimatePose(corners Corners, markerLength float64, in camera.Intrinsics) (rvec, tvec r3.Vector, err error)
}

// Display shows annotated frames and reports operator key presses.
type Display interface {
	Show(frame Frame, observations []Observation) error
	// Key returns the last key pressed, or -1.
	Key() int
	Close() error
}
