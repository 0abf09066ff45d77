//go:build !gocv

package vision

import (
	"context"
	"errors"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/golang/geo/r3"
)

// OpenCVAvailable reports whether this binary was built with OpenCV.
const OpenCVAvailable = false

var errNoOpenCV = errors.New("camera support not compiled in: rebuild with -tags=gocv")

// CameraSource is unavailable without OpenCV.
type CameraSource struct{}

// OpenCamera always fails in builds without OpenCV.
func OpenCamera(device string) (*CameraSource, error) { return nil, errNoOpenCV }

func (*CameraSource) Read(context.Context) (Frame, error) { return Frame{}, errNoOpenCV }
func (*CameraSource) Close() error                        { return nil }

// ReleaseFrame is a no-op without OpenCV.
func ReleaseFrame(Frame) {}

// ArucoDetector is unavailable without OpenCV.
type ArucoDetector struct{}

// NewArucoDetector always fails in builds without OpenCV.
func NewArucoDetector(dictionary string) (*ArucoDetector, error) { return nil, errNoOpenCV }

func (*ArucoDetector) Detect(Frame) ([]Detection, error) { return nil, errNoOpenCV }
func (*ArucoDetector) Close() error                      { return nil }

// Window is unavailable without OpenCV.
type Window struct{}

// NewWindow always fails in builds without OpenCV.
func NewWindow(title string) (*Window, error) { return nil, errNoOpenCV }

func (*Window) Show(Frame, []Observation) error { return errNoOpenCV }
func (*Window) Key() int                        { return -1 }
func (*Window) Close() error                    { return nil }

// OpenCVChessboard is unavailable without OpenCV.
type OpenCVChessboard struct{}

func (OpenCVChessboard) FindChessboard(Frame, int, int) ([]Point, bool, error) {
	return nil, false, errNoOpenCV
}

func (OpenCVChessboard) Solve([]r3.Vector, [][]Point, int, int) (camera.Intrinsics, float64, error) {
	return camera.Intrinsics{}, 0, errNoOpenCV
}
