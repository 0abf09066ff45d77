//go:build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"
)

// OpenCVAvailable reports whether this binary was built with OpenCV.
const OpenCVAvailable = true

// CameraSource captures frames from a local camera or stream URL.
type CameraSource struct {
	capture *gocv.VideoCapture
	index   int
}

// OpenCamera opens a capture device. A numeric device is treated as a
// camera index, anything else as a file path or URL.
func OpenCamera(device string) (*CameraSource, error) {
	var target interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		target = n
	}
	c, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %q: %w", device, err)
	}
	return &CameraSource{capture: c}, nil
}

// Read implements FrameSource. The returned frame owns a gocv.Mat that
// the caller must release with ReleaseFrame.
func (s *CameraSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img := gocv.NewMat()
	if ok := s.capture.Read(&img); !ok {
		img.Close()
		return Frame{}, ErrEndOfStream
	}
	if img.Empty() {
		img.Close()
		return Frame{}, ErrEmptyFrame
	}
	f := Frame{
		Index:    s.index,
		Captured: time.Now(),
		Width:    img.Cols(),
		Height:   img.Rows(),
		Image:    img,
	}
	s.index++
	return f, nil
}

// Close implements FrameSource.
func (s *CameraSource) Close() error {
	return s.capture.Close()
}

// ReleaseFrame frees native memory held by frame, if any.
func ReleaseFrame(frame Frame) {
	if m, ok := frame.Image.(gocv.Mat); ok {
		m.Close()
	}
}

func frameMat(frame Frame) (gocv.Mat, error) {
	m, ok := frame.Image.(gocv.Mat)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("frame image is %T, not an OpenCV matrix", frame.Image)
	}
	return m, nil
}

var arucoDictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":   gocv.ArucoDict4x4_50,
	"4x4_100":  gocv.ArucoDict4x4_100,
	"4x4_250":  gocv.ArucoDict4x4_250,
	"4x4_1000": gocv.ArucoDict4x4_1000,
	"5x5_50":   gocv.ArucoDict5x5_50,
	"5x5_100":  gocv.ArucoDict5x5_100,
	"5x5_250":  gocv.ArucoDict5x5_250,
	"5x5_1000": gocv.ArucoDict5x5_1000,
	"6x6_50":   gocv.ArucoDict6x6_50,
	"6x6_100":  gocv.ArucoDict6x6_100,
	"6x6_250":  gocv.ArucoDict6x6_250,
	"6x6_1000": gocv.ArucoDict6x6_1000,
}

// ArucoDetector finds ArUco markers with OpenCV.
type ArucoDetector struct {
	detector gocv.ArucoDetector
}

// NewArucoDetector builds a detector for a predefined dictionary name
// such as "4x4_50".
func NewArucoDetector(dictionary string) (*ArucoDetector, error) {
	code, ok := arucoDictionaries[strings.ToLower(dictionary)]
	if !ok {
		return nil, fmt.Errorf("unknown ArUco dictionary %q", dictionary)
	}
	dict := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()
	return &ArucoDetector{detector: gocv.NewArucoDetectorWithParams(dict, params)}, nil
}

// Detect implements Detector.
func (d *ArucoDetector) Detect(frame Frame) ([]Detection, error) {
	img, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	corners, ids, _ := d.detector.DetectMarkers(img)
	out := make([]Detection, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		var c Corners
		for j, p := range corners[i] {
			c[j] = Point{X: float64(p.X), Y: float64(p.Y)}
		}
		out = append(out, Detection{ID: id, Corners: c})
	}
	return out, nil
}

// Close releases the native detector.
func (d *ArucoDetector) Close() error {
	d.detector.Close()
	return nil
}

// Window is a preview window that outlines detected markers.
type Window struct {
	window *gocv.Window
	key    int
}

// NewWindow opens a preview window.
func NewWindow(title string) (*Window, error) {
	return &Window{window: gocv.NewWindow(title), key: -1}, nil
}

// Show implements Display.
func (w *Window) Show(frame Frame, observations []Observation) error {
	img, err := frameMat(frame)
	if err != nil {
		return err
	}
	green := color.RGBA{G: 255, A: 255}
	for _, o := range observations {
		pts := make([]image.Point, 0, 4)
		for _, c := range o.Corners {
			pts = append(pts, image.Pt(int(c.X), int(c.Y)))
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(&img, pv, true, green, 2)
		pv.Close()
		center := o.Corners.Center()
		gocv.PutText(&img, strconv.Itoa(o.ID), image.Pt(int(center.X), int(center.Y)),
			gocv.FontHersheyPlain, 1.5, green, 2)
	}
	w.window.IMShow(img)
	w.key = w.window.WaitKey(1)
	return nil
}

// Key implements Display.
func (w *Window) Key() int { return w.key }

// Close implements Display.
func (w *Window) Close() error { return w.window.Close() }

// OpenCVChessboard finds chessboard corners and solves for intrinsics.
type OpenCVChessboard struct{}

// FindChessboard returns the refined inner corners of a cols x rows
// board, or false when the board is not fully visible.
func (OpenCVChessboard) FindChessboard(frame Frame, cols, rows int) ([]Point, bool, error) {
	img, err := frameMat(frame)
	if err != nil {
		return nil, false, err
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()
	size := image.Pt(cols, rows)
	if !gocv.FindChessboardCorners(gray, size, &corners, gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage) {
		return nil, false, nil
	}
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 30, 0.001)
	gocv.CornerSubPix(gray, &corners, image.Pt(11, 11), image.Pt(-1, -1), criteria)

	pts := make([]Point, 0, cols*rows)
	for i := 0; i < corners.Rows(); i++ {
		v := corners.GetVecfAt(i, 0)
		pts = append(pts, Point{X: float64(v[0]), Y: float64(v[1])})
	}
	return pts, true, nil
}

// Solve runs OpenCV's camera calibration over the collected views and
// returns the intrinsics with the RMS reprojection error.
func (OpenCVChessboard) Solve(object []r3.Vector, views [][]Point, width, height int) (camera.Intrinsics, float64, error) {
	objPts := make([]gocv.Point3f, len(object))
	for i, p := range object {
		objPts[i] = gocv.Point3f{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()
	for _, view := range views {
		ov := gocv.NewPoint3fVectorFromPoints(objPts)
		objectPoints.Append(ov)
		ov.Close()

		pts := make([]gocv.Point2f, len(view))
		for i, p := range view {
			pts[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
		}
		iv := gocv.NewPoint2fVectorFromPoints(pts)
		imagePoints.Append(iv)
		iv.Close()
	}

	k := gocv.NewMat()
	defer k.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objectPoints, imagePoints, image.Pt(width, height), &k, &dist, &rvecs, &tvecs, 0)

	coeffs := make([]float64, 0, 5)
	for i := 0; i < dist.Cols() && len(coeffs) < 5; i++ {
		coeffs = append(coeffs, dist.GetDoubleAt(0, i))
	}
	in, err := camera.NewIntrinsics(k.GetDoubleAt(0, 0), k.GetDoubleAt(1, 1), k.GetDoubleAt(0, 2), k.GetDoubleAt(1, 2), coeffs...)
	if err != nil {
		return camera.Intrinsics{}, rms, fmt.Errorf("calibration produced unusable intrinsics: %w", err)
	}
	return in, rms, nil
}
