// Package calib collects chessboard views and turns them into camera
// intrinsics.
package calib

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/vision"
	"github.com/golang/geo/r3"
)

// ErrNotEnoughFrames is returned by Calibrate before MinFrames views
// have been collected.
var ErrNotEnoughFrames = errors.New("not enough chessboard frames")

// Finder locates the inner corners of a chessboard in a frame.
type Finder interface {
	FindChessboard(frame vision.Frame, cols, rows int) ([]vision.Point, bool, error)
}

// Solver estimates intrinsics from repeated views of the same planar
// target and returns the RMS reprojection error.
type Solver interface {
	Solve(object []r3.Vector, views [][]vision.Point, width, height int) (camera.Intrinsics, float64, error)
}

// Board describes the calibration target by its inner-corner grid.
type Board struct {
	Cols       int
	Rows       int
	SquareSize float64
}

// DefaultBoard is a 9x6 inner-corner board with unit squares.
var DefaultBoard = Board{Cols: 9, Rows: 6, SquareSize: 1}

// ObjectPoints lays the board's inner corners out on the z = 0 plane,
// row by row, matching the order OpenCV reports detected corners.
func (b Board) ObjectPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, b.Cols*b.Rows)
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			pts = append(pts, r3.Vector{X: float64(c) * b.SquareSize, Y: float64(r) * b.SquareSize})
		}
	}
	return pts
}

// Result is a finished calibration.
type Result struct {
	Intrinsics camera.Intrinsics
	RMS        float64
	Frames     int
}

// Collector accumulates chessboard views from a stream of frames.
type Collector struct {
	Board     Board
	MinFrames int
	Finder    Finder

	views  [][]vision.Point
	width  int
	height int
}

// NewCollector returns a collector requiring minFrames usable views.
func NewCollector(board Board, minFrames int, finder Finder) *Collector {
	return &Collector{Board: board, MinFrames: minFrames, Finder: finder}
}

// Add looks for the board in frame and keeps the view when every inner
// corner was found. It reports whether the frame was used.
func (c *Collector) Add(frame vision.Frame) (bool, error) {
	pts, found, err := c.Finder.FindChessboard(frame, c.Board.Cols, c.Board.Rows)
	if err != nil {
		return false, err
	}
	if !found || len(pts) != c.Board.Cols*c.Board.Rows {
		return false, nil
	}
	if c.width == 0 {
		c.width, c.height = frame.Width, frame.Height
	}
	c.views = append(c.views, pts)
	return true, nil
}

// Count is the number of views collected so far.
func (c *Collector) Count() int { return len(c.views) }

// Ready reports whether enough views have been collected.
func (c *Collector) Ready() bool { return len(c.views) >= c.MinFrames }

// Calibrate solves for intrinsics from the collected views.
func (c *Collector) Calibrate(solver Solver) (Result, error) {
	if !c.Ready() {
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughFrames, len(c.views), c.MinFrames)
	}
	in, rms, err := solver.Solve(c.Board.ObjectPoints(), c.views, c.width, c.height)
	if err != nil {
		return Result{}, fmt.Errorf("calibration solve failed: %w", err)
	}
	return Result{Intrinsics: in, RMS: rms, Frames: len(c.views)}, nil
}

// Session drives a collector from a frame source and saves the result.
type Session struct {
	Source    vision.FrameSource
	Collector *Collector
	Solver    Solver
	Store     *camera.Store
	Device    string
	// Display, when set, previews frames while collecting.
	Display vision.Display
}

// Run collects frames until the collector is ready, then calibrates and
// stores the intrinsics for the session's device.
func (s *Session) Run(ctx context.Context) (Result, error) {
	for !s.Collector.Ready() {
		frame, err := s.Source.Read(ctx)
		if err != nil {
			if errors.Is(err, vision.ErrEndOfStream) {
				return Result{}, fmt.Errorf("%w: source ended after %d", ErrNotEnoughFrames, s.Collector.Count())
			}
			return Result{}, err
		}
		used, err := s.Collector.Add(frame)
		if s.Display != nil {
			if derr := s.Display.Show(frame, nil); derr != nil {
				monitoring.Logf("[calib] preview failed: %v", derr)
			}
		}
		vision.ReleaseFrame(frame)
		if err != nil {
			return Result{}, err
		}
		if used {
			monitoring.Logf("[calib] chessboard frame %d/%d", s.Collector.Count(), s.Collector.MinFrames)
		}
	}

	res, err := s.Collector.Calibrate(s.Solver)
	if err != nil {
		return Result{}, err
	}
	if err := s.Store.Save(s.Device, res.Intrinsics); err != nil {
		return Result{}, err
	}
	monitoring.Logf("[calib] saved intrinsics for %q from %d frames (rms %.4f)", s.Device, res.Frames, res.RMS)
	return res, nil
}
