package calib

import (
	"context"
	"errors"
	"log"
	"testing"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/fsutil"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/vision"
	"github.com/golang/geo/r3"
)

// fakeFinder reports a board on frames whose Image is true.
type fakeFinder struct{}

func (fakeFinder) FindChessboard(frame vision.Frame, cols, rows int) ([]vision.Point, bool, error) {
	if ok, _ := frame.Image.(bool); !ok {
		return nil, false, nil
	}
	return make([]vision.Point, cols*rows), true, nil
}

type fakeSolver struct {
	views  int
	points int
	width  int
}

func (s *fakeSolver) Solve(object []r3.Vector, views [][]vision.Point, width, height int) (camera.Intrinsics, float64, error) {
	s.views = len(views)
	s.points = len(object)
	s.width = width
	in, err := camera.NewIntrinsics(600, 600, float64(width)/2, float64(height)/2)
	return in, 0.25, err
}

func TestBoardObjectPoints(t *testing.T) {
	b := Board{Cols: 3, Rows: 2, SquareSize: 2.5}
	pts := b.ObjectPoints()
	if len(pts) != 6 {
		t.Fatalf("len = %d, want 6", len(pts))
	}
	if pts[4] != (r3.Vector{X: 2.5, Y: 2.5}) {
		t.Errorf("pts[4] = %v", pts[4])
	}
}

func TestCollectorRequiresMinFrames(t *testing.T) {
	c := NewCollector(DefaultBoard, 3, fakeFinder{})
	for i := 0; i < 2; i++ {
		used, err := c.Add(vision.Frame{Image: true, Width: 640, Height: 480})
		if err != nil || !used {
			t.Fatalf("Add = %v, %v", used, err)
		}
	}
	if used, _ := c.Add(vision.Frame{Image: false}); used {
		t.Error("frame without a board should not be used")
	}
	if _, err := c.Calibrate(&fakeSolver{}); !errors.Is(err, ErrNotEnoughFrames) {
		t.Errorf("Calibrate error = %v, want ErrNotEnoughFrames", err)
	}
}

func TestSessionCalibratesAndSaves(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	var frames []vision.Frame
	for i := 0; i < 8; i++ {
		frames = append(frames, vision.Frame{Index: i, Image: i%2 == 0, Width: 640, Height: 480})
	}
	store := &camera.Store{Root: "cal", FS: fsutil.NewMemoryFileSystem()}
	solver := &fakeSolver{}
	s := &Session{
		Source:    &vision.SliceSource{Frames: frames},
		Collector: NewCollector(DefaultBoard, 4, fakeFinder{}),
		Solver:    solver,
		Store:     store,
		Device:    "0",
	}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Frames != 4 || solver.views != 4 || solver.points != 54 || solver.width != 640 {
		t.Errorf("unexpected result %+v solver %+v", res, solver)
	}
	if _, err := store.Load("0"); err != nil {
		t.Errorf("intrinsics not saved: %v", err)
	}
}

func TestSessionSourceEndsEarly(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	s := &Session{
		Source:    &vision.SliceSource{Frames: []vision.Frame{{Image: true}}},
		Collector: NewCollector(DefaultBoard, 50, fakeFinder{}),
		Solver:    &fakeSolver{},
		Store:     &camera.Store{Root: "cal", FS: fsutil.NewMemoryFileSystem()},
		Device:    "0",
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrNotEnoughFrames) {
		t.Errorf("Run error = %v, want ErrNotEnoughFrames", err)
	}
}
