package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/db"
	"github.com/banshee-data/markertrack/internal/vision"
)

// commonFlags are shared by the commands that touch the camera or the
// database.
type commonFlags struct {
	dbPath        string
	intrinsicsDir string
	replay        string
	replayPace    time.Duration
	window        bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.dbPath, "db", "markertrack.db", "Path to the sqlite database")
	fs.StringVar(&c.intrinsicsDir, "intrinsics-dir", "device_parameters", "Directory holding per-device camera intrinsics")
	fs.StringVar(&c.replay, "replay", "", "Replay recorded detections from a JSON lines file instead of a camera")
	fs.DurationVar(&c.replayPace, "replay-pace", 0, "Delay between replayed frames")
	fs.BoolVar(&c.window, "window", false, "Show a preview window (requires -tags=gocv)")
}

func (c *commonFlags) openDB() (*db.DB, error) {
	return db.NewDB(c.dbPath)
}

func (c *commonFlags) intrinsicsStore() *camera.Store {
	return camera.NewStore(c.intrinsicsDir)
}

// openSource opens the replay file when one is given, otherwise the
// camera device with an ArUco detector.
func (c *commonFlags) openSource(device, dictionary string) (vision.FrameSource, vision.Detector, error) {
	if c.replay != "" {
		src, err := vision.OpenReplay(c.replay, c.replayPace)
		if err != nil {
			return nil, nil, err
		}
		return src, vision.ReplayDetector{}, nil
	}
	src, err := vision.OpenCamera(device)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open camera %q: %w", device, err)
	}
	det, err := vision.NewArucoDetector(dictionary)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return src, det, nil
}

func (c *commonFlags) openDisplay(title string) vision.Display {
	if !c.window {
		return nil
	}
	w, err := vision.NewWindow(title)
	if err != nil {
		log.Printf("preview disabled: %v", err)
		return nil
	}
	return w
}

// enterPresses signals once per line read from r until ctx ends. The
// channel is never closed so an exhausted reader stops confirming.
func enterPresses(ctx context.Context, r io.Reader) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
