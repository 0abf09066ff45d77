package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/camera/calib"
	"github.com/banshee-data/markertrack/internal/config"
	"github.com/banshee-data/markertrack/internal/vision"
)

func runCalibrateCamera(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calibrate-camera", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	configPath := fs.String("config", "calibration.json", "Calibration config file (missing file uses defaults)")
	device := fs.String("device", "0", "Camera device to calibrate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadCalibrationConfig(*configPath)
	if err != nil {
		return err
	}
	if common.replay != "" {
		return fmt.Errorf("chessboard calibration needs live images: -replay is not supported")
	}
	src, err := vision.OpenCamera(*device)
	if err != nil {
		return fmt.Errorf("failed to open camera %q: %w", *device, err)
	}
	defer src.Close()

	board := cfg.Board()
	finder := vision.OpenCVChessboard{}
	session := &calib.Session{
		Source:    src,
		Collector: calib.NewCollector(board, cfg.GetMinFrames(), finder),
		Solver:    finder,
		Store:     common.intrinsicsStore(),
		Device:    *device,
	}
	if display := common.openDisplay("calibration"); display != nil {
		defer display.Close()
		session.Display = display
	}

	log.Printf("calibrating device %s: show a %dx%d chessboard from %d different angles",
		*device, board.Cols, board.Rows, cfg.GetMinFrames())
	res, err := session.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("calibration saved: fx=%.2f fy=%.2f cx=%.2f cy=%.2f rms=%.4f",
		res.Intrinsics.Fx(), res.Intrinsics.Fy(), res.Intrinsics.Cx(), res.Intrinsics.Cy(), res.RMS)
	return nil
}

func runDeleteCalibration(args []string) error {
	fs := flag.NewFlagSet("delete-calibration", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	device := fs.String("device", "0", "Camera device whose intrinsics to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store := common.intrinsicsStore()
	if !store.Has(*device) {
		return fmt.Errorf("%w for device %q", camera.ErrNoIntrinsics, *device)
	}
	if err := store.Delete(*device); err != nil {
		return err
	}
	log.Printf("deleted intrinsics for device %s", *device)
	return nil
}
