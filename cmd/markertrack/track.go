package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/config"
	"github.com/banshee-data/markertrack/internal/db"
	"github.com/banshee-data/markertrack/internal/fusion"
	"github.com/banshee-data/markertrack/internal/monitor"
	"github.com/banshee-data/markertrack/internal/publish"
	"github.com/banshee-data/markertrack/internal/queue"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/tracking"
	"github.com/banshee-data/markertrack/internal/vision"
)

type rigLoader interface {
	LoadRig(ctx context.Context, id string) (rig.Config, error)
}

// detectionSettings builds the tracker settings for cfg, loading the rig
// in rig mode.
func detectionSettings(ctx context.Context, cfg *config.TrackingConfig, rigs rigLoader) (tracking.DetectionSettings, error) {
	switch cfg.GetDetectionMode() {
	case config.ModeSingle:
		id := cfg.GetMarkerID()
		if id == config.AnyMarkerID {
			id = vision.AnyMarker
		}
		return tracking.SingleMarkerSettings{Length: cfg.GetMarkerLength(), MarkerID: id}, nil
	case config.ModeRig:
		rc, err := rigs.LoadRig(ctx, cfg.GetRigID())
		if err != nil {
			return nil, err
		}
		return tracking.RigSettings{Rig: rc}, nil
	default:
		return nil, fmt.Errorf("unknown detection mode %q", cfg.GetDetectionMode())
	}
}

func runTrack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	configPath := fs.String("config", "tracking.json", "Tracking config file (missing file uses defaults)")
	debugListen := fs.String("debug-listen", "", "Serve the pose chart, status and database admin pages on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadTrackingConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if common.window {
		cfg.ShowWindow = &common.window
	}

	database, err := common.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	intrinsics, err := common.intrinsicsStore().Load(cfg.GetDevice())
	if errors.Is(err, camera.ErrNoIntrinsics) {
		return fmt.Errorf("%w: run 'markertrack calibrate-camera' for device %q first", err, cfg.GetDevice())
	}
	if err != nil {
		return err
	}

	settings, err := detectionSettings(ctx, cfg, database)
	if err != nil {
		return err
	}
	model, err := fusion.NewModel(cfg.FilterParams())
	if err != nil {
		return err
	}
	tracker, err := tracking.NewTracker(settings, model, tracking.WithPredictions(cfg.GetPublishPredictions()))
	if err != nil {
		return err
	}

	src, det, err := common.openSource(cfg.GetDevice(), cfg.GetDictionary())
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := publish.Open(cfg.SinkOptions())
	if err != nil {
		return err
	}
	defer sink.Close()

	out := queue.NewLatest[[]byte]()
	history := monitor.NewHistory(0)
	loop := &tracking.Loop{
		Source:     src,
		Detector:   det,
		Estimator:  vision.PlanarEstimator{},
		Intrinsics: intrinsics,
		Tracker:    tracker,
		Out:        out,
		Observer:   history.Observe,
	}
	if cfg.GetShowWindow() {
		if display := common.openDisplay("markertrack"); display != nil {
			defer display.Close()
			loop.Display = display
		}
	}
	pub := &publish.Publisher{Queue: out, Sink: sink}

	session, err := database.StartSession(ctx, db.TrackingSession{
		Mode:   tracking.Mode(settings),
		RigID:  cfg.GetRigID(),
		Device: cfg.GetDevice(),
		Sink:   cfg.GetSink(),
	})
	if err != nil {
		return err
	}
	log.Printf("session %s: tracking in %s mode, publishing over %s", session.ID, session.Mode, session.Sink)

	if *debugListen != "" {
		ws := monitor.NewWebServer(history, func() monitor.Stats {
			frames, posed := loop.Counts()
			queued, dropped := out.Stats()
			sent, failed := pub.Stats()
			return monitor.Stats{
				Mode: session.Mode, RigID: session.RigID, Sink: session.Sink,
				Frames: frames, FramesPosed: posed,
				Queued: queued, QueueDropped: dropped,
				Published: sent, PublishFailed: failed,
			}
		})
		if err := database.AttachAdminRoutes(ws.Mux()); err != nil {
			return err
		}
		go func() {
			if err := ws.Run(ctx, *debugListen); err != nil {
				log.Printf("debug server stopped: %v", err)
			}
		}()
	}

	runErr := tracking.RunSession(ctx, loop, pub)

	frames, posed := loop.Counts()
	_, dropped := out.Stats()
	if err := database.FinishSession(context.Background(), session.ID, time.Now(), frames, posed, dropped); err != nil {
		log.Printf("failed to record session end: %v", err)
	}
	return runErr
}
