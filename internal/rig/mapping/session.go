package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/vision"
)

// enterKey is the key code preview windows report for ENTER.
const enterKey = 13

// RigStore persists finished rig configurations.
type RigStore interface {
	SaveRig(ctx context.Context, cfg rig.Config) error
}

// Session runs an interactive mapping against a live or replayed source.
type Session struct {
	Builder    *Builder
	Source     vision.FrameSource
	Detector   vision.Detector
	Estimator  vision.PoseEstimator
	Intrinsics camera.Intrinsics
	Store      RigStore

	// Confirm delivers operator confirmations (ENTER on the terminal).
	Confirm <-chan struct{}
	// Display, when set, previews frames; ENTER in the window also confirms.
	Display vision.Display
	// ReportDir, when set, receives the error plot of the finished run.
	ReportDir string
}

// Run captures until every leg is saturated, then finishes the mapping
// and saves the rig.
func (s *Session) Run(ctx context.Context) (rig.Config, Report, error) {
	plan := s.Builder.Plan()
	monitoring.Logf("[mapping] run %s: rig %q up=%d sides=%v down=%d, %d samples per leg",
		s.Builder.RunID(), plan.RigID, plan.UpID, plan.SideIDs, plan.DownID, plan.MinSamples)

	var last Status = -1
	for !s.Builder.Done() {
		frame, err := s.Source.Read(ctx)
		if err != nil {
			if errors.Is(err, vision.ErrEndOfStream) {
				return rig.Config{}, Report{}, fmt.Errorf("source ended before mapping finished: %w", ErrIncomplete)
			}
			return rig.Config{}, Report{}, err
		}

		obs, err := s.observe(frame)
		if err != nil {
			vision.ReleaseFrame(frame)
			return rig.Config{}, Report{}, err
		}

		confirmed := false
		if s.Display != nil {
			if err := s.Display.Show(frame, obs); err != nil {
				monitoring.Logf("[mapping] preview failed: %v", err)
			} else if s.Display.Key() == enterKey {
				confirmed = true
			}
		}
		vision.ReleaseFrame(frame)

		select {
		case <-s.Confirm:
			confirmed = true
		default:
		}

		var p Prompt
		if confirmed {
			var ok bool
			p, ok = s.Builder.Capture(obs)
			if ok {
				monitoring.Logf("[mapping] %s", p)
			}
		} else {
			p = s.Builder.Inspect(obs)
		}
		if p.Status != last {
			monitoring.Logf("[mapping] %s", p)
			last = p.Status
		}
	}

	cfg, report, err := s.Builder.Finish()
	if err != nil {
		return rig.Config{}, Report{}, err
	}
	if err := s.Store.SaveRig(ctx, cfg); err != nil {
		return rig.Config{}, Report{}, fmt.Errorf("failed to save rig %q: %w", cfg.ID, err)
	}
	if s.ReportDir != "" {
		path, err := report.WritePlot(s.ReportDir)
		if err != nil {
			monitoring.Logf("[mapping] failed to write report: %v", err)
		} else {
			monitoring.Logf("[mapping] report written to %s", path)
		}
	}
	return cfg, report, nil
}

func (s *Session) observe(frame vision.Frame) ([]vision.Observation, error) {
	dets, err := s.Detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("marker detection failed: %w", err)
	}
	return vision.Observe(dets, s.Estimator, s.Builder.Plan().MarkerLength, s.Intrinsics), nil
}
