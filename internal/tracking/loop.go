package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/queue"
	"github.com/banshee-data/markertrack/internal/timeutil"
	"github.com/banshee-data/markertrack/internal/vision"
	"golang.org/x/sync/errgroup"
)

// Loop is the tracking worker.
type Loop struct {
	Source     vision.FrameSource
	Detector   vision.Detector
	Estimator  vision.PoseEstimator
	Intrinsics camera.Intrinsics
	Tracker    *Tracker
	Out        *queue.Latest[[]byte]

	// Clock stamps frames whose source gave no capture time.
	Clock timeutil.Clock
	// Display, when set, previews each frame. ESC or q stops the loop.
	Display vision.Display
	// Observer, when set, sees every result after it is queued.
	Observer func(FrameResult)

	frames  atomic.Int64
	matched atomic.Int64
	preview *monitoring.Throttle
	empty   *monitoring.Throttle
}

// Counts reports frames processed and frames that produced a pose.
func (l *Loop) Counts() (frames, matched int64) {
	return l.frames.Load(), l.matched.Load()
}

var errStopRequested = errors.New("stop requested from preview window")

// Run processes frames until ctx ends, the source runs dry or the
// operator closes the preview. The end of the source is not an error.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	length := l.Tracker.Settings().MarkerLength()
	l.preview = monitoring.NewThrottle(5 * time.Second)
	l.empty = monitoring.NewThrottle(5 * time.Second)

	for {
		frame, err := l.Source.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, vision.ErrEmptyFrame):
				// No image this time: publish a miss so the filter keeps predicting.
				l.empty.Logf("[tracking] empty frame from source")
				if err := l.emit(l.Tracker.Process(nil, clock.Now())); err != nil {
					return err
				}
				continue
			case errors.Is(err, vision.ErrEndOfStream):
				monitoring.Logf("[tracking] source exhausted after %d frames", l.frames.Load())
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				return fmt.Errorf("frame acquisition failed: %w", err)
			}
		}

		err = l.processFrame(frame, length, clock)
		vision.ReleaseFrame(frame)
		if errors.Is(err, errStopRequested) {
			monitoring.Logf("[tracking] stopped from preview window")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *Loop) processFrame(frame vision.Frame, length float64, clock timeutil.Clock) error {
	dets, err := l.Detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("marker detection failed: %w", err)
	}
	obs := vision.Observe(dets, l.Estimator, length, l.Intrinsics)

	ts := frame.Captured
	if ts.IsZero() {
		ts = clock.Now()
	}
	if err := l.emit(l.Tracker.Process(obs, ts)); err != nil {
		return err
	}
	if l.Display != nil {
		if err := l.Display.Show(frame, obs); err != nil {
			l.preview.Logf("[tracking] preview failed: %v", err)
		}
		if k := l.Display.Key(); k == 27 || k == 'q' {
			return errStopRequested
		}
	}
	return nil
}

// emit counts, encodes and queues one result.
func (l *Loop) emit(res FrameResult) error {
	l.frames.Add(1)
	if res.Success {
		l.matched.Add(1)
	}
	payload, err := res.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode frame result: %w", err)
	}
	l.Out.Push(payload)
	if l.Observer != nil {
		l.Observer(res)
	}
	return nil
}

// Runner is a worker that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunSession runs the loop and the publisher together. Whichever stops
// first stops the other; anything still queued is discarded.
func RunSession(ctx context.Context, loop *Loop, publisher Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return loop.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return publisher.Run(gctx)
	})

	start := time.Now()
	err := g.Wait()
	frames, matched := loop.Counts()
	pushed, dropped := loop.Out.Stats()
	monitoring.Logf("[tracking] session ended after %s: %d frames, %d with pose, %d queued, %d dropped",
		time.Since(start).Round(time.Millisecond), frames, matched, pushed, dropped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
