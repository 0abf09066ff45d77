package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplayRecord is one line of a detection replay file.
type ReplayRecord struct {
	Timestamp  float64     `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

// ReplaySource plays back pre-recorded detections, one JSON record per
// line. Frames carry their detections in Frame.Image; pair the source with
// ReplayDetector.
type ReplaySource struct {
	closer  io.Closer
	scanner *bufio.Scanner
	index   int
	pace    time.Duration
}

// OpenReplay opens a replay file. pace, when positive, sleeps between
// frames to emulate a live camera.
func OpenReplay(path string, pace time.Duration) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	src := NewReplaySource(f, pace)
	src.closer = f
	return src, nil
}

// NewReplaySource reads replay records from r.
func NewReplaySource(r io.Reader, pace time.Duration) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &ReplaySource{scanner: sc, pace: pace}
}

// Read implements FrameSource.
func (s *ReplaySource) Read(ctx context.Context) (Frame, error) {
	if s.pace > 0 && s.index > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(s.pace):
		}
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ReplayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return Frame{}, fmt.Errorf("replay frame %d: %w", s.index, err)
		}
		f := Frame{Index: s.index, Image: rec.Detections}
		if rec.Timestamp > 0 {
			f.Captured = time.Unix(0, int64(rec.Timestamp*float64(time.Second)))
		}
		s.index++
		return f, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, ErrEndOfStream
}

// Close implements FrameSource.
func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// ReplayDetector returns the detections carried by replay frames.
type ReplayDetector struct{}

// Detect implements Detector.
func (ReplayDetector) Detect(frame Frame) ([]Detection, error) {
	switch dets := frame.Image.(type) {
	case nil:
		return nil, nil
	case []Detection:
		return dets, nil
	default:
		return nil, fmt.Errorf("replay detector cannot read frame image of type %T", frame.Image)
	}
}

// SliceSource yields a fixed list of frames, then ErrEndOfStream.
type SliceSource struct {
	Frames []Frame
	next   int
}

// Read implements FrameSource.
func (s *SliceSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.Frames) {
		return Frame{}, ErrEndOfStream
	}
	f := s.Frames[s.next]
	s.next++
	return f, nil
}

// Close implements FrameSource.
func (s *SliceSource) Close() error { return nil }
