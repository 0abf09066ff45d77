package mapping

import (
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/vision"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const half = 2.5

var (
	offsetSide1 = posemath.ToHomogeneous(posemath.RotationFromEuler(-math.Pi/2, 0, 0), r3.Vector{Y: -half, Z: -half})
	offsetSide2 = posemath.ToHomogeneous(posemath.RotationFromEuler(0, math.Pi/2, 0), r3.Vector{X: half, Z: -half})
	offsetDown  = posemath.ToHomogeneous(posemath.RotationFromEuler(math.Pi, 0, 0), r3.Vector{Z: -2 * half})
)

// rigPoses are poses of the up marker in the camera frame.
var rigPoses = []posemath.Pose{
	posemath.ToHomogeneous(posemath.RotationFromEuler(0.9, -0.7, 0.2), r3.Vector{X: 1, Y: 2, Z: 40}),
	posemath.ToHomogeneous(posemath.RotationFromEuler(1.1, -0.9, 0.5), r3.Vector{X: -2, Y: 0, Z: 35}),
	posemath.ToHomogeneous(posemath.RotationFromEuler(0.7, -0.6, -0.4), r3.Vector{X: 0, Y: -1, Z: 45}),
}

func observation(id int, pose posemath.Pose) vision.Observation {
	return vision.Observation{ID: id, Pose: pose}
}

func quiet(t *testing.T) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
}

func testPlan(min int) Plan {
	return Plan{RigID: "cube", MarkerLength: 2 * half, UpID: 0, SideIDs: []int{1, 2}, DownID: 5, MinSamples: min}
}

func TestNewSample(t *testing.T) {
	target := rigPoses[0]
	other := target.Mul(offsetSide1)
	s, err := NewSample(target, other)
	require.NoError(t, err)
	assert.True(t, s.OtherToTarget.ApproxEqual(offsetSide1, 1e-9))
}

func TestBestFitRejectsOutlier(t *testing.T) {
	var samples []Sample
	for i, w := range append(rigPoses, posemath.Translation(r3.Vector{Z: 50})) {
		// Small per-capture jitter on the observed side marker.
		jitter := posemath.Translation(r3.Vector{X: 0.001 * float64(i), Y: -0.0005 * float64(i)})
		s, err := NewSample(w, w.Mul(offsetSide1).Mul(jitter))
		require.NoError(t, err)
		samples = append(samples, s)
	}
	outlierRot := posemath.ToHomogeneous(posemath.RotationFromEuler(1.3, -0.8, 2.1), r3.Vector{X: 3})
	bad, err := NewSample(rigPoses[1], rigPoses[1].Mul(offsetSide1).Mul(outlierRot))
	require.NoError(t, err)
	samples = append(samples[:2], append([]Sample{bad}, samples[2:]...)...)
	require.Len(t, samples, 5)

	fit, err := BestFit(samples)
	require.NoError(t, err)
	assert.NotEqual(t, 2, fit.Index, "outlier must not win")
	assert.True(t, fit.Transform.ApproxEqual(offsetSide1, 0.01))
	assert.Len(t, fit.Errors, 5)
	for i, e := range fit.Errors {
		assert.GreaterOrEqual(t, e, fit.Error, "candidate %d", i)
	}
}

func TestBestFitEdgeCases(t *testing.T) {
	_, err := BestFit(nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	s, err := NewSample(rigPoses[0], rigPoses[0].Mul(offsetSide2))
	require.NoError(t, err)
	fit, err := BestFit([]Sample{s})
	require.NoError(t, err)
	assert.Equal(t, 0, fit.Index)
	assert.Zero(t, fit.Error)
}

func TestInspectWithoutDownMarker(t *testing.T) {
	plan := testPlan(2)
	plan.DownID = rig.NoMarker
	b, err := NewBuilder(plan)
	require.NoError(t, err)
	w := rigPoses[0]

	p := b.Inspect([]vision.Observation{observation(0, w), observation(5, w.Mul(offsetDown))})
	assert.Equal(t, StatusUnknownMarker, p.Status, p.String())
	p = b.Inspect([]vision.Observation{observation(1, w.Mul(offsetSide1)), observation(0, w)})
	assert.Equal(t, StatusReady, p.Status, p.String())
	assert.Equal(t, LegKey{UpLeg, 1}, p.Key)
}

func TestInspect(t *testing.T) {
	b, err := NewBuilder(testPlan(2))
	require.NoError(t, err)
	w := rigPoses[0]
	up := observation(0, w)
	s1 := observation(1, w.Mul(offsetSide1))
	s2 := observation(2, w.Mul(offsetSide2))
	down := observation(5, w.Mul(offsetDown))

	tests := []struct {
		name string
		obs  []vision.Observation
		want Status
		key  LegKey
	}{
		{"nothing", nil, StatusNoMarkers, LegKey{}},
		{"up alone", []vision.Observation{up}, StatusOnlyUp, LegKey{}},
		{"side alone", []vision.Observation{s1}, StatusOnlyOne, LegKey{}},
		{"three markers", []vision.Observation{up, s1, s2}, StatusTooMany, LegKey{}},
		{"two sides", []vision.Observation{s1, s2}, StatusTwoSides, LegKey{}},
		{"up twice", []vision.Observation{up, up}, StatusDuplicate, LegKey{}},
		{"side twice", []vision.Observation{s1, s1}, StatusDuplicate, LegKey{}},
		{"stranger", []vision.Observation{up, observation(9, w)}, StatusUnknownMarker, LegKey{}},
		{"up and down", []vision.Observation{down, up}, StatusUpAndDown, LegKey{}},
		{"up leg", []vision.Observation{s2, up}, StatusReady, LegKey{UpLeg, 2}},
		{"down leg", []vision.Observation{down, s1}, StatusReady, LegKey{DownLeg, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := b.Inspect(tt.obs)
			assert.Equal(t, tt.want, p.Status, p.String())
			if tt.want == StatusReady {
				assert.Equal(t, tt.key, p.Key)
			}
		})
	}
}

func TestCaptureSaturatesLeg(t *testing.T) {
	quiet(t)
	b, err := NewBuilder(testPlan(2))
	require.NoError(t, err)
	w := rigPoses[0]
	pair := []vision.Observation{observation(0, w), observation(1, w.Mul(offsetSide1))}

	for i := 0; i < 2; i++ {
		_, ok := b.Capture(pair)
		require.True(t, ok)
	}
	p, ok := b.Capture(pair)
	assert.False(t, ok)
	assert.Equal(t, StatusLegFull, p.Status)
	assert.Len(t, b.Samples(LegKey{UpLeg, 1}), 2)

	_, ok = b.Capture([]vision.Observation{observation(0, w)})
	assert.False(t, ok, "single marker must not be captured")
	assert.False(t, b.Done())

	_, _, err = b.Finish()
	assert.ErrorIs(t, err, ErrIncomplete)
}

func captureAll(t *testing.T, b *Builder) {
	t.Helper()
	for _, w := range rigPoses {
		up := observation(0, w)
		s1 := observation(1, w.Mul(offsetSide1))
		s2 := observation(2, w.Mul(offsetSide2))
		down := observation(5, w.Mul(offsetDown))
		for _, pair := range [][]vision.Observation{{up, s1}, {up, s2}, {s1, down}, {down, s2}} {
			_, ok := b.Capture(pair)
			require.True(t, ok)
		}
	}
}

func TestFinishComposesDownThroughBridge(t *testing.T) {
	quiet(t)
	b, err := NewBuilder(testPlan(len(rigPoses)))
	require.NoError(t, err)
	captureAll(t, b)
	require.True(t, b.Done())

	cfg, report, err := b.Finish()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Offsets[1].ApproxEqual(offsetSide1, 1e-9))
	assert.True(t, cfg.Offsets[2].ApproxEqual(offsetSide2, 1e-9))
	assert.True(t, cfg.Offsets[5].ApproxEqual(offsetDown, 1e-9))
	assert.Contains(t, []int{1, 2}, report.Bridge)
	assert.Len(t, report.Legs, 4)

	// The mapped rig resolves a lone down marker back to the up marker.
	w := posemath.ToHomogeneous(posemath.RotationFromEuler(-2.5, 0.2, 0.1), r3.Vector{Z: 30})
	got, res := rig.NewResolver(cfg).Resolve([]vision.Observation{observation(5, w.Mul(offsetDown))})
	require.True(t, res.OK())
	assert.True(t, got.ApproxEqual(w, 1e-9))
}

func TestFinishWithoutDownMarker(t *testing.T) {
	quiet(t)
	plan := testPlan(1)
	plan.DownID = rig.NoMarker
	b, err := NewBuilder(plan)
	require.NoError(t, err)
	w := rigPoses[2]
	for _, pair := range [][]vision.Observation{
		{observation(0, w), observation(1, w.Mul(offsetSide1))},
		{observation(2, w.Mul(offsetSide2)), observation(0, w)},
	} {
		_, ok := b.Capture(pair)
		require.True(t, ok)
	}
	cfg, report, err := b.Finish()
	require.NoError(t, err)
	assert.Len(t, cfg.Offsets, 2)
	assert.Equal(t, rig.NoMarker, report.Bridge)
}

func TestNewBuilderRejectsBadPlan(t *testing.T) {
	plan := testPlan(0)
	plan.SideIDs = []int{1, 2, 3, 4, 6}
	_, err := NewBuilder(plan)
	assert.Error(t, err)

	b, err := NewBuilder(testPlan(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultMinSamples, b.Plan().MinSamples)
}

type memRigStore struct {
	saved []rig.Config
}

func (m *memRigStore) SaveRig(_ context.Context, cfg rig.Config) error {
	m.saved = append(m.saved, cfg)
	return nil
}

func TestSessionMapsReplayedFrames(t *testing.T) {
	quiet(t)
	in, err := camera.NewIntrinsics(800, 800, 320, 240)
	require.NoError(t, err)

	project := func(id int, pose posemath.Pose) vision.Detection {
		return vision.Detection{ID: id, Corners: vision.ProjectMarker(pose, 2*half, in)}
	}
	var frames []vision.Frame
	for _, w := range rigPoses {
		frames = append(frames,
			vision.Frame{Image: []vision.Detection{project(0, w), project(1, w.Mul(offsetSide1))}},
			vision.Frame{Image: []vision.Detection{project(2, w.Mul(offsetSide2)), project(0, w)}},
		)
	}

	b, err := NewBuilder(Plan{RigID: "replayed", MarkerLength: 2 * half, UpID: 0, SideIDs: []int{1, 2}, DownID: rig.NoMarker, MinSamples: len(rigPoses)})
	require.NoError(t, err)

	confirm := make(chan struct{}, len(frames))
	for range frames {
		confirm <- struct{}{}
	}
	store := &memRigStore{}
	dir := t.TempDir()
	s := &Session{
		Builder:    b,
		Source:     &vision.SliceSource{Frames: frames},
		Detector:   vision.ReplayDetector{},
		Estimator:  vision.PlanarEstimator{},
		Intrinsics: in,
		Store:      store,
		Confirm:    confirm,
		ReportDir:  dir,
	}

	cfg, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.True(t, cfg.Offsets[1].ApproxEqual(offsetSide1, 1e-6))
	assert.True(t, cfg.Offsets[2].ApproxEqual(offsetSide2, 1e-6))

	plots, err := filepath.Glob(filepath.Join(dir, "mapping_replayed_*.png"))
	require.NoError(t, err)
	require.Len(t, plots, 1)
	info, err := os.Stat(plots[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSessionSourceEndsEarly(t *testing.T) {
	quiet(t)
	b, err := NewBuilder(testPlan(5))
	require.NoError(t, err)
	s := &Session{
		Builder:   b,
		Source:    &vision.SliceSource{},
		Detector:  vision.ReplayDetector{},
		Estimator: vision.PlanarEstimator{},
		Store:     &memRigStore{},
	}
	_, _, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrIncomplete)
}
