package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/markertrack/internal/camera"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntrinsics(t *testing.T, dist ...float64) camera.Intrinsics {
	t.Helper()
	in, err := camera.NewIntrinsics(800, 800, 320, 240, dist...)
	require.NoError(t, err)
	return in
}

func TestPlanarEstimatorRecoversPose(t *testing.T) {
	tests := []struct {
		name string
		pose posemath.Pose
		dist []float64
	}{
		{
			name: "facing camera",
			pose: posemath.Translation(r3.Vector{Z: 50}),
		},
		{
			name: "tilted and offset",
			pose: posemath.ToHomogeneous(posemath.RotationFromEuler(0.4, -0.3, 0.8), r3.Vector{X: 4, Y: -3, Z: 40}),
		},
		{
			name: "with lens distortion",
			pose: posemath.ToHomogeneous(posemath.RotationFromEuler(-0.2, 0.5, -1.2), r3.Vector{X: -6, Y: 2, Z: 35}),
			dist: []float64{-0.12, 0.03, 0.0005, -0.0004, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testIntrinsics(t, tt.dist...)
			corners := ProjectMarker(tt.pose, 5, in)

			rvec, tvec, err := PlanarEstimator{}.EstimatePose(corners, 5, in)
			require.NoError(t, err)

			got := posemath.FromVectors(rvec, tvec)
			assert.True(t, got.ApproxEqual(tt.pose, 1e-6), "got %v want %v", got, tt.pose)
		})
	}
}

func TestPlanarEstimatorRejectsBadInput(t *testing.T) {
	in := testIntrinsics(t)
	corners := ProjectMarker(posemath.Translation(r3.Vector{Z: 30}), 5, in)

	_, _, err := PlanarEstimator{}.EstimatePose(corners, 0, in)
	assert.Error(t, err)

	_, _, err = PlanarEstimator{}.EstimatePose(corners, 5, camera.Intrinsics{})
	assert.True(t, errors.Is(err, camera.ErrNoIntrinsics))

	var collapsed Corners
	_, _, err = PlanarEstimator{}.EstimatePose(collapsed, 5, in)
	assert.Error(t, err)
}

func TestObserveDropsFailedEstimates(t *testing.T) {
	in := testIntrinsics(t)
	good := ProjectMarker(posemath.Translation(r3.Vector{Z: 30}), 5, in)
	dets := []Detection{
		{ID: 3, Corners: good},
		{ID: 4},
	}
	obs := Observe(dets, PlanarEstimator{}, 5, in)
	require.Len(t, obs, 1)
	assert.Equal(t, 3, obs[0].ID)
	assert.InDelta(t, 30, obs[0].Depth(), 1e-6)
}

func TestReplaySource(t *testing.T) {
	input := `{"timestamp": 1.5, "detections": [{"id": 7, "corners": [{"X":1,"Y":2},{"X":3,"Y":2},{"X":3,"Y":4},{"X":1,"Y":4}]}]}

{"timestamp": 1.6, "detections": []}
`
	src := NewReplaySource(strings.NewReader(input), 0)
	defer src.Close()
	ctx := context.Background()

	f, err := src.Read(ctx)
	require.NoError(t, err)
	dets, err := ReplayDetector{}.Detect(f)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 7, dets[0].ID)
	assert.Equal(t, Point{X: 2, Y: 3}, dets[0].Corners.Center())

	f, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	dets, err = ReplayDetector{}.Detect(f)
	require.NoError(t, err)
	assert.Empty(t, dets)

	_, err = src.Read(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestReplayDetectorRejectsForeignFrames(t *testing.T) {
	_, err := ReplayDetector{}.Detect(Frame{Image: 42})
	assert.Error(t, err)
}
