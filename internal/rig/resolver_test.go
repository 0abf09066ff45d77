package rig

import (
	"testing"

	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/vision"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(id int, z float64) vision.Observation {
	return vision.Observation{ID: id, Pose: posemath.Translation(r3.Vector{Z: z})}
}

func testConfig() Config {
	return Config{
		ID:           "cube",
		MarkerLength: 5,
		UpID:         0,
		SideIDs:      []int{1, 2, 3, 4},
		DownID:       5,
		Offsets: map[int]posemath.Pose{
			1: posemath.ToHomogeneous(posemath.RotationFromEuler(0, 1.5707963267948966, 0), r3.Vector{X: 2.5, Z: -2.5}),
			2: posemath.ToHomogeneous(posemath.RotationFromEuler(0.2, 0.1, 0.3), r3.Vector{X: 1, Y: 2, Z: 3}),
		},
	}
}

func TestChooseNearest(t *testing.T) {
	tests := []struct {
		name string
		obs  []vision.Observation
		want int
	}{
		{"single", []vision.Observation{at(1, 10)}, 0},
		{"second nearer", []vision.Observation{at(1, 10), at(2, 4), at(3, 7)}, 1},
		{"tie goes to first", []vision.Observation{at(1, 10), at(2, 3), at(3, 3)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseNearest(tt.obs)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ChooseNearest(nil)
	assert.False(t, ok)
}

func TestResolveNoMarkers(t *testing.T) {
	_, res := NewResolver(testConfig()).Resolve(nil)
	assert.Equal(t, NoMarkers, res)
	assert.False(t, res.OK())
}

func TestResolveUpMarkerReturnsRawPose(t *testing.T) {
	raw := posemath.ToHomogeneous(posemath.RotationFromEuler(0.1, 0.2, 0.3), r3.Vector{X: 1, Y: 2, Z: 30})
	obs := []vision.Observation{at(1, 40), {ID: 0, Pose: raw}}

	got, res := NewResolver(testConfig()).Resolve(obs)
	assert.Equal(t, ResolvedUp, res)
	assert.Equal(t, raw, got)
}

func TestResolveSideMarkerMatchesChain(t *testing.T) {
	cfg := testConfig()
	upCam := posemath.ToHomogeneous(posemath.RotationFromEuler(-0.4, 0.2, 1.0), r3.Vector{X: -3, Y: 1, Z: 45})
	// A side marker with offset O sits at upCam · O in the camera frame.
	sideCam := upCam.Mul(cfg.Offsets[2])

	got, res := NewResolver(cfg).Resolve([]vision.Observation{at(0, 60), {ID: 2, Pose: sideCam}})
	require.Equal(t, ResolvedOffset, res)
	assert.True(t, got.ApproxEqual(upCam, 1e-9))

	chain := posemath.Compose(cfg.Offsets[2], sideCam.MustInverse()).MustInverse()
	assert.True(t, got.ApproxEqual(chain, 1e-9))
}

func TestResolveUnknownMarker(t *testing.T) {
	cfg := testConfig()
	_, res := NewResolver(cfg).Resolve([]vision.Observation{at(3, 20)})
	assert.Equal(t, Unresolved, res)

	_, res = NewResolver(cfg).Resolve([]vision.Observation{at(42, 20), at(0, 30)})
	assert.Equal(t, Unresolved, res, "nearest marker decides even when the up marker is visible")
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero length", func(c *Config) { c.MarkerLength = 0 }},
		{"too many sides", func(c *Config) { c.SideIDs = []int{1, 2, 3, 4, 6} }},
		{"no sides", func(c *Config) { c.SideIDs = nil }},
		{"duplicate side", func(c *Config) { c.SideIDs = []int{1, 1} }},
		{"side equals up", func(c *Config) { c.SideIDs = []int{0, 1} }},
		{"down equals side", func(c *Config) { c.DownID = 1 }},
		{"offset for stranger", func(c *Config) { c.Offsets[9] = posemath.Identity() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEmptyConfig(t *testing.T) {
	cfg := Empty("cube-7")
	assert.False(t, cfg.IsMapped())
	assert.Equal(t, "cube-7", cfg.ID)
	assert.Equal(t, NoMarker, cfg.DownID)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, testConfig().MarkerIDs())
	assert.Equal(t, []int{1, 2}, testConfig().OffsetIDs())
}

func TestResolveTranslationOnlyExample(t *testing.T) {
	// Marker 5 sits 10 units along +X of the up marker. Seen at (10, 0, 50)
	// with no rotation, the up marker must resolve to (0, 0, 50).
	cfg := Config{
		MarkerLength: 5,
		UpID:         0,
		SideIDs:      []int{5},
		DownID:       NoMarker,
		Offsets:      map[int]posemath.Pose{5: posemath.Translation(r3.Vector{X: 10})},
	}
	observed := posemath.Translation(r3.Vector{X: 10, Z: 50})

	got, res := NewResolver(cfg).Resolve([]vision.Observation{{ID: 5, Pose: observed}})
	require.Equal(t, ResolvedOffset, res)
	assert.True(t, got.ApproxEqual(posemath.Translation(r3.Vector{Z: 50}), 1e-12))
}

func TestResolveSingularOffsetIsUnresolved(t *testing.T) {
	cfg := testConfig()
	cfg.Offsets[3] = posemath.Pose{}
	_, res := NewResolver(cfg).Resolve([]vision.Observation{at(3, 20)})
	assert.Equal(t, Unresolved, res)
}
