package camera

import (
	"errors"
	"log"
	"testing"

	"github.com/banshee-data/markertrack/internal/fsutil"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newMemStore() *Store {
	return &Store{Root: "calibration", FS: fsutil.NewMemoryFileSystem()}
}

func TestStoreMissingIntrinsics(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	s := newMemStore()
	_, err := s.Load("0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoIntrinsics))
}

func TestStoreRoundTrip(t *testing.T) {
	s := newMemStore()
	in, err := NewIntrinsics(612.5, 611.25, 319.5, 241.0, -0.1, 0.02, 0, 0, 0.003)
	require.NoError(t, err)

	require.NoError(t, s.Save("0", in))
	assert.True(t, s.Has("0"))

	got, err := s.Load("0")
	require.NoError(t, err)
	assert.True(t, mat.Equal(in.Matrix, got.Matrix))
	assert.True(t, mat.Equal(in.Distortion, got.Distortion))
}

func TestStoreFallsBackToDefault(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	s := newMemStore()
	in, err := NewIntrinsics(500, 500, 320, 240)
	require.NoError(t, err)
	require.NoError(t, s.Save(DefaultDevice, in))

	got, err := s.Load("/dev/video2")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Fx())
	assert.False(t, s.Has("/dev/video2"))
}

func TestStoreDelete(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	s := newMemStore()
	in, err := NewIntrinsics(500, 500, 320, 240)
	require.NoError(t, err)
	require.NoError(t, s.Save("1", in))
	require.NoError(t, s.Delete("1"))

	_, err = s.Load("1")
	assert.ErrorIs(t, err, ErrNoIntrinsics)
	assert.NoError(t, s.Delete("never-calibrated"))
}

func TestDeviceDir(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "0"},
		{"/dev/video0", "_dev_video0"},
		{"rtsp://cam:554/stream", "rtsp_cam_554_stream"},
		{"", DefaultDevice},
		{"..", DefaultDevice},
	}
	for _, tt := range tests {
		if got := DeviceDir(tt.in); got != tt.want {
			t.Errorf("DeviceDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
