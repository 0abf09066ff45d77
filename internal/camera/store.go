package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/banshee-data/markertrack/internal/fsutil"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is returned when neither the requested device nor the
// default device has saved intrinsics.
var ErrNoIntrinsics = errors.New("no camera intrinsics: run calibrate-camera first")

const (
	// DefaultDevice is the directory consulted when a device has no
	// calibration of its own.
	DefaultDevice = "default"

	matrixFile     = "cam_mtx.bin"
	distortionFile = "dist.bin"
)

var unsafeDeviceChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DeviceDir turns a device identity (index, path or URL) into a single
// directory name.
func DeviceDir(device string) string {
	name := unsafeDeviceChars.ReplaceAllString(device, "_")
	if name == "" || name == "." || name == ".." {
		return DefaultDevice
	}
	return name
}

// Store keeps one calibration directory per capture device under Root.
type Store struct {
	Root string
	FS   fsutil.FileSystem
}

// NewStore returns a Store backed by the real filesystem.
func NewStore(root string) *Store {
	return &Store{Root: root, FS: fsutil.OSFileSystem{}}
}

func (s *Store) dir(device string) string {
	return filepath.Join(s.Root, DeviceDir(device))
}

// Load returns the intrinsics for device, falling back to DefaultDevice.
func (s *Store) Load(device string) (Intrinsics, error) {
	in, err := s.loadDir(s.dir(device))
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Intrinsics{}, err
	}
	if DeviceDir(device) != DefaultDevice {
		monitoring.Logf("[camera] no calibration for device %q, trying %s", device, DefaultDevice)
		in, err = s.loadDir(s.dir(DefaultDevice))
		if err == nil {
			return in, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Intrinsics{}, err
		}
	}
	return Intrinsics{}, fmt.Errorf("device %q: %w", device, ErrNoIntrinsics)
}

func (s *Store) loadDir(dir string) (Intrinsics, error) {
	k, err := s.readMatrix(filepath.Join(dir, matrixFile))
	if err != nil {
		return Intrinsics{}, err
	}
	d, err := s.readMatrix(filepath.Join(dir, distortionFile))
	if err != nil {
		return Intrinsics{}, err
	}
	in := Intrinsics{Matrix: k, Distortion: d}
	if err := in.Validate(); err != nil {
		return Intrinsics{}, fmt.Errorf("invalid intrinsics in %s: %w", dir, err)
	}
	return in, nil
}

func (s *Store) readMatrix(path string) (*mat.Dense, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &m, nil
}

// Save writes intrinsics for device, replacing any previous calibration.
func (s *Store) Save(device string, in Intrinsics) error {
	if err := in.Validate(); err != nil {
		return err
	}
	dir := s.dir(device)
	if err := s.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create calibration directory: %w", err)
	}
	if err := s.writeMatrix(filepath.Join(dir, matrixFile), in.Matrix); err != nil {
		return err
	}
	dist := in.Distortion
	if dist == nil {
		dist = mat.NewDense(1, 5, nil)
	}
	return s.writeMatrix(filepath.Join(dir, distortionFile), dist)
}

func (s *Store) writeMatrix(path string, m *mat.Dense) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := s.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Delete removes the calibration saved for device. Deleting a device
// with no calibration is not an error.
func (s *Store) Delete(device string) error {
	if err := s.FS.RemoveAll(s.dir(device)); err != nil {
		return fmt.Errorf("failed to delete calibration for %q: %w", device, err)
	}
	return nil
}

// Has reports whether device has its own calibration, ignoring the
// default fallback.
func (s *Store) Has(device string) bool {
	return s.FS.Exists(filepath.Join(s.dir(device), matrixFile))
}
