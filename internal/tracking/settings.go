package tracking

import (
	"fmt"

	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/vision"
)

// DetectionSettings selects what the tracker follows. It is implemented
// only by SingleMarkerSettings and RigSettings.
type DetectionSettings interface {
	MarkerLength() float64
	Validate() error
	detectionSettings()
}

// SingleMarkerSettings follows one marker. MarkerID vision.AnyMarker
// follows whichever marker is nearest.
type SingleMarkerSettings struct {
	Length   float64
	MarkerID int
}

func (s SingleMarkerSettings) MarkerLength() float64 { return s.Length }
func (SingleMarkerSettings) detectionSettings()      {}

// Validate implements DetectionSettings.
func (s SingleMarkerSettings) Validate() error {
	if s.Length <= 0 {
		return fmt.Errorf("marker length must be positive, got %g", s.Length)
	}
	if s.MarkerID < vision.AnyMarker {
		return fmt.Errorf("invalid marker id %d", s.MarkerID)
	}
	return nil
}

// RigSettings follows a mapped marker rig.
type RigSettings struct {
	Rig rig.Config
}

func (s RigSettings) MarkerLength() float64 { return s.Rig.MarkerLength }
func (RigSettings) detectionSettings()      {}

// Validate implements DetectionSettings.
func (s RigSettings) Validate() error {
	if !s.Rig.IsMapped() {
		return fmt.Errorf("rig %q has not been mapped: run map-rig first", s.Rig.ID)
	}
	return s.Rig.Validate()
}

// Mode names the settings variant for logs and session records.
func Mode(s DetectionSettings) string {
	switch s.(type) {
	case SingleMarkerSettings:
		return "single"
	case RigSettings:
		return "rig"
	default:
		return "unknown"
	}
}
