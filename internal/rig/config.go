package rig

import (
	"fmt"
	"sort"

	"github.com/banshee-data/markertrack/internal/posemath"
)

// NoMarker marks an absent down marker.
const NoMarker = -1

// MaxSideMarkers is the number of side faces a rig can carry.
const MaxSideMarkers = 4

// Config describes a mapped marker rig. Offsets maps a marker ID to the
// transform from that marker's frame to the up marker's frame. IDs in
// SideIDs or DownID with no offset are ignored at runtime.
type Config struct {
	ID           string
	MarkerLength float64
	UpID         int
	SideIDs      []int
	DownID       int
	Offsets      map[int]posemath.Pose
}

// Empty returns the unmapped configuration for a rig ID. Loading a rig
// that was never mapped yields this value.
func Empty(id string) Config {
	return Config{ID: id, UpID: NoMarker, DownID: NoMarker, Offsets: map[int]posemath.Pose{}}
}

// IsMapped reports whether the rig has an up marker and at least one
// usable offset.
func (c Config) IsMapped() bool {
	return c.UpID != NoMarker && len(c.Offsets) > 0
}

// Validate checks the marker layout.
func (c Config) Validate() error {
	if c.MarkerLength <= 0 {
		return fmt.Errorf("marker length must be positive, got %g", c.MarkerLength)
	}
	if c.UpID < 0 {
		return fmt.Errorf("up marker id must be non-negative, got %d", c.UpID)
	}
	if len(c.SideIDs) == 0 || len(c.SideIDs) > MaxSideMarkers {
		return fmt.Errorf("rig needs 1 to %d side markers, got %d", MaxSideMarkers, len(c.SideIDs))
	}
	seen := map[int]bool{c.UpID: true}
	for _, id := range c.SideIDs {
		if id < 0 {
			return fmt.Errorf("side marker id must be non-negative, got %d", id)
		}
		if seen[id] {
			return fmt.Errorf("marker id %d used more than once", id)
		}
		seen[id] = true
	}
	if c.DownID != NoMarker {
		if c.DownID < 0 {
			return fmt.Errorf("down marker id must be non-negative, got %d", c.DownID)
		}
		if seen[c.DownID] {
			return fmt.Errorf("marker id %d used more than once", c.DownID)
		}
	}
	for id := range c.Offsets {
		if !c.HasMarker(id) || id == c.UpID {
			return fmt.Errorf("offset for marker %d which is not a side or down marker", id)
		}
	}
	return nil
}

// HasMarker reports whether id belongs to the rig.
func (c Config) HasMarker(id int) bool {
	if id == c.UpID || (c.DownID != NoMarker && id == c.DownID) {
		return true
	}
	for _, s := range c.SideIDs {
		if s == id {
			return true
		}
	}
	return false
}

// MarkerIDs returns every marker in the rig: up, sides, then down.
func (c Config) MarkerIDs() []int {
	ids := append([]int{c.UpID}, c.SideIDs...)
	if c.DownID != NoMarker {
		ids = append(ids, c.DownID)
	}
	return ids
}

// OffsetIDs returns the IDs with offsets in ascending order.
func (c Config) OffsetIDs() []int {
	ids := make([]int, 0, len(c.Offsets))
	for id := range c.Offsets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
