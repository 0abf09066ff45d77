package rig

import (
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/vision"
)

// Resolution says how (or whether) a frame produced a rig pose.
type Resolution int

const (
	NoMarkers      Resolution = iota // nothing detected
	ResolvedUp                       // the up marker was nearest
	ResolvedOffset                   // a mapped side or down marker was nearest
	Unresolved                       // nearest marker has no offset
)

func (r Resolution) String() string {
	switch r {
	case NoMarkers:
		return "no_markers"
	case ResolvedUp:
		return "up"
	case ResolvedOffset:
		return "offset"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// OK reports whether the resolution produced a pose.
func (r Resolution) OK() bool {
	return r == ResolvedUp || r == ResolvedOffset
}

// ChooseNearest returns the index of the observation with the smallest
// camera-axis depth. Ties go to the earliest observation.
func ChooseNearest(obs []vision.Observation) (int, bool) {
	if len(obs) == 0 {
		return -1, false
	}
	best := 0
	for i := 1; i < len(obs); i++ {
		if obs[i].Depth() < obs[best].Depth() {
			best = i
		}
	}
	return best, true
}

// Resolver turns per-frame observations into the up marker's pose.
type Resolver struct {
	cfg Config
}

// NewResolver returns a resolver for cfg.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Config returns the rig configuration the resolver was built from.
func (r *Resolver) Config() Config { return r.cfg }

// Resolve picks the nearest marker and maps its pose to the up marker.
// A non-up marker observed at P with offset O resolves to
// inv(O · inv(P)). A chain that cannot be inverted leaves the frame
// unresolved.
func (r *Resolver) Resolve(obs []vision.Observation) (posemath.Pose, Resolution) {
	i, ok := ChooseNearest(obs)
	if !ok {
		return posemath.Pose{}, NoMarkers
	}
	chosen := obs[i]
	if chosen.ID == r.cfg.UpID {
		return chosen.Pose, ResolvedUp
	}
	offset, ok := r.cfg.Offsets[chosen.ID]
	if !ok {
		return posemath.Pose{}, Unresolved
	}
	observedInv, err := chosen.Pose.Inverse()
	if err != nil {
		return posemath.Pose{}, Unresolved
	}
	up, err := posemath.Compose(offset, observedInv).Inverse()
	if err != nil {
		return posemath.Pose{}, Unresolved
	}
	return up, ResolvedOffset
}
