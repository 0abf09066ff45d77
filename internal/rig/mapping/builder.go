package mapping

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/vision"
	"github.com/google/uuid"
)

// DefaultMinSamples is the number of captures that saturates a leg.
const DefaultMinSamples = 200

// ErrIncomplete is returned by Finish while a leg still needs samples.
var ErrIncomplete = errors.New("mapping: legs still need samples")

// Leg names which marker a side marker is paired with.
type Leg int

const (
	UpLeg   Leg = iota // target = up, other = side
	DownLeg            // target = side, other = down
)

func (l Leg) String() string {
	if l == DownLeg {
		return "down"
	}
	return "up"
}

// LegKey identifies one leg of one side marker.
type LegKey struct {
	Leg  Leg
	Side int
}

func (k LegKey) String() string { return fmt.Sprintf("%s/%d", k.Leg, k.Side) }

// Plan describes the rig being mapped.
type Plan struct {
	RigID        string
	MarkerLength float64
	UpID         int
	SideIDs      []int
	DownID       int
	MinSamples   int
}

func (p Plan) rigConfig() rig.Config {
	return rig.Config{
		ID:           p.RigID,
		MarkerLength: p.MarkerLength,
		UpID:         p.UpID,
		SideIDs:      append([]int(nil), p.SideIDs...),
		DownID:       p.DownID,
		Offsets:      map[int]posemath.Pose{},
	}
}

// Builder collects samples for one mapping run.
type Builder struct {
	plan    Plan
	runID   uuid.UUID
	legs    []LegKey
	samples map[LegKey][]Sample
}

// NewBuilder validates plan and starts an empty run.
func NewBuilder(plan Plan) (*Builder, error) {
	if plan.MinSamples <= 0 {
		plan.MinSamples = DefaultMinSamples
	}
	if err := plan.rigConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping plan: %w", err)
	}
	b := &Builder{plan: plan, runID: uuid.New(), samples: map[LegKey][]Sample{}}
	for _, s := range plan.SideIDs {
		b.legs = append(b.legs, LegKey{Leg: UpLeg, Side: s})
	}
	if plan.DownID != rig.NoMarker {
		for _, s := range plan.SideIDs {
			b.legs = append(b.legs, LegKey{Leg: DownLeg, Side: s})
		}
	}
	return b, nil
}

// RunID identifies this mapping run in logs and reports.
func (b *Builder) RunID() uuid.UUID { return b.runID }

// Plan returns the plan the builder was created with.
func (b *Builder) Plan() Plan { return b.plan }

// Status classifies a frame for the operator.
type Status int

const (
	StatusNoMarkers Status = iota
	StatusOnlyUp
	StatusOnlyOne
	StatusTooMany
	StatusTwoSides
	StatusUnknownMarker
	StatusUpAndDown
	StatusDuplicate
	StatusReady
	StatusLegFull
)

// Prompt is the classification of one frame.
type Prompt struct {
	Status Status
	Key    LegKey
	Count  int
	Target vision.Observation
	Other  vision.Observation
}

// Capturable reports whether confirming now would record a sample.
func (p Prompt) Capturable() bool { return p.Status == StatusReady }

func (p Prompt) String() string {
	switch p.Status {
	case StatusNoMarkers:
		return "No markers detected!"
	case StatusOnlyUp:
		return "Only up marker detected!"
	case StatusOnlyOne:
		return "Only one marker detected!"
	case StatusTooMany:
		return "Too many markers detected!"
	case StatusTwoSides:
		return "Two side markers: pair one side with the up or down marker!"
	case StatusUnknownMarker:
		return "Marker is not part of this rig!"
	case StatusUpAndDown:
		return "Up and down markers cannot be paired!"
	case StatusDuplicate:
		return "Same marker detected twice!"
	case StatusReady:
		return fmt.Sprintf("Leg %s: %d captured, press ENTER to capture", p.Key, p.Count)
	case StatusLegFull:
		return fmt.Sprintf("Leg %s is complete", p.Key)
	default:
		return "unknown"
	}
}

type markerRole int

const (
	roleNone markerRole = iota
	roleUp
	roleSide
	roleDown
)

func (b *Builder) role(id int) markerRole {
	switch {
	case id == b.plan.UpID:
		return roleUp
	case b.isSide(id):
		return roleSide
	case b.plan.DownID != rig.NoMarker && id == b.plan.DownID:
		return roleDown
	default:
		return roleNone
	}
}

func (b *Builder) isSide(id int) bool {
	for _, s := range b.plan.SideIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Inspect classifies the markers visible in a frame. A capture needs
// exactly two markers: up with a side, or a side with down.
func (b *Builder) Inspect(obs []vision.Observation) Prompt {
	switch len(obs) {
	case 0:
		return Prompt{Status: StatusNoMarkers}
	case 1:
		if obs[0].ID == b.plan.UpID {
			return Prompt{Status: StatusOnlyUp}
		}
		return Prompt{Status: StatusOnlyOne}
	case 2:
	default:
		return Prompt{Status: StatusTooMany}
	}

	for _, o := range obs {
		if b.role(o.ID) == roleNone {
			return Prompt{Status: StatusUnknownMarker}
		}
	}
	a, c := obs[0], obs[1]
	if a.ID == c.ID {
		return Prompt{Status: StatusDuplicate}
	}
	// Order the pair as (up, side) or (side, down).
	if b.role(c.ID) == roleUp || b.role(a.ID) == roleDown {
		a, c = c, a
	}

	var p Prompt
	switch ra, rc := b.role(a.ID), b.role(c.ID); {
	case ra == roleUp && rc == roleSide:
		p = Prompt{Key: LegKey{Leg: UpLeg, Side: c.ID}, Target: a, Other: c}
	case ra == roleSide && rc == roleDown:
		p = Prompt{Key: LegKey{Leg: DownLeg, Side: a.ID}, Target: a, Other: c}
	case ra == roleUp && rc == roleDown:
		return Prompt{Status: StatusUpAndDown}
	default:
		return Prompt{Status: StatusTwoSides}
	}

	p.Count = len(b.samples[p.Key])
	if p.Count >= b.plan.MinSamples {
		p.Status = StatusLegFull
	} else {
		p.Status = StatusReady
	}
	return p
}

// Capture records a sample from the frame if Inspect would allow it. It
// is meant to be called only on explicit operator confirmation.
func (b *Builder) Capture(obs []vision.Observation) (Prompt, bool) {
	p := b.Inspect(obs)
	if !p.Capturable() {
		return p, false
	}
	s, err := NewSample(p.Target.Pose, p.Other.Pose)
	if err != nil {
		monitoring.Logf("[mapping] discarding capture for leg %s: %v", p.Key, err)
		return p, false
	}
	b.samples[p.Key] = append(b.samples[p.Key], s)
	p.Count++
	if p.Count >= b.plan.MinSamples {
		monitoring.Logf("[mapping] leg %s complete (%d samples)", p.Key, p.Count)
	}
	return p, true
}

// Samples returns a copy of the samples recorded for a leg.
func (b *Builder) Samples(key LegKey) []Sample {
	return append([]Sample(nil), b.samples[key]...)
}

// LegProgress is how far one leg has got.
type LegProgress struct {
	Key      LegKey
	Count    int
	Required int
}

// Done reports whether the leg is saturated.
func (p LegProgress) Done() bool { return p.Count >= p.Required }

// Progress reports every leg in plan order.
func (b *Builder) Progress() []LegProgress {
	out := make([]LegProgress, 0, len(b.legs))
	for _, k := range b.legs {
		out = append(out, LegProgress{Key: k, Count: len(b.samples[k]), Required: b.plan.MinSamples})
	}
	return out
}

// Done reports whether every leg is saturated.
func (b *Builder) Done() bool {
	for _, p := range b.Progress() {
		if !p.Done() {
			return false
		}
	}
	return true
}

// Finish selects the best transform per leg and builds the rig config.
// Side offsets come straight from their up legs. The down offset is
// bridged through the side whose up and down fits have the lowest
// combined error: down_to_up = side_to_up · down_to_side.
func (b *Builder) Finish() (rig.Config, Report, error) {
	if !b.Done() {
		return rig.Config{}, Report{}, ErrIncomplete
	}

	cfg := b.plan.rigConfig()
	report := Report{RunID: b.runID, RigID: b.plan.RigID, Bridge: rig.NoMarker}
	fits := make(map[LegKey]Fit, len(b.legs))
	for _, k := range b.legs {
		fit, err := BestFit(b.samples[k])
		if err != nil {
			return rig.Config{}, Report{}, fmt.Errorf("leg %s: %w", k, err)
		}
		fits[k] = fit
		report.Legs = append(report.Legs, LegReport{Key: k, Fit: fit})
		if k.Leg == UpLeg {
			cfg.Offsets[k.Side] = fit.Transform
		}
	}

	if b.plan.DownID != rig.NoMarker {
		bestSum := math.Inf(1)
		for _, s := range b.plan.SideIDs {
			sum := fits[LegKey{UpLeg, s}].Error + fits[LegKey{DownLeg, s}].Error
			if sum < bestSum {
				bestSum = sum
				report.Bridge = s
			}
		}
		up := fits[LegKey{UpLeg, report.Bridge}].Transform
		down := fits[LegKey{DownLeg, report.Bridge}].Transform
		cfg.Offsets[b.plan.DownID] = posemath.Compose(up, down)
		report.BridgeError = bestSum
	}

	sort.Slice(report.Legs, func(i, j int) bool {
		if report.Legs[i].Key.Leg != report.Legs[j].Key.Leg {
			return report.Legs[i].Key.Leg < report.Legs[j].Key.Leg
		}
		return report.Legs[i].Key.Side < report.Legs[j].Key.Side
	})
	monitoring.Logf("[mapping] run %s finished: %d offsets, down bridge %d", b.runID, len(cfg.Offsets), report.Bridge)
	return cfg, report, nil
}
