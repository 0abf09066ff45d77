package tracking

import (
	"fmt"
	"time"

	"github.com/banshee-data/markertrack/internal/fusion"
	"github.com/banshee-data/markertrack/internal/posemath"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/vision"
)

// Tracker turns one frame's observations into a FrameResult. It owns the
// filter state and threads it through fusion.Model.Step; it is not safe
// for concurrent use.
type Tracker struct {
	settings           DetectionSettings
	resolver           *rig.Resolver
	model              *fusion.Model
	state              fusion.State
	publishPredictions bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPredictions includes the predicted pose in results for frames
// without a measurement.
func WithPredictions(on bool) Option {
	return func(t *Tracker) { t.publishPredictions = on }
}

// NewTracker validates settings and starts the filter from its initial
// state.
func NewTracker(settings DetectionSettings, model *fusion.Model, opts ...Option) (*Tracker, error) {
	if settings == nil {
		return nil, fmt.Errorf("detection settings are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{settings: settings, model: model, state: model.Initial()}
	if rs, ok := settings.(RigSettings); ok {
		t.resolver = rig.NewResolver(rs.Rig)
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Settings returns the tracker's detection settings.
func (t *Tracker) Settings() DetectionSettings { return t.settings }

// State returns the current filter state.
func (t *Tracker) State() fusion.State { return t.state }

// RawPose selects the frame's unfiltered pose under the tracker's
// settings.
func (t *Tracker) RawPose(obs []vision.Observation) (posemath.Pose, bool) {
	switch s := t.settings.(type) {
	case SingleMarkerSettings:
		return selectSingle(obs, s.MarkerID)
	case RigSettings:
		p, res := t.resolver.Resolve(obs)
		return p, res.OK()
	default:
		return posemath.Pose{}, false
	}
}

// selectSingle returns the requested marker, or the nearest marker for
// vision.AnyMarker. A marker reported more than once resolves to its
// nearest instance.
func selectSingle(obs []vision.Observation, id int) (posemath.Pose, bool) {
	candidates := obs
	if id != vision.AnyMarker {
		candidates = make([]vision.Observation, 0, 1)
		for _, o := range obs {
			if o.ID == id {
				candidates = append(candidates, o)
			}
		}
	}
	i, ok := rig.ChooseNearest(candidates)
	if !ok {
		return posemath.Pose{}, false
	}
	return candidates[i].Pose, true
}

// Process runs one frame through selection and the filter.
func (t *Tracker) Process(obs []vision.Observation, ts time.Time) FrameResult {
	res := FrameResult{Timestamp: Seconds(ts)}
	for _, o := range obs {
		res.Markers = append(res.Markers, o.ID)
	}

	var meas *fusion.Measurement
	if raw, ok := t.RawPose(obs); ok {
		m := fusion.MeasurementFromPose(raw)
		meas = &m
		res.Raw = &raw
	}

	var est fusion.Estimate
	t.state, est = t.model.Step(t.state, meas)
	res.Fused = est.Pose()

	switch {
	case meas != nil:
		res.Success = true
		res.PoseFields = NewPoseFields(res.Fused)
	case t.publishPredictions:
		res.Predicted = true
		res.PoseFields = NewPoseFields(res.Fused)
	}
	return res
}
