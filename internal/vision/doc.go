// Package vision defines the frame, detection and pose-estimation
// collaborators the tracker consumes, plus the implementations that need
// no native libraries.
//
// Corner detection, capture and display come from OpenCV through gocv
// and are compiled only with -tags=gocv. Without the tag those
// constructors return an error and the rest of the pipeline can still be
// driven from a replay file.
//
// Key types: Frame, Detection, Observation, PlanarEstimator.
package vision
