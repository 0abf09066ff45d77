// Package posemath holds the rigid-transform arithmetic shared by the
// marker resolver, the cube mapping procedure and the pose filter.
//
// A Pose is a 4x4 homogeneous transform stored row-major. Rotations are
// 3x3 row-major blocks and translations are r3 vectors. Every operation
// returns a new value; nothing here mutates its receiver.
//
// Key types: Pose, Rotation.
package posemath
