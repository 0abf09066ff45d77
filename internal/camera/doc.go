// Package camera models pinhole intrinsics with Brown-Conrady distortion
// and persists them per capture device.
//
// Intrinsics are produced by the chessboard workflow in camera/calib and
// loaded once when a tracking session starts. A session without
// intrinsics cannot estimate marker poses, so Store.Load reports
// ErrNoIntrinsics rather than inventing a camera.
package camera
