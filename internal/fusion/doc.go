// Package fusion smooths per-frame pose measurements with an 18-state
// constant-acceleration Kalman filter.
//
// State layout (six groups of value, velocity, acceleration):
//
//	 0  x   1  vx   2  ax
//	 3  y   4  vy   5  ay
//	 6  z   7  vz   8  az
//	 9  rx 10 vrx  11 arx
//	12  ry 13 vry  14 ary
//	15  rz 16 vrz  17 arz
//
// The measurement is position plus XYZ Euler angles, picked from indices
// 0, 3, 6, 9, 12 and 15.
//
// The filter is a pure function: Model.Step takes the prior State and an
// optional Measurement and returns a new State. Callers own the state and
// thread it from frame to frame. Missing measurements only predict, so a
// pose is produced every frame through dropouts. There is no outlier
// rejection and no re-initialisation other than the non-finite guard.
package fusion
