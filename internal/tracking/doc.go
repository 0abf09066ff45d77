// Package tracking runs the per-frame pipeline: detect markers, pick or
// resolve a raw pose, fuse it, encode a FrameResult and hand it to the
// publisher through a drop-oldest queue.
//
// Two workers make up a session: the Loop, which owns the camera and the
// filter state, and a publisher draining the queue. They share nothing
// but the queue and stop together.
package tracking
