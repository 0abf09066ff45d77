// Package rig resolves observations of a rigid marker set (a "marker
// cube") into the pose of its reference marker.
//
// A rig has one up marker, up to four side markers and an optional down
// marker. Each non-up marker carries a fixed offset into the up marker's
// frame, produced once by the mapping procedure in rig/mapping and
// read-only while tracking.
//
// Key types: Config, Resolver.
package rig
