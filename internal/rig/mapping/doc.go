// Package mapping learns a rig's marker offsets from operator-confirmed
// captures.
//
// The operator holds the rig so that exactly two markers are visible and
// confirms a capture. Up+side pairs feed the side marker's up leg and
// side+down pairs feed its down leg. When every leg holds enough samples,
// Finish picks the most self-consistent sample per leg (see BestFit) and
// returns an immutable rig.Config.
//
// Nothing here is global: a Builder owns all collected samples.
package mapping
