// Package epoch implements the Clock/Epoch mapping (spec.md §4.1), the
// EpochPool sliding window (§4.3), and the TemporaryIndexMap (§3, §4.4) —
// built fresh in the teacher's idiom since klaytn has no time-sliced
// epoch concept of its own; see DESIGN.md for the publish/subscribe
// double-buffer grounding (spec.md §9 design note).
package epoch

import "time"

// CyclePeriod is the 12-second epoch cadence (spec.md §6).
const CyclePeriod = 12 * time.Second

// PhaseDuration is each beacon phase's 4-second window (spec.md §4.4).
const PhaseDuration = CyclePeriod / 3

// DefaultGenesis is the compiled-in genesis instant from spec.md §6.
var DefaultGenesis = time.Date(2009, time.January, 3, 21, 45, 0, 0, time.UTC)

// Clock maps wall-clock time to epoch ids against a fixed genesis instant.
type Clock struct {
	Genesis time.Time
}

// NewClock returns a Clock anchored at genesis. Tests may inject an
// alternate genesis to avoid depending on wall-clock sleeps.
func NewClock(genesis time.Time) Clock {
	return Clock{Genesis: genesis}
}

// DefaultClock returns a Clock anchored at the compiled-in genesis.
func DefaultClock() Clock {
	return NewClock(DefaultGenesis)
}

// Current returns the epoch id containing now (spec.md §4.1).
func (c Clock) Current(now time.Time) uint64 {
	return c.Of(now.Unix())
}

// Of returns the epoch id containing the given Unix timestamp (seconds),
// per spec.md §4.1's epoch_of(timestamp).
func (c Clock) Of(unixSeconds int64) uint64 {
	delta := unixSeconds - c.Genesis.Unix()
	if delta < 0 {
		delta = 0
	}
	return uint64(delta/int64(CyclePeriod/time.Second)) + 1
}

// CycleStart returns the wall-clock instant at which the given epoch's
// 12-second cycle begins.
func (c Clock) CycleStart(epochID uint64) time.Time {
	offset := time.Duration(epochID-1) * CyclePeriod
	return c.Genesis.Add(offset)
}

// NextCycleBoundary returns the next instant, strictly after now, that
// begins a new 12-second cycle — used by the beacon engine to align
// itself at process start (spec.md §4.4 timing invariants).
func (c Clock) NextCycleBoundary(now time.Time) time.Time {
	cur := c.Current(now)
	start := c.CycleStart(cur)
	if !start.After(now) {
		start = start.Add(CyclePeriod)
	}
	return start
}

// PhaseIndex returns which of the three 4-second phases (0, 1, or 2)
// contains now within its current cycle.
func (c Clock) PhaseIndex(now time.Time) int {
	cur := c.Current(now)
	elapsed := now.Sub(c.CycleStart(cur))
	idx := int(elapsed / PhaseDuration)
	if idx > 2 {
		idx = 2
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
