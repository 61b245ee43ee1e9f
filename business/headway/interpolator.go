package headway

import "time"

// interpolatePassTime estimates when a vehicle passed the stop at
// stopDistance, assuming it held a constant velocity since the previous
// accepted ping at prevTime/prevDistance. No acceleration model is applied.
// A velocity of zero (two accepted pings with the same timestamp) collapses
// the estimate to prevTime: degenerate but deterministic.
func interpolatePassTime(prevTime time.Time, prevDistance, velocity, stopDistance float64) time.Time {
	if velocity <= 0 {
		return prevTime
	}
	seconds := (stopDistance - prevDistance) / velocity
	return prevTime.Add(time.Duration(seconds * float64(time.Second)))
}
