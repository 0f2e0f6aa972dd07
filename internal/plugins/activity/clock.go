package activity

import "time"

// Clock returns the current wall-clock time. Tests swap it for a fixed or
// stepping clock.
type Clock func() time.Time

// SystemClock reads the local wall clock.
func SystemClock() time.Time {
	return time.Now()
}
