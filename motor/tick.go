package motor

import (
	"math"
	"time"
)

// MaxTick is the largest value of the 32-bit microsecond tick before it wraps.
const MaxTick = math.MaxUint32

// TickAge returns how many microseconds have passed from t to now, tolerating one
// wraparound of the tick counter.
func TickAge(now, t uint32) uint32 {
	if now >= t {
		return now - t
	}
	return (MaxTick - t) + now
}

func durationToTicks(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}
