// Package tscale defines the monotonic time scalar shared by every
// component of the alignment library.
package tscale

import (
	"fmt"
	"math"
	"time"
)

// Time is a signed offset from the Unix epoch, at microsecond resolution.
//
// The zero value, [Null], means "unset" and compares less than every
// positive Time. Callers that need to distinguish "unset" from "epoch" should not
// use this type for absolute wall-clock epoch timestamps; this mirrors a
// limitation of the original C++ library, whose default-constructed
// base::Time carried the same ambiguity.
type Time int64

// Null is the distinguished sentinel meaning "unset".
const Null Time = 0

// FromTime converts a [time.Time] to a [Time], truncating to microsecond
// resolution.
func FromTime(t time.Time) Time {
	return Time(t.UnixMicro())
}

// ToTime converts a Time back to a [time.Time].
func (t Time) ToTime() time.Time {
	return time.UnixMicro(int64(t))
}

// FromSeconds builds a Time from a floating point number of seconds,
// rounded to the nearest microsecond.
func FromSeconds(s float64) Time {
	return Time(math.Round(s * 1e6))
}

// FromDuration builds a Time from a [time.Duration] measured from the
// epoch.
func FromDuration(d time.Duration) Time {
	return Time(d.Microseconds())
}

// Seconds returns the time as a floating point number of seconds.
func (t Time) Seconds() float64 {
	return float64(t) / 1e6
}

// Duration returns the time as a [time.Duration] from the epoch.
func (t Time) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// IsNull reports whether t is the unset sentinel.
func (t Time) IsNull() bool {
	return t == Null
}

// Add returns t+d.
func (t Time) Add(d Time) Time {
	return t + d
}

// Sub returns t-u.
func (t Time) Sub(u Time) Time {
	return t - u
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	return t < u
}

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool {
	return t > u
}

// Max returns the later of t and u.
func Max(t, u Time) Time {
	if t > u {
		return t
	}
	return u
}

// Min returns the earlier of t and u.
func Min(t, u Time) Time {
	if t < u {
		return t
	}
	return u
}

// String renders the time as seconds since epoch, for debug logging.
func (t Time) String() string {
	if t.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%.6fs", t.Seconds())
}
