package domain

import "time"

// TimeRange selects how far back a history seed reaches. The bucket widths
// match the downsampling the history service applies per range.
type TimeRange string

const (
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
)

// Duration returns the lookback interval for the range.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range24h:
		return 24 * time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// Bucket returns the downsampling interval the history service uses for
// this range.
func (r TimeRange) Bucket() time.Duration {
	switch r {
	case Range24h:
		return 5 * time.Minute
	case Range7d:
		return time.Hour
	default:
		return time.Minute
	}
}

// Normalize maps unknown range strings to the 1h default, the same
// forgiving behavior the history service applies.
func (r TimeRange) Normalize() TimeRange {
	switch r {
	case Range1h, Range24h, Range7d:
		return r
	default:
		return Range1h
	}
}

func (r TimeRange) String() string { return string(r.Normalize()) }
