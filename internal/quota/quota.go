// Package quota holds the usage and limit rules shared by every entity that
// carries a flow quota: the logged-in account, a tunnel assignment and an
// admin-side user record.
//
// A quota of zero is the unlimited sentinel, for both flow (GB) and forward
// counts. Usage is always measured in bytes; quotas are whole GB.
package quota

import (
	"errors"
	"math"

	"github.com/missuo/flux-panel/internal/units"
)

// UnlimitedText is shown in place of a total when the quota is unlimited.
const UnlimitedText = "Unlimited"

// Direction selects which traffic counters are billed.
type Direction int

const (
	DirectionUnknown Direction = iota
	// Single bills outbound traffic only.
	Single
	// Double bills inbound and outbound traffic.
	Double
)

// ErrUnknownDirection is returned when an unknown direction would be sent
// back to the backend.
var ErrUnknownDirection = errors.New("unknown billing direction")

// ParseDirection maps the backend's tunnelFlow / flow code (1 single, 2 double).
func ParseDirection(code int) Direction {
	switch code {
	case 1:
		return Single
	case 2:
		return Double
	default:
		return DirectionUnknown
	}
}

// Code returns the backend code for d.
func (d Direction) Code() (int, error) {
	switch d {
	case Single:
		return 1, nil
	case Double:
		return 2, nil
	default:
		return 0, ErrUnknownDirection
	}
}

func (d Direction) String() string {
	switch d {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return "unknown"
	}
}

// IsUnlimitedFlow reports whether a GB quota is the unlimited sentinel.
func IsUnlimitedFlow(quotaGB int64) bool { return quotaGB == 0 }

// IsUnlimitedCount reports whether a forward-count quota is the unlimited sentinel.
func IsUnlimitedCount(quota int64) bool { return quota == 0 }

// UsedBytes sums the counters billed under d. An unknown direction counts
// both sides. The sum saturates at math.MaxInt64.
func UsedBytes(in, out int64, d Direction) int64 {
	if d == Single {
		return out
	}
	if in > 0 && out > math.MaxInt64-in {
		return math.MaxInt64
	}
	return in + out
}

// Percentage is a usage ratio in [0,100], or the unlimited marker.
type Percentage struct {
	Value     float64
	Unlimited bool
}

// UsagePercentage returns used as a share of the quota, clamped to [0,100].
func UsagePercentage(used, quotaGB int64) Percentage {
	if IsUnlimitedFlow(quotaGB) {
		return Percentage{Unlimited: true}
	}
	ratio := float64(used) / float64(units.GBToBytes(quotaGB))
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return Percentage{Value: ratio * 100}
}

// FormattedTotal renders a GB quota.
func FormattedTotal(quotaGB int64) string {
	if IsUnlimitedFlow(quotaGB) {
		return UnlimitedText
	}
	return units.FormatBytes(units.GBToBytes(quotaGB))
}

// FormattedUsed renders a byte count regardless of quota state.
func FormattedUsed(used int64) string { return units.FormatBytes(used) }

// Remaining returns the bytes left under a quota. ok is false for an
// unlimited quota. The result is never negative.
func Remaining(used, quotaGB int64) (left int64, ok bool) {
	if IsUnlimitedFlow(quotaGB) {
		return 0, false
	}
	left = units.GBToBytes(quotaGB) - used
	if left < 0 {
		left = 0
	}
	return left, true
}

// Exceeded reports whether used has reached a limited quota.
func Exceeded(used, quotaGB int64) bool {
	if IsUnlimitedFlow(quotaGB) {
		return false
	}
	return used >= units.GBToBytes(quotaGB)
}

// SlotsLeft returns how many more forwards fit under a count quota.
func SlotsLeft(quota, used int64) (left int64, ok bool) {
	if IsUnlimitedCount(quota) {
		return 0, false
	}
	left = quota - used
	if left < 0 {
		left = 0
	}
	return left, true
}
