// Package units renders byte counts and GB quotas on a shared 1024 base.
package units

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// BytesPerGB is the multiplier between a whole-GB quota and a byte count.
const BytesPerGB int64 = humanize.GiByte

type unit struct {
	size int64
	name string
}

// Ordered from largest to smallest.
var byteUnits = []unit{
	{humanize.TiByte, "TB"},
	{humanize.GiByte, "GB"},
	{humanize.MiByte, "MB"},
	{humanize.KiByte, "KB"},
}

// FormatBytes renders n with the largest binary unit whose value is at least
// one. Units above bytes carry one decimal place: 1024 -> "1.0 KB". A value
// that rounds up to 1024 moves to the next unit.
func FormatBytes(n int64) string {
	sign := ""
	abs := n
	if n < 0 {
		sign = "-"
		if n == math.MinInt64 {
			abs = math.MaxInt64
		} else {
			abs = -n
		}
	}
	for i, u := range byteUnits {
		if abs < u.size {
			continue
		}
		v := fmt.Sprintf("%.1f", float64(abs)/float64(u.size))
		// 1048575 B rounds to 1024.0 KB; show it as 1.0 MB instead.
		if v == "1024.0" && i > 0 {
			v, u = "1.0", byteUnits[i-1]
		}
		return fmt.Sprintf("%s%s %s", sign, v, u.name)
	}
	return fmt.Sprintf("%s%d B", sign, abs)
}

// GBToBytes converts a whole-GB quota to bytes, saturating instead of
// overflowing.
func GBToBytes(gb int64) int64 {
	switch {
	case gb > math.MaxInt64/BytesPerGB:
		return math.MaxInt64
	case gb < math.MinInt64/BytesPerGB:
		return math.MinInt64
	}
	return gb * BytesPerGB
}
