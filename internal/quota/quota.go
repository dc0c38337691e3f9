// Package quota holds the storage-quota arithmetic. Quotas are edited in
// GiB but stored and compared in bytes; the conversion factor is exactly
// 1024^3.
package quota

import "math"

const BytesPerGiB = 1 << 30

// WarnThresholdPercent is the usage level at which the storage display
// starts warning the user.
const WarnThresholdPercent = 90.0

// GiBToBytes converts a GiB quantity to bytes, rounded to the nearest byte.
func GiBToBytes(gib float64) int64 {
	return int64(math.Round(gib * BytesPerGiB))
}

// BytesToGiB converts bytes to GiB.
func BytesToGiB(b int64) float64 {
	return float64(b) / BytesPerGiB
}

// UsagePercent returns used/max as a percentage capped at 100. A
// non-positive max counts as 1 byte so the result stays defined.
func UsagePercent(used, max int64) float64 {
	if max <= 0 {
		max = 1
	}
	p := float64(used) / float64(max) * 100
	return math.Min(100, p)
}
