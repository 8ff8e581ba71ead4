// Package helpers provides small numeric helpers shared by the dashboard and renderers.
package helpers

import (
	"math"
	"strconv"
)

// ClampInt restricts v to the range [lowerLimit, upperLimit].
func ClampInt(v, lowerLimit, upperLimit int) int {
	if v < lowerLimit {
		return lowerLimit
	}
	if v > upperLimit {
		return upperLimit
	}
	return v
}

// StepPage moves a 1-indexed page by delta, never going below 1.
func StepPage(page, delta int) int {
	return ClampInt(page+delta, 1, math.MaxInt32)
}

// Percent returns part/total*100, or 0 when total is not positive.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatPercent renders a percentage with one decimal, or "0" when total is not positive.
func FormatPercent(part, total int64) string {
	if total <= 0 {
		return "0"
	}
	return strconv.FormatFloat(Percent(part, total), 'f', 1, 64)
}

// BarWidth is count relative to maxCount in percent. An empty or zero maximum counts as 1.
func BarWidth(count, maxCount int64) float64 {
	if maxCount <= 0 {
		maxCount = 1
	}
	return float64(count) / float64(maxCount) * 100
}
