// Package testutil provides reusable test helper functions for slew
// engine tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for sample comparisons.
const (
	DefaultTolerance = 1e-9
	RoundTolerance   = 1e-4 // cosine shapes round to 4 decimal places
)

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [minVal, maxVal].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertMonotonic verifies that a slice moves strictly in the direction
// of sign: +1 for strictly increasing, -1 for strictly decreasing.
func AssertMonotonic(t *testing.T, s []float64, sign int, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		d := s[i] - s[i-1]
		if sign > 0 && d <= 0 {
			return assert.Fail(t, "not strictly increasing",
				"s[%d]=%f <= s[%d]=%f", i, s[i], i-1, s[i-1])
		}
		if sign < 0 && d >= 0 {
			return assert.Fail(t, "not strictly decreasing",
				"s[%d]=%f >= s[%d]=%f", i, s[i], i-1, s[i-1])
		}
	}
	return true
}

// AssertAllEqual verifies every element equals want within tolerance.
func AssertAllEqual(t *testing.T, s []float64, want, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if !assert.InDelta(t, want, v, tolerance, "s[%d]=%f, want %f", i, v, want) {
			return false
		}
	}
	return true
}
