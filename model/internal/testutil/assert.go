// Package testutil provides shared test infrastructure for the model
// packages: float comparison helpers used across model/ and its
// sub-package tests.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSlicesClose compares two slices element-wise within tol, absolute
// or relative.
func AssertSlicesClose(t *testing.T, name string, want, got []float64, tol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("%s: got %d values, want %d", name, len(got), len(want))
		return
	}
	if !floats.EqualApprox(want, got, tol) {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}
