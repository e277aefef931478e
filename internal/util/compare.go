// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package util

import (
	"math"
	"sync/atomic"
)

// The simulation-wide absolute epsilon used by all time comparisons. It is
// set once by the task before the stepping loop starts
// (relativeEps * deltaTime) and read from every driver thread.
var timeEps atomic.Value

func init() {
	timeEps.Store(1e-8)
}

// SetTimeEps installs the absolute epsilon for time comparisons.
func SetTimeEps(eps float64) {
	timeEps.Store(eps)
}

// TimeEps returns the current absolute epsilon.
func TimeEps() float64 {
	return timeEps.Load().(float64)
}

// DoubleEq reports a == b within the global epsilon.
func DoubleEq(a, b float64) bool {
	return math.Abs(a-b) <= TimeEps()
}

// DoubleLt reports a < b outside the global epsilon.
func DoubleLt(a, b float64) bool {
	return b-a > TimeEps()
}

// DoubleGt reports a > b outside the global epsilon.
func DoubleGt(a, b float64) bool {
	return a-b > TimeEps()
}

// DoubleLeq reports a <= b within the global epsilon.
func DoubleLeq(a, b float64) bool {
	return a-b <= TimeEps()
}

// DoubleGeq reports a >= b within the global epsilon.
func DoubleGeq(a, b float64) bool {
	return b-a <= TimeEps()
}
