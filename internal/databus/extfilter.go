// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// extFilter extrapolates with a polynomial of the given degree through the
// most recent communication-point samples. During a synchronisation step only
// the latest coupling-step sample is remembered; the communication point
// commits it into the polynomial window.
type extFilter struct {
	state  *schema.ConnectionState
	degree int

	poly *polynomial
	// n counts committed samples up to degree+1, after which the window
	// shifts.
	n int

	lastTime  float64
	lastValue float64
	value     float64

	emptyWarn bool
}

func newExtFilter(degree int) *extFilter {
	if degree < 0 {
		degree = 0
	}
	capacity := degree + 1
	if capacity < 4 {
		capacity = 4
	}
	return &extFilter{
		degree: degree,
		poly:   newPolynomial(capacity),
	}
}

func (f *extFilter) AssignState(state *schema.ConnectionState) {
	f.state = state
}

func (f *extFilter) SetValue(t float64, val *schema.ChannelValue) error {
	if *f.state != schema.StateCommunication {
		f.lastTime = t
		f.lastValue = val.Double()
	}
	return nil
}

func (f *extFilter) GetValue(t float64) (schema.ChannelValue, error) {
	if f.poly.n() == 0 {
		if !f.emptyWarn {
			cclog.Warn("Connection: Cannot evaluate empty extrapolation polynomial")
			f.emptyWarn = true
		}
		return schema.DoubleValue(f.value), nil
	}

	// exact hit on a stored sample returns the stored value
	for i := f.poly.n() - 1; i >= 0; i-- {
		if t == f.poly.x(i) {
			return schema.DoubleValue(f.poly.y(i)), nil
		} else if t > f.poly.x(i) {
			break
		}
	}

	f.value = f.poly.evaluate(t)
	return schema.DoubleValue(f.value), nil
}

func (f *extFilter) EnterCouplingStep(syncDt, srcDt, tgtDt float64) error {
	return nil
}

func (f *extFilter) EnterCommunication(t float64) error {
	time, value := f.lastTime, f.lastValue

	if f.poly.n() > 0 && f.poly.x(f.poly.n()-1) == time {
		f.poly.replaceLast(time, value)
	} else if f.n < f.degree+1 {
		f.poly.add(time, value)
		f.n++
	} else {
		f.poly.shift(time, value)
	}

	f.poly.calcCoefficients()
	return nil
}
