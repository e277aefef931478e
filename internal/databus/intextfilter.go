// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// intExtFilter composes an interpolation filter with an extrapolation
// filter: reads inside the committed interpolation range interpolate,
// everything else extrapolates. When neither filter covers the requested
// time, the interpolation data is extrapolated with a warning.
type intExtFilter struct {
	inner *intFilter
	outer *extFilter

	boundsWarn util.RepeatGuard
}

func newIntExtFilter(degreeInter, degreeExtra int) (*intExtFilter, error) {
	inner, err := newIntFilter(degreeInter)
	if err != nil {
		return nil, err
	}
	return &intExtFilter{
		inner:      inner,
		outer:      newExtFilter(degreeExtra),
		boundsWarn: util.RepeatGuard{Max: 5},
	}, nil
}

func (f *intExtFilter) AssignState(state *schema.ConnectionState) {
	f.inner.AssignState(state)
	f.outer.AssignState(state)
}

func (f *intExtFilter) SetValue(t float64, val *schema.ChannelValue) error {
	if err := f.inner.SetValue(t, val); err != nil {
		return err
	}
	return f.outer.SetValue(t, val)
}

func (f *intExtFilter) GetValue(t float64) (schema.ChannelValue, error) {
	if f.inner.inReadRange(t) {
		return f.inner.GetValue(t)
	}

	// time within the extrapolation window means the window is degenerate
	// for this request; fall back to the interpolation data
	if n := f.outer.poly.n(); n == 0 || (t < f.outer.poly.x(n-1) && t > f.outer.poly.x(0)) {
		if f.boundsWarn.Allow() {
			cclog.Warn("Connection: Out of bounds for interpolation and extrapolation, extrapolate from interpolation data")
		}
		return f.inner.GetValue(t)
	}

	return f.outer.GetValue(t)
}

func (f *intExtFilter) EnterCouplingStep(syncDt, srcDt, tgtDt float64) error {
	if err := f.inner.EnterCouplingStep(syncDt, srcDt, tgtDt); err != nil {
		return err
	}
	return f.outer.EnterCouplingStep(syncDt, srcDt, tgtDt)
}

func (f *intExtFilter) EnterCommunication(t float64) error {
	if err := f.inner.EnterCommunication(t); err != nil {
		return err
	}
	return f.outer.EnterCommunication(t)
}
