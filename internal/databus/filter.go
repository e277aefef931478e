// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Filter reconstructs the sampled signal of a connection between the source
// port's writes and the target port's reads. A filter observes the state of
// its hosting connection through the pointer installed by AssignState.
type Filter interface {
	SetValue(t float64, val *schema.ChannelValue) error
	GetValue(t float64) (schema.ChannelValue, error)
	EnterCouplingStep(syncDt, srcDt, tgtDt float64) error
	EnterCommunication(t float64) error
	AssignState(state *schema.ConnectionState)
}

// FilterSpec selects and parameterises the filter of a connection.
type FilterSpec struct {
	Kind        schema.FilterKind
	DegreeInter int
	DegreeExtra int
}

// NewFilter builds a filter for a port of the given value type. Non-double
// ports always get a hold-type filter.
func NewFilter(spec FilterSpec, t schema.ChannelType) (Filter, error) {
	if t != schema.ChannelTypeDouble {
		switch spec.Kind {
		case schema.FilterConstantHold, schema.FilterZeroOrderHold, schema.FilterDiscrete:
		default:
			return nil, fmt.Errorf("filter kind %d requires a double port, have %s", spec.Kind, t)
		}
	}

	switch spec.Kind {
	case schema.FilterConstantHold, schema.FilterZeroOrderHold:
		return newHoldFilter(t), nil
	case schema.FilterDiscrete:
		return newDiscreteFilter(t), nil
	case schema.FilterLinearExtrapolation:
		return newExtFilter(1), nil
	case schema.FilterPolynomialExtrapolation:
		return newExtFilter(spec.DegreeExtra), nil
	case schema.FilterLinearInterpolation:
		return newIntFilter(1)
	case schema.FilterPolynomialInterExtrapolation:
		return newIntExtFilter(spec.DegreeInter, spec.DegreeExtra)
	default:
		return nil, fmt.Errorf("unknown filter kind %d", spec.Kind)
	}
}

// holdFilter keeps the last committed sample: writes during coupling steps
// land in a staging slot that is promoted at the communication point.
// It is typeless and also serves the non-double port types.
type holdFilter struct {
	state     *schema.ConnectionState
	staging   schema.ChannelValue
	committed schema.ChannelValue
}

func newHoldFilter(t schema.ChannelType) *holdFilter {
	return &holdFilter{
		staging:   schema.NewChannelValue(t),
		committed: schema.NewChannelValue(t),
	}
}

func (f *holdFilter) AssignState(state *schema.ConnectionState) {
	f.state = state
}

func (f *holdFilter) SetValue(t float64, val *schema.ChannelValue) error {
	return f.staging.Set(val)
}

func (f *holdFilter) GetValue(t float64) (schema.ChannelValue, error) {
	return f.committed, nil
}

func (f *holdFilter) EnterCouplingStep(syncDt, srcDt, tgtDt float64) error {
	return nil
}

func (f *holdFilter) EnterCommunication(t float64) error {
	return f.committed.Set(&f.staging)
}

// discreteFilter is the mirror latch for discrete signals: coupling-step
// writes update a staging cell, the communication point promotes it, reads
// always see the committed cell.
type discreteFilter struct {
	state     *schema.ConnectionState
	staging   schema.ChannelValue
	committed schema.ChannelValue
}

func newDiscreteFilter(t schema.ChannelType) *discreteFilter {
	return &discreteFilter{
		staging:   schema.NewChannelValue(t),
		committed: schema.NewChannelValue(t),
	}
}

func (f *discreteFilter) AssignState(state *schema.ConnectionState) {
	f.state = state
}

func (f *discreteFilter) SetValue(t float64, val *schema.ChannelValue) error {
	if *f.state != schema.StateCommunication {
		return f.staging.Set(val)
	}
	return nil
}

func (f *discreteFilter) GetValue(t float64) (schema.ChannelValue, error) {
	return f.committed, nil
}

func (f *discreteFilter) EnterCouplingStep(syncDt, srcDt, tgtDt float64) error {
	return nil
}

func (f *discreteFilter) EnterCommunication(t float64) error {
	return f.committed.Set(&f.staging)
}
