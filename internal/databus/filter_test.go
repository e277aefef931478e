// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"math"
	"testing"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

func set(t *testing.T, f Filter, time, value float64) {
	t.Helper()
	v := schema.DoubleValue(value)
	if err := f.SetValue(time, &v); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, f Filter, time float64) float64 {
	t.Helper()
	v, err := f.GetValue(time)
	if err != nil {
		t.Fatal(err)
	}
	return v.Double()
}

func TestHoldFilterPromotesAtCommunication(t *testing.T) {
	state := schema.StateInit
	f := newHoldFilter(schema.ChannelTypeDouble)
	f.AssignState(&state)

	set(t, f, 0.0, 7.5)
	if got := get(t, f, 0.0); got != 0.0 {
		t.Errorf("staged value visible before communication: %g", got)
	}

	if err := f.EnterCommunication(0.0); err != nil {
		t.Fatal(err)
	}
	if got := get(t, f, 0.0); got != 7.5 {
		t.Errorf("got %g, want 7.5", got)
	}
	if got := get(t, f, 123.0); got != 7.5 {
		t.Errorf("hold filter must be constant in time, got %g", got)
	}
}

func TestDiscreteFilterMirrorLatch(t *testing.T) {
	state := schema.StateCouplingStep
	f := newDiscreteFilter(schema.ChannelTypeInteger)
	f.AssignState(&state)

	v := schema.IntegerValue(3)
	if err := f.SetValue(0.1, &v); err != nil {
		t.Fatal(err)
	}
	committed, _ := f.GetValue(0.1)
	if committed.Integer() != 0 {
		t.Error("staging must not be visible before promotion")
	}

	if err := f.EnterCommunication(0.1); err != nil {
		t.Fatal(err)
	}
	committed, _ = f.GetValue(0.1)
	if committed.Integer() != 3 {
		t.Errorf("got %d, want 3", committed.Integer())
	}

	// writes in communication mode are ignored
	state = schema.StateCommunication
	v = schema.IntegerValue(9)
	f.SetValue(0.1, &v)
	committed, _ = f.GetValue(0.1)
	if committed.Integer() != 3 {
		t.Error("communication-mode write must not alter the latch")
	}
}

func TestExtFilterLinearExtrapolation(t *testing.T) {
	state := schema.StateCouplingStep
	f := newExtFilter(1)
	f.AssignState(&state)

	set(t, f, 0.0, 0.0)
	f.EnterCommunication(0.0)
	set(t, f, 0.1, 1.0)
	f.EnterCommunication(0.1)

	// through (0,0) and (0.1,1): slope 10
	if got := get(t, f, 0.2); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("extrapolation to 0.2 = %g, want 2.0", got)
	}

	// exact hit on a stored time returns the stored value
	if got := get(t, f, 0.1); got != 1.0 {
		t.Errorf("stored sample lookup = %g, want 1.0", got)
	}
}

func TestExtFilterWindowShift(t *testing.T) {
	state := schema.StateCouplingStep
	f := newExtFilter(1)
	f.AssignState(&state)

	for i := 0; i <= 4; i++ {
		set(t, f, float64(i), float64(i*i))
		f.EnterCommunication(float64(i))
	}

	// degree 1 keeps two samples: (3,9), (4,16) -> slope 7
	if got := get(t, f, 5.0); math.Abs(got-23.0) > 1e-12 {
		t.Errorf("extrapolation after shift = %g, want 23.0", got)
	}
}

func TestExtFilterReplacesEqualTimeSample(t *testing.T) {
	state := schema.StateCouplingStep
	f := newExtFilter(1)
	f.AssignState(&state)

	set(t, f, 0.0, 1.0)
	f.EnterCommunication(0.0)
	set(t, f, 0.0, 2.0)
	f.EnterCommunication(0.0)

	if got := get(t, f, 0.0); got != 2.0 {
		t.Errorf("equal-time sample must replace the last entry, got %g", got)
	}
}

func TestIntFilterInterpolation(t *testing.T) {
	state := schema.StateCouplingStep
	f, err := newIntFilter(1)
	if err != nil {
		t.Fatal(err)
	}
	f.AssignState(&state)

	set(t, f, 0.0, 0.0)
	set(t, f, 0.1, 1.0)
	if err := f.EnterCommunication(0.1); err != nil {
		t.Fatal(err)
	}

	if got := get(t, f, 0.05); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("interpolation at 0.05 = %g, want 0.5", got)
	}
	// constant hold beyond the buffer ends
	if got := get(t, f, -1.0); got != 0.0 {
		t.Errorf("left extrapolation = %g, want 0.0", got)
	}
	if got := get(t, f, 1.0); got != 1.0 {
		t.Errorf("right extrapolation = %g, want 1.0", got)
	}
}

func TestIntFilterBufferSwapCarriesLastSample(t *testing.T) {
	state := schema.StateCouplingStep
	f, err := newIntFilter(1)
	if err != nil {
		t.Fatal(err)
	}
	f.AssignState(&state)

	set(t, f, 0.0, 0.0)
	set(t, f, 0.1, 1.0)
	f.EnterCommunication(0.1)
	set(t, f, 0.2, 3.0)
	f.EnterCommunication(0.2)

	// the new read buffer starts with the carried sample (0.1, 1.0)
	if got := get(t, f, 0.15); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("interpolation across swap = %g, want 2.0", got)
	}
}

func TestIntExtFilterDispatch(t *testing.T) {
	state := schema.StateCouplingStep
	f, err := newIntExtFilter(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	f.AssignState(&state)

	set(t, f, 0.0, 0.0)
	set(t, f, 0.1, 1.0)
	f.EnterCommunication(0.1)
	set(t, f, 0.2, 2.0)
	f.EnterCommunication(0.2)

	// inside the read range: interpolate
	if got := get(t, f, 0.15); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("interpolation = %g, want 1.5", got)
	}
	// past the read range: extrapolate through the committed samples
	if got := get(t, f, 0.3); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("extrapolation = %g, want 3.0", got)
	}
}

func TestEnterCommunicationTwiceIsNoOp(t *testing.T) {
	conn := &Connection{store: schema.DoubleValue(0)}
	conn.filter = newHoldFilter(schema.ChannelTypeDouble)
	conn.filter.AssignState(&conn.state)

	v := schema.DoubleValue(4.0)
	conn.filter.SetValue(0.0, &v)

	if err := conn.EnterCommunication(0.0); err != nil {
		t.Fatal(err)
	}
	before, _ := conn.filter.GetValue(0.0)

	// a second promotion at the same point must not change the output
	if err := conn.EnterCommunication(0.0); err != nil {
		t.Fatal(err)
	}
	after, _ := conn.filter.GetValue(0.0)
	if !before.Eq(&after) {
		t.Error("enter communication twice must be a no-op")
	}
}
