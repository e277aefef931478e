// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"math"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-cosim/internal/databus"
)

// fakeClock stands in for the wall clock so the rt-factor ratios are exact.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func withFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	c := &fakeClock{now: time.Unix(1000, 0)}
	rtNow = func() time.Time { return c.now }
	t.Cleanup(func() { rtNow = time.Now })
	return c
}

func TestRTFactorRatios(t *testing.T) {
	clock := withFakeClock(t)

	rt := &RTFactorData{Enabled: true}

	// first synchronisation step: two coupling steps of 0.05 s simulated
	// time, 10 ms and 30 ms wall-clock inside DoStep, 10 ms overhead
	rt.BeginStep()
	clock.advance(10 * time.Millisecond)
	rt.EndStep(0.05)

	rt.BeginStep()
	clock.advance(30 * time.Millisecond)
	rt.EndStep(0.05)

	clock.advance(10 * time.Millisecond)
	rt.AtCommunicationPoint(0.1)

	// DoStep wall 40 ms over 0.1 s simulated
	if math.Abs(rt.RTFactor-0.4) > 1e-12 {
		t.Errorf("RTFactor = %g, want 0.4", rt.RTFactor)
	}
	if math.Abs(rt.RTFactorAvg-0.4) > 1e-12 {
		t.Errorf("RTFactorAvg = %g, want 0.4", rt.RTFactorAvg)
	}
	// elapsed wall 50 ms over 0.1 s simulated
	if math.Abs(rt.TotalRTFactor-0.5) > 1e-12 {
		t.Errorf("TotalRTFactor = %g, want 0.5", rt.TotalRTFactor)
	}
	if math.Abs(rt.TotalRTFactorAvg-0.5) > 1e-12 {
		t.Errorf("TotalRTFactorAvg = %g, want 0.5", rt.TotalRTFactorAvg)
	}
	// the clock channels carry wall-clock seconds, not simulated time
	if math.Abs(rt.SimTime-0.04) > 1e-12 {
		t.Errorf("SimTime = %g s wall, want 0.04", rt.SimTime)
	}
	if math.Abs(rt.SimTimeTotal-0.05) > 1e-12 {
		t.Errorf("SimTimeTotal = %g s wall, want 0.05", rt.SimTimeTotal)
	}

	// second step: 5 ms wall over 0.1 s simulated, no overhead
	rt.BeginStep()
	clock.advance(5 * time.Millisecond)
	rt.EndStep(0.1)
	rt.AtCommunicationPoint(0.2)

	if math.Abs(rt.RTFactor-0.05) > 1e-12 {
		t.Errorf("RTFactor after second step = %g, want 0.05", rt.RTFactor)
	}
	// 45 ms of DoStep wall over 0.2 s simulated
	if math.Abs(rt.RTFactorAvg-0.225) > 1e-12 {
		t.Errorf("RTFactorAvg after second step = %g, want 0.225", rt.RTFactorAvg)
	}
	// 55 ms elapsed over 0.2 s simulated
	if math.Abs(rt.TotalRTFactorAvg-0.275) > 1e-12 {
		t.Errorf("TotalRTFactorAvg after second step = %g, want 0.275", rt.TotalRTFactorAvg)
	}
	if math.Abs(rt.SimTimeTotal-0.055) > 1e-12 {
		t.Errorf("SimTimeTotal after second step = %g s wall, want 0.055", rt.SimTimeTotal)
	}
}

func TestRTFactorDisabledIsInert(t *testing.T) {
	clock := withFakeClock(t)

	rt := &RTFactorData{}
	rt.BeginStep()
	clock.advance(time.Second)
	rt.EndStep(0.1)
	rt.AtCommunicationPoint(0.1)

	if rt.RTFactor != 0 || rt.SimTime != 0 || rt.SimTimeTotal != 0 {
		t.Error("disabled rt-factor accounting must not accumulate")
	}
}

func TestRTFactorChannels(t *testing.T) {
	rt := &RTFactorData{Enabled: true}
	db := databus.NewDatabus(0, nil, nil)

	if err := rt.SetupChannels(db, "E"); err != nil {
		t.Fatal(err)
	}
	if db.NumRTFactorChannels() != 6 {
		t.Fatalf("registered %d rt-factor channels, want 6", db.NumRTFactorChannels())
	}
	if name := db.RTFactorInfo(0).Name; name != "RealTime Clock" {
		t.Errorf("first channel named %q, want \"RealTime Clock\"", name)
	}

	disabled := &RTFactorData{}
	db2 := databus.NewDatabus(1, nil, nil)
	if err := disabled.SetupChannels(db2, "E"); err != nil {
		t.Fatal(err)
	}
	if db2.NumRTFactorChannels() != 0 {
		t.Error("disabled rt-factor accounting must register no channels")
	}
}
