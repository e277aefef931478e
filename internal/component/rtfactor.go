// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"time"

	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// rtNow is the wall-clock source of the rt-factor accounting, swapped out in
// tests.
var rtNow = time.Now

// RTFactorData tracks the wall-clock cost of an element's steps relative to
// simulated time. All ratios are exposed as rt-factor result channels:
//
//	RealTime Clock            total elapsed wall-clock time
//	RealTime Clock Calc       wall-clock time spent inside DoStep
//	RealTime Factor Calc      DoStep wall time / simulated time, current step
//	RealTime Factor Calc (Avg) DoStep wall time / simulated time, since start
//	RealTime Factor           elapsed wall time / simulated time, current step
//	RealTime Factor (Avg)     elapsed wall time / simulated time, since start
type RTFactorData struct {
	Enabled bool

	// result channel cells; SimTimeTotal and SimTime are wall-clock seconds
	SimTimeTotal     float64
	SimTime          float64
	RTFactor         float64
	RTFactorAvg      float64
	TotalRTFactor    float64
	TotalRTFactorAvg float64

	// accumulators
	stepWall time.Duration
	commTime float64

	startTick time.Time

	startWall    time.Time
	lastCommWall time.Time
}

// SetupChannels registers the timing channels on the element's databus.
func (rt *RTFactorData) SetupChannels(db *databus.Databus, compName string) error {
	if !rt.Enabled {
		return nil
	}

	channels := []struct {
		name string
		unit string
		cell *float64
	}{
		{"RealTime Clock", "s", &rt.SimTimeTotal},
		{"RealTime Clock Calc", "s", &rt.SimTime},
		{"RealTime Factor Calc", "-", &rt.RTFactor},
		{"RealTime Factor Calc (Avg)", "-", &rt.RTFactorAvg},
		{"RealTime Factor", "-", &rt.TotalRTFactor},
		{"RealTime Factor (Avg)", "-", &rt.TotalRTFactorAvg},
	}

	for _, ch := range channels {
		id := compName + "." + ch.name
		if err := db.AddRTFactorChannel(ch.name, id, ch.unit, ch.cell, schema.ChannelTypeDouble); err != nil {
			return err
		}
	}

	return nil
}

// BeginStep samples the wall clock before an element's DoStep.
func (rt *RTFactorData) BeginStep() {
	if !rt.Enabled {
		return
	}
	rt.startTick = rtNow()
	if rt.startWall.IsZero() {
		rt.startWall = rt.startTick
		rt.lastCommWall = rt.startTick
	}
}

// EndStep accumulates the wall-clock cost of one coupling step covering
// simulated time dt.
func (rt *RTFactorData) EndStep(dt float64) {
	if !rt.Enabled {
		return
	}
	d := rtNow().Sub(rt.startTick)
	rt.stepWall += d
	rt.SimTime += d.Seconds()
	rt.commTime += dt
}

// AtCommunicationPoint folds the per-step accumulators into the published
// ratios. simSpan is the total simulated span since the run began.
func (rt *RTFactorData) AtCommunicationPoint(simSpan float64) {
	if !rt.Enabled || rt.commTime <= 0 {
		return
	}

	now := rtNow()
	commWall := now.Sub(rt.lastCommWall).Seconds()
	totalWall := now.Sub(rt.startWall).Seconds()
	rt.SimTimeTotal = totalWall

	rt.RTFactor = rt.stepWall.Seconds() / rt.commTime
	rt.TotalRTFactor = commWall / rt.commTime
	if simSpan > 0 {
		rt.RTFactorAvg = rt.SimTime / simSpan
		rt.TotalRTFactorAvg = totalWall / simSpan
	}

	rt.stepWall = 0
	rt.commTime = 0
	rt.lastCommWall = now
}
