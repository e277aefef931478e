// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package steptypes

import (
	"math"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/internal/model"
	"github.com/ClusterCockpit/cc-cosim/internal/storage"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// stepRecorder is a minimal element recording its DoStep intervals.
type stepRecorder struct {
	*component.BaseComponent

	out       float64
	intervals [][2]float64
	outValue  func(start, end float64) float64
}

func newStepRecorder(name string) *stepRecorder {
	r := &stepRecorder{BaseComponent: component.NewBaseComponent(name, "recorder")}
	r.SetInputsAtEndTime(false)
	return r
}

func (r *stepRecorder) Read(input *schema.ComponentInput) error { return nil }

func (r *stepRecorder) Setup() error {
	outInfos := []*databus.ChannelInfo{
		databus.NewChannelInfo("out", r.Name()+".out", "", schema.ChannelTypeDouble),
	}
	r.DeclareChannels(nil, outInfos)
	return r.Databus().SetOutReference(0, &r.out, schema.ChannelTypeDouble)
}

func (r *stepRecorder) DoStep(start, dt, end float64, isNewStep bool) error {
	r.intervals = append(r.intervals, [2]float64{start, end})
	if r.outValue != nil {
		r.out = r.outValue(start, end)
	}
	return nil
}

func buildRecorderModel(t *testing.T, comps ...*stepRecorder) *model.Model {
	t.Helper()
	m := model.New("test")
	for _, c := range comps {
		if err := m.AddComponent(c); err != nil {
			t.Fatal(err)
		}
		if err := c.Setup(); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}
	return m
}

// Multi-rate sequential: element F with own step 0.05 is stepped twice per
// synchronisation step, element G without own time once.
func TestMultiRateStepping(t *testing.T) {
	f := newStepRecorder("F")
	f.SetTimeStep(0.05)
	g := newStepRecorder("G")

	m := buildRecorderModel(t, f, g)

	rs := storage.NewResultsStorage()
	if err := rs.Read(&schema.ResultsInput{}, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := rs.Setup(0.0); err != nil {
		t.Fatal(err)
	}
	for _, comp := range m.Components {
		cs := storage.NewComponentStorage()
		if err := cs.Setup(rs, comp, 0.1, comp.TimeStep()); err != nil {
			t.Fatal(err)
		}
		comp.SetStore(cs)
	}

	if err := f.Initialize(0); err != nil {
		t.Fatal(err)
	}
	if err := g.Initialize(0); err != nil {
		t.Fatal(err)
	}

	driver, err := New(Sequential)
	if err != nil {
		t.Fatal(err)
	}
	params := &Params{Time: 0, TimeStepSize: 0.1, TimeEndStep: 0.1, IsNewStep: true}
	if err := driver.Configure(params, m.SubModel); err != nil {
		t.Fatal(err)
	}
	if err := driver.DoStep(params, m.SubModel); err != nil {
		t.Fatal(err)
	}

	wantF := [][2]float64{{0, 0.05}, {0.05, 0.1}}
	if len(f.intervals) != 2 {
		t.Fatalf("F stepped %d times, want 2", len(f.intervals))
	}
	for i, want := range wantF {
		if math.Abs(f.intervals[i][0]-want[0]) > 1e-12 || math.Abs(f.intervals[i][1]-want[1]) > 1e-12 {
			t.Errorf("F interval %d = %v, want %v", i, f.intervals[i], want)
		}
	}

	if len(g.intervals) != 1 {
		t.Fatalf("G stepped %d times, want 1", len(g.intervals))
	}
	if g.intervals[0] != [2]float64{0, 0.1} {
		t.Errorf("G interval = %v, want [0, 0.1]", g.intervals[0])
	}

	if f.Time() != 0.1 {
		t.Errorf("F time = %.17g, want 0.1", f.Time())
	}

	// both elements stored exactly one out row, at the communication point
	for _, comp := range m.Components {
		rows := comp.Store().(*storage.ComponentStorage).Channels(schema.ChannelStoreOut)
		if rows.Length() != 1 {
			t.Fatalf("%s stored %d out rows, want 1", comp.Name(), rows.Length())
		}
		v := rows.ValueAt(0, 0)
		if tm := v.Double(); math.Abs(tm-0.1) > 1e-12 {
			t.Errorf("%s stored row at %g, want 0.1", comp.Name(), tm)
		}
	}
}

// NaN under the strict policy aborts the synchronisation step.
func TestNaNAbortsStep(t *testing.T) {
	bad := newStepRecorder("bad")
	bad.outValue = func(start, end float64) float64 {
		if end >= 0.2 {
			return math.NaN()
		}
		return 1.0
	}

	m := buildRecorderModel(t, bad)
	bad.Databus().OutPort(0).SetNaNCheck(schema.NaNCheckAlways, 0)
	if err := bad.Initialize(0); err != nil {
		t.Fatal(err)
	}

	driver, err := New(Sequential)
	if err != nil {
		t.Fatal(err)
	}

	params := &Params{Time: 0, TimeStepSize: 0.1, TimeEndStep: 0.1, IsNewStep: true}
	if err := driver.DoStep(params, m.SubModel); err != nil {
		t.Fatalf("step to 0.1 must pass: %v", err)
	}

	params.Time, params.TimeEndStep = 0.1, 0.2
	if err := driver.DoStep(params, m.SubModel); err == nil {
		t.Fatal("expected error for NaN output under strict policy")
	}
}

// All three drivers advance two unconnected elements identically across one
// step.
func TestDriversAdvanceTwoElements(t *testing.T) {
	for _, kind := range []Kind{Sequential, ParallelST, ParallelMT} {
		a := newStepRecorder("A")
		b := newStepRecorder("B")
		m := buildRecorderModel(t, a, b)

		if err := a.Initialize(0); err != nil {
			t.Fatal(err)
		}
		if err := b.Initialize(0); err != nil {
			t.Fatal(err)
		}

		driver, err := New(kind)
		if err != nil {
			t.Fatal(err)
		}
		params := &Params{Time: 0, TimeStepSize: 0.1, TimeEndStep: 0.1, IsNewStep: true}
		if err := driver.Configure(params, m.SubModel); err != nil {
			t.Fatal(err)
		}
		if err := driver.DoStep(params, m.SubModel); err != nil {
			t.Fatalf("driver %d: %v", kind, err)
		}

		if a.Time() != 0.1 || b.Time() != 0.1 {
			t.Errorf("driver %d: times = (%g, %g), want (0.1, 0.1)", kind, a.Time(), b.Time())
		}

		if err := driver.Finish(params, m.SubModel); err != nil {
			t.Errorf("driver %d: finish: %v", kind, err)
		}
	}
}

// An element with rt-factor accounting enabled publishes one timing row per
// communication point; the ratios are wall-clock over simulated time and
// the wall-clock channels never exceed the real elapsed time.
func TestRTFactorStoredAtCommunicationPoint(t *testing.T) {
	r := newStepRecorder("R")
	m := buildRecorderModel(t, r)

	rt := r.RTData()
	rt.Enabled = true
	if err := rt.SetupChannels(r.Databus(), r.Name()); err != nil {
		t.Fatal(err)
	}

	rs := storage.NewResultsStorage()
	if err := rs.Read(&schema.ResultsInput{}, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := rs.Setup(0.0); err != nil {
		t.Fatal(err)
	}
	cs := storage.NewComponentStorage()
	if err := cs.Setup(rs, r, 0.1, r.TimeStep()); err != nil {
		t.Fatal(err)
	}
	r.SetStore(cs)

	if err := r.Initialize(0); err != nil {
		t.Fatal(err)
	}

	driver, err := New(Sequential)
	if err != nil {
		t.Fatal(err)
	}
	params := &Params{Time: 0, TimeStepSize: 0.1, TimeEndStep: 0.1, IsNewStep: true}
	start := time.Now()
	if err := driver.DoStep(params, m.SubModel); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start).Seconds()

	rows := cs.Channels(schema.ChannelStoreRTFactor)
	if rows.Length() != 1 {
		t.Fatalf("stored %d rt-factor rows, want 1", rows.Length())
	}
	rtv := rows.ValueAt(0, 0)
	if tm := rtv.Double(); math.Abs(tm-0.1) > 1e-12 {
		t.Errorf("rt-factor row at %g, want 0.1", tm)
	}
	// 6 timing channels plus the time column
	if rows.NumChannels() != 7 {
		t.Fatalf("rt-factor row has %d columns, want 7", rows.NumChannels())
	}

	// the clock channels are wall-clock seconds bounded by the real run
	// time, far below the 0.1 s of simulated time
	if rt.SimTime < 0 || rt.SimTime > elapsed {
		t.Errorf("SimTime = %g s wall, want within [0, %g]", rt.SimTime, elapsed)
	}
	if rt.SimTimeTotal < rt.SimTime || rt.SimTimeTotal > elapsed {
		t.Errorf("SimTimeTotal = %g s wall, want within [%g, %g]", rt.SimTimeTotal, rt.SimTime, elapsed)
	}
	// a near-instant DoStep must not produce the degenerate ratio 1.0
	if rt.RTFactorAvg > elapsed/0.1 {
		t.Errorf("RTFactorAvg = %g exceeds wall/sim bound %g", rt.RTFactorAvg, elapsed/0.1)
	}
}

// A finished element sets the OR-reduced flag and is not stepped again.
func TestFinishedComponentFlag(t *testing.T) {
	a := newStepRecorder("A")
	_ = buildRecorderModel(t, a)
	if err := a.Initialize(0); err != nil {
		t.Fatal(err)
	}
	a.SetFinishState(schema.Finished)

	params := &Params{Time: 0, TimeStepSize: 0.1, TimeEndStep: 0.1, IsNewStep: true}
	if err := DoCommunicationStep(a, 0, params); err != nil {
		t.Fatal(err)
	}
	if !params.ComponentFinished() {
		t.Error("finished element must set the step flag")
	}
	if len(a.intervals) != 0 {
		t.Error("finished element must not be stepped")
	}
}
