// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// probe is a minimal element with one double outport bound to Value.
type probe struct {
	*component.BaseComponent
	Value float64
}

func newProbe(t *testing.T, name string) *probe {
	t.Helper()
	p := &probe{BaseComponent: component.NewBaseComponent(name, "probe")}
	outInfos := []*databus.ChannelInfo{
		databus.NewChannelInfo("out", name+".out", "V", schema.ChannelTypeDouble),
	}
	p.DeclareChannels(nil, outInfos)
	if err := p.Databus().SetOutReference(0, &p.Value, schema.ChannelTypeDouble); err != nil {
		t.Fatal(err)
	}
	return p
}

func (p *probe) Read(input *schema.ComponentInput) error     { return nil }
func (p *probe) Setup() error                                { return nil }
func (p *probe) DoStep(start, dt, end float64, b bool) error { return nil }

func (p *probe) push(t *testing.T, time float64) {
	t.Helper()
	if err := p.Databus().TriggerOutChannels(schema.Point(time)); err != nil {
		t.Fatal(err)
	}
}

func setupStorage(t *testing.T, p *probe, input *schema.ComponentResultsInput, dir string) (*ResultsStorage, *ComponentStorage) {
	t.Helper()

	rs := NewResultsStorage()
	if err := rs.Read(&schema.ResultsInput{}, dir); err != nil {
		t.Fatal(err)
	}
	if err := rs.Setup(0.0); err != nil {
		t.Fatal(err)
	}

	cs := NewComponentStorage()
	if err := cs.Read(input); err != nil {
		t.Fatal(err)
	}
	if err := cs.Setup(rs, p, 0.1, p.TimeStep()); err != nil {
		t.Fatal(err)
	}
	p.SetStore(cs)

	if err := rs.SetupBackends(); err != nil {
		t.Fatal(err)
	}

	return rs, cs
}

func storeOut(t *testing.T, cs *ComponentStorage, time float64, level schema.StoreLevel) {
	t.Helper()
	if err := cs.StoreChannels(schema.ChannelStoreOut, time, level); err != nil {
		t.Fatal(err)
	}
}

func TestStoreRowsMonotonic(t *testing.T) {
	p := newProbe(t, "P")
	_, cs := setupStorage(t, p, nil, t.TempDir())

	p.Value = 1.0
	p.push(t, 0.0)
	storeOut(t, cs, 0.0, schema.StoreSynchronization)
	p.Value = 2.0
	p.push(t, 0.1)
	storeOut(t, cs, 0.1, schema.StoreSynchronization)

	rows := cs.Channels(schema.ChannelStoreOut)
	if rows.Length() != 2 {
		t.Fatalf("stored %d rows, want 2", rows.Length())
	}
	v0, v1 := rows.ValueAt(0, 0), rows.ValueAt(1, 0)
	if v0.Double() > v1.Double() {
		t.Error("row times must be non-decreasing")
	}

	// regression is an error
	if err := cs.StoreChannels(schema.ChannelStoreOut, 0.05, schema.StoreSynchronization); err == nil {
		t.Error("expected error for time regression")
	}
}

func TestStoreSameTimeOverwrites(t *testing.T) {
	p := newProbe(t, "P")
	_, cs := setupStorage(t, p, nil, t.TempDir())

	p.Value = 1.0
	p.push(t, 0.1)
	storeOut(t, cs, 0.1, schema.StoreSynchronization)
	p.Value = 5.0
	p.push(t, 0.1)
	storeOut(t, cs, 0.1, schema.StoreSynchronization)

	rows := cs.Channels(schema.ChannelStoreOut)
	if rows.Length() != 1 {
		t.Fatalf("stored %d rows, want 1 (overwrite)", rows.Length())
	}
	vv := rows.ValueAt(0, 1)
	if v := vv.Double(); v != 5.0 {
		t.Errorf("last sample must win, got %g", v)
	}
}

func TestStoreLevelGate(t *testing.T) {
	p := newProbe(t, "P")
	_, cs := setupStorage(t, p, nil, t.TempDir())

	p.push(t, 0.05)
	storeOut(t, cs, 0.05, schema.StoreCoupling)
	if cs.Channels(schema.ChannelStoreOut).Length() != 0 {
		t.Error("coupling rows must be dropped at synchronization level")
	}
}

func TestStartEndTimeGate(t *testing.T) {
	p := newProbe(t, "P")
	start, end := 0.1, 0.2
	_, cs := setupStorage(t, p, &schema.ComponentResultsInput{StartTime: &start, EndTime: &end}, t.TempDir())

	for _, tm := range []float64{0.0, 0.1, 0.2, 0.3} {
		p.push(t, tm)
		storeOut(t, cs, tm, schema.StoreSynchronization)
	}

	rows := cs.Channels(schema.ChannelStoreOut)
	if rows.Length() != 2 {
		t.Fatalf("stored %d rows, want 2 (start/end gate)", rows.Length())
	}
}

func TestStepTimeGate(t *testing.T) {
	p := newProbe(t, "P")
	step := 0.2
	_, cs := setupStorage(t, p, &schema.ComponentResultsInput{StepTime: &step}, t.TempDir())

	for _, tm := range []float64{0.0, 0.1, 0.2, 0.3, 0.4} {
		p.push(t, tm)
		storeOut(t, cs, tm, schema.StoreSynchronization)
	}

	rows := cs.Channels(schema.ChannelStoreOut)
	if rows.Length() != 3 {
		t.Fatalf("stored %d rows, want 3 (0.0, 0.2, 0.4)", rows.Length())
	}
}

func TestStepTimeAndStepCountExclusive(t *testing.T) {
	step := 0.2
	count := 2
	cs := NewComponentStorage()
	err := cs.Read(&schema.ComponentResultsInput{StepTime: &step, StepCount: &count})
	if err == nil {
		t.Error("expected error for stepTime together with stepCount")
	}
}

func TestStepCountScaling(t *testing.T) {
	p := newProbe(t, "P")
	p.SetTimeStep(0.2)
	count := 4

	rs := NewResultsStorage()
	if err := rs.Read(&schema.ResultsInput{}, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := rs.Setup(0.0); err != nil {
		t.Fatal(err)
	}
	cs := NewComponentStorage()
	if err := cs.Read(&schema.ComponentResultsInput{StepCount: &count}); err != nil {
		t.Fatal(err)
	}
	// coupling step 0.2 over sync step 0.1 halves the count
	if err := cs.Setup(rs, p, 0.1, 0.2); err != nil {
		t.Fatal(err)
	}
	if cs.stepCount != 2 {
		t.Errorf("scaled stepCount = %d, want 2", cs.stepCount)
	}
}

func TestCsvBackendLayout(t *testing.T) {
	dir := t.TempDir()
	p := newProbe(t, "P")
	rs, cs := setupStorage(t, p, nil, dir)

	p.Value = 7.5
	p.push(t, 0.0)
	storeOut(t, cs, 0.0, schema.StoreSynchronization)
	p.push(t, 0.1)
	storeOut(t, cs, 0.1, schema.StoreSynchronization)

	if err := rs.Finished(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "P.res.csv"))
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"time [s],out [V]",
		"0.0000000000000E+00,7.5000000000000E+00",
		"1.0000000000000E-01,7.5000000000000E+00",
		"",
	}, "\n")
	if string(raw) != want {
		t.Errorf("csv layout mismatch:\ngot:\n%s\nwant:\n%s", raw, want)
	}
}

func TestLineProtocolBackend(t *testing.T) {
	dir := t.TempDir()
	p := newProbe(t, "P")

	rs := NewResultsStorage()
	if err := rs.Read(&schema.ResultsInput{
		Backends: []schema.BackendInput{{Kind: "lineprotocol", StoreAtRuntime: true}},
	}, dir); err != nil {
		t.Fatal(err)
	}
	if err := rs.Setup(0.0); err != nil {
		t.Fatal(err)
	}
	cs := NewComponentStorage()
	if err := cs.Setup(rs, p, 0.1, 0); err != nil {
		t.Fatal(err)
	}
	p.SetStore(cs)
	if err := rs.SetupBackends(); err != nil {
		t.Fatal(err)
	}

	p.Value = 1.25
	p.push(t, 0.1)
	storeOut(t, cs, 0.1, schema.StoreSynchronization)

	if err := rs.Finished(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "results.lp"))
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(line, "res,channel=out,component=P,unit=V value=1.25") {
		t.Errorf("unexpected line protocol output: %q", line)
	}
}
