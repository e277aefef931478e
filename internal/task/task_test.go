// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package task_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ClusterCockpit/cc-cosim/internal/reader"
	"github.com/ClusterCockpit/cc-cosim/internal/task"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

func runModel(t *testing.T, modelJSON, resultDir string) error {
	t.Helper()

	var input schema.ModelInput
	dec := json.NewDecoder(strings.NewReader(modelJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		t.Fatal(err)
	}

	m, componentResults, err := reader.BuildModel(&input)
	if err != nil {
		t.Fatal(err)
	}

	tk := task.New()
	if err := tk.Read(&input.Task, &input.Results, resultDir); err != nil {
		t.Fatal(err)
	}
	tk.SetComponentResults(componentResults)

	if err := tk.Setup(m); err != nil {
		t.Fatal(err)
	}
	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := tk.PrepareRun(m); err != nil {
		t.Fatal(err)
	}

	return tk.Run(m)
}

func readCsv(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	return lines
}

// Two-element chain: constant source 7.5 into a pass-through sink over
// [0, 0.3] with sync step 0.1. The sink's output file carries 7.5 at every
// synchronisation point.
func TestConstantChain(t *testing.T) {
	dir := t.TempDir()

	modelJSON := `{
		"task": {"startTime": 0.0, "endTime": 0.3, "deltaTime": 0.1,
		         "couplingMethod": "sequential", "inputAtEndTime": false},
		"components": [
			{"name": "C", "type": "constant",
			 "outports": [{"name": "out", "default": 7.5}]},
			{"name": "I", "type": "gain",
			 "inports": [{"name": "in"}], "outports": [{"name": "out"}]}
		],
		"connections": [{"from": "C.out", "to": "I.in"}]
	}`

	if err := runModel(t, modelJSON, dir); err != nil {
		t.Fatal(err)
	}

	lines := readCsv(t, filepath.Join(dir, "I.res.csv"))
	want := []string{
		"time [s],out [-]",
		"0.0000000000000E+00,7.5000000000000E+00",
		"1.0000000000000E-01,7.5000000000000E+00",
		"2.0000000000000E-01,7.5000000000000E+00",
		"3.0000000000000E-01,7.5000000000000E+00",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// Integrator fed with L(t) = t through a linear-interpolation filter: with
// sub-stepped trapezoid integration the state at t=1 is 1/2.
func TestIntegratorWithLinearInterpolation(t *testing.T) {
	dir := t.TempDir()

	modelJSON := `{
		"task": {"startTime": 0.0, "endTime": 1.0, "deltaTime": 0.1,
		         "couplingMethod": "sequential", "inputAtEndTime": false},
		"components": [
			{"name": "L", "type": "expression",
			 "parameters": {"expression": "t"},
			 "outports": [{"name": "out"}]},
			{"name": "I", "type": "integrator",
			 "parameters": {"gain": 1.0, "numSubSteps": 10},
			 "inports": [{"name": "in"}], "outports": [{"name": "out"}]}
		],
		"connections": [
			{"from": "L.out", "to": "I.in",
			 "filter": {"kind": "linearInterpolation"}}
		]
	}`

	if err := runModel(t, modelJSON, dir); err != nil {
		t.Fatal(err)
	}

	lines := readCsv(t, filepath.Join(dir, "I.res.csv"))
	last := lines[len(lines)-1]
	cols := strings.Split(last, ",")
	if len(cols) != 2 {
		t.Fatalf("unexpected row %q", last)
	}

	tm, err := strconv.ParseFloat(cols[0], 64)
	if err != nil {
		t.Fatal(err)
	}
	state, err := strconv.ParseFloat(cols[1], 64)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(tm-1.0) > 1e-9 {
		t.Errorf("last row at t = %g, want 1.0", tm)
	}
	if math.Abs(state-0.5) > 1e-4 {
		t.Errorf("integrator state = %g, want 0.5 +- 1e-4", state)
	}
}

// A NaN on a connected output under the strict policy aborts the run with
// an error; rows stored before the failure survive in the result file.
func TestNaNAbortsRun(t *testing.T) {
	dir := t.TempDir()

	modelJSON := `{
		"task": {"startTime": 0.0, "endTime": 1.0, "deltaTime": 0.1,
		         "couplingMethod": "sequential", "inputAtEndTime": false},
		"components": [
			{"name": "S", "type": "expression",
			 "parameters": {"expression": "t < 0.15 ? t : (t - t) / (t - t)"},
			 "outports": [{"name": "out"}]},
			{"name": "I", "type": "gain",
			 "inports": [{"name": "in"}], "outports": [{"name": "out"}]}
		],
		"connections": [{"from": "S.out", "to": "I.in"}]
	}`

	if err := runModel(t, modelJSON, dir); err == nil {
		t.Fatal("expected the NaN to abort the run")
	}

	// the last complete synchronisation row was flushed before the abort
	lines := readCsv(t, filepath.Join(dir, "S.res.csv"))
	if len(lines) < 2 {
		t.Fatalf("expected at least the t=0 and t=0.1 rows, got:\n%s", strings.Join(lines, "\n"))
	}
	lastTime, err := strconv.ParseFloat(strings.Split(lines[len(lines)-1], ",")[0], 64)
	if err != nil {
		t.Fatal(err)
	}
	if lastTime > 0.10000001 {
		t.Errorf("last stored row at %g, want <= 0.1", lastTime)
	}
}

// Multi-rate run: an element with its own 0.05 step against a 0.1 sync step
// stores synchronisation rows only.
func TestMultiRateRowsAtSyncPoints(t *testing.T) {
	dir := t.TempDir()

	modelJSON := `{
		"task": {"startTime": 0.0, "endTime": 0.2, "deltaTime": 0.1,
		         "couplingMethod": "sequential", "inputAtEndTime": false},
		"components": [
			{"name": "F", "type": "sinusGenerator", "timeStep": 0.05,
			 "outports": [{"name": "out"}]}
		]
	}`

	if err := runModel(t, modelJSON, dir); err != nil {
		t.Fatal(err)
	}

	lines := readCsv(t, filepath.Join(dir, "F.res.csv"))
	// header + rows at 0.0, 0.1, 0.2
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), strings.Join(lines, "\n"))
	}
}
