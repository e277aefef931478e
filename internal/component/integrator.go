// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/dependency"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Integrator integrates its input with the trapezoidal rule over a fixed
// number of sub-steps per coupling step. The incoming connection's filter
// reconstructs the input signal inside the step interval.
type Integrator struct {
	*BaseComponent

	gain         float64
	initialValue float64
	numSubSteps  int

	in    float64
	state float64

	// lastIn remembers the input at the end of the previous sub-step for
	// the trapezoid.
	lastIn      float64
	lastInKnown bool
}

func NewIntegrator(name string) *Integrator {
	return &Integrator{
		BaseComponent: NewBaseComponent(name, "integrator"),
		gain:          1.0,
		numSubSteps:   1,
	}
}

func (ig *Integrator) Read(input *schema.ComponentInput) error {
	if err := ig.ReadCommon(input); err != nil {
		return err
	}

	for name, dst := range map[string]any{
		"gain":         &ig.gain,
		"initialValue": &ig.initialValue,
		"numSubSteps":  &ig.numSubSteps,
	} {
		if raw, ok := input.Parameters[name]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return fmt.Errorf("%s: parameter %s: %w", ig.Name(), name, err)
			}
		}
	}
	if ig.numSubSteps < 1 {
		return fmt.Errorf("%s: numSubSteps must be at least 1", ig.Name())
	}

	inInfos, err := BuildPortInfos(ig.Name(), input.Inports)
	if err != nil {
		return err
	}
	outInfos, err := BuildPortInfos(ig.Name(), input.Outports)
	if err != nil {
		return err
	}
	if len(inInfos) != 1 || len(outInfos) != 1 {
		return fmt.Errorf("%s: integrator needs exactly one inport and one outport", ig.Name())
	}

	ig.DeclareChannels(inInfos, outInfos)
	return nil
}

func (ig *Integrator) Setup() error {
	db := ig.Databus()
	if err := db.SetInReference(0, &ig.in, schema.ChannelTypeDouble); err != nil {
		return err
	}
	if err := db.SetOutReference(0, &ig.state, schema.ChannelTypeDouble); err != nil {
		return err
	}
	return db.AddLocalChannel("derivative", ig.Name()+".derivative", "", &ig.in, schema.ChannelTypeDouble)
}

func (ig *Integrator) Initialize(tStart float64) error {
	if err := ig.BaseComponent.Initialize(tStart); err != nil {
		return err
	}
	ig.state = ig.initialValue
	return ApplyInitialValues(ig.Databus())
}

func (ig *Integrator) DoStep(start, dt, end float64, isNewStep bool) error {
	db := ig.Databus()
	in := db.InPort(0)

	if end <= start {
		// zero-length init evaluation
		return nil
	}
	h := (end - start) / float64(ig.numSubSteps)

	// an unconnected input keeps the cell value as constant derivative
	update := func(t float64) error {
		if in.Connection() == nil {
			return nil
		}
		return in.Update(schema.Point(t))
	}

	if !ig.lastInKnown {
		if err := update(start); err != nil {
			return err
		}
		ig.lastIn = ig.in
		ig.lastInKnown = true
	}

	for i := 1; i <= ig.numSubSteps; i++ {
		t := start + float64(i)*h
		if err := update(t); err != nil {
			return err
		}
		ig.state += 0.5 * h * ig.gain * (ig.lastIn + ig.in)
		ig.lastIn = ig.in
	}

	return nil
}

// At initialisation the state output is fixed by the initial value and does
// not constrain the order.
func (ig *Integrator) InitialDependencies() *dependency.Matrix {
	m := dependency.NewMatrix(1, 1)
	m.Set(0, 0, dependency.Independent)
	return m
}

var _ Component = (*Integrator)(nil)
