// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression computes its output from a compiled expression over the named
// inputs and the time "t", for example "0.5*speed + offset".
type Expression struct {
	*BaseComponent

	source  string
	program *vm.Program

	in  []float64
	out float64
	env map[string]any
}

func NewExpression(name string) *Expression {
	return &Expression{BaseComponent: NewBaseComponent(name, "expression")}
}

func (e *Expression) Read(input *schema.ComponentInput) error {
	if err := e.ReadCommon(input); err != nil {
		return err
	}

	raw, ok := input.Parameters["expression"]
	if !ok {
		return fmt.Errorf("%s: expression element needs an 'expression' parameter", e.Name())
	}
	if err := json.Unmarshal(raw, &e.source); err != nil {
		return fmt.Errorf("%s: parameter expression: %w", e.Name(), err)
	}

	inInfos, err := BuildPortInfos(e.Name(), input.Inports)
	if err != nil {
		return err
	}
	outInfos, err := BuildPortInfos(e.Name(), input.Outports)
	if err != nil {
		return err
	}
	if len(outInfos) != 1 {
		return fmt.Errorf("%s: expression element needs exactly one outport", e.Name())
	}

	e.DeclareChannels(inInfos, outInfos)
	return nil
}

func (e *Expression) Setup() error {
	db := e.Databus()
	e.in = make([]float64, db.NumInChannels())
	e.env = make(map[string]any, db.NumInChannels()+1)

	for i := range e.in {
		if err := db.SetInReference(i, &e.in[i], schema.ChannelTypeDouble); err != nil {
			return err
		}
		e.env[db.InInfo(i).Name] = 0.0
	}
	e.env["t"] = 0.0

	program, err := expr.Compile(e.source, expr.Env(e.env), expr.AsFloat64())
	if err != nil {
		return fmt.Errorf("%s: compiling expression '%s': %w", e.Name(), e.source, err)
	}
	e.program = program

	return db.SetOutReference(0, &e.out, schema.ChannelTypeDouble)
}

func (e *Expression) Initialize(tStart float64) error {
	if err := e.BaseComponent.Initialize(tStart); err != nil {
		return err
	}
	return ApplyInitialValues(e.Databus())
}

func (e *Expression) DoStep(start, dt, end float64, isNewStep bool) error {
	db := e.Databus()
	for i := range e.in {
		e.env[db.InInfo(i).Name] = e.in[i]
	}
	e.env["t"] = end

	result, err := expr.Run(e.program, e.env)
	if err != nil {
		return fmt.Errorf("%s: evaluating expression: %w", e.Name(), err)
	}
	e.out = result.(float64)
	return nil
}

var _ Component = (*Expression)(nil)
