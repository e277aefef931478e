// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model owns the element graph: it resolves connection records into
// filtered connections, analyses the dependency structure, breaks algebraic
// loops and produces the ordered sub-model the drivers evaluate.
package model

import (
	"fmt"
	"strings"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Model is the set of elements and connections of one simulation.
type Model struct {
	Name        string
	Components  []component.Component
	Connections []*databus.Connection

	// SubModel is the runtime evaluation order, produced by Setup.
	SubModel *SubModel
}

func New(name string) *Model {
	return &Model{Name: name}
}

// AddComponent appends an element and assigns its ID. Element names must be
// unique.
func (m *Model) AddComponent(comp component.Component) error {
	for _, c := range m.Components {
		if c.Name() == comp.Name() {
			return fmt.Errorf("model: duplicate element name '%s'", comp.Name())
		}
	}
	comp.SetID(len(m.Components))
	m.Components = append(m.Components, comp)
	return nil
}

// ComponentByName resolves an element by its model name.
func (m *Model) ComponentByName(name string) (component.Component, bool) {
	for _, c := range m.Components {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

func splitEndpoint(s string) (comp, port string, err error) {
	idx := strings.Index(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", fmt.Errorf("connection endpoint '%s' is not of the form <element>.<port>", s)
	}
	return s[:idx], s[idx+1:], nil
}

func parseDecouple(s string) (schema.DecoupleType, error) {
	switch s {
	case "", "never":
		return schema.DecoupleNever, nil
	case "ifNeeded":
		return schema.DecoupleIfNeeded, nil
	case "always":
		return schema.DecoupleAlways, nil
	default:
		return schema.DecoupleNever, fmt.Errorf("unknown decouple policy '%s'", s)
	}
}

func parseFilter(in *schema.InterExtraInput) (databus.FilterSpec, error) {
	if in == nil {
		// hold the last committed value by default
		return databus.FilterSpec{Kind: schema.FilterConstantHold}, nil
	}

	spec := databus.FilterSpec{
		DegreeInter: in.DegreeInter,
		DegreeExtra: in.DegreeExtra,
	}
	switch in.Kind {
	case "constant":
		spec.Kind = schema.FilterConstantHold
	case "zeroOrderHold":
		spec.Kind = schema.FilterZeroOrderHold
	case "linearInterpolation":
		spec.Kind = schema.FilterLinearInterpolation
		spec.DegreeInter = 1
	case "linearExtrapolation":
		spec.Kind = schema.FilterLinearExtrapolation
		spec.DegreeExtra = 1
	case "polynomialExtrapolation":
		spec.Kind = schema.FilterPolynomialExtrapolation
	case "polynomialInterExtrapolation":
		spec.Kind = schema.FilterPolynomialInterExtrapolation
	case "discrete":
		spec.Kind = schema.FilterDiscrete
	default:
		return spec, fmt.Errorf("unknown filter kind '%s'", in.Kind)
	}
	return spec, nil
}

// Connect resolves one connection record and creates the filtered
// connection. Inverted records, where the from-port is actually an input of
// the target, are rejected.
func (m *Model) Connect(input schema.ConnectionInput) error {
	fromComp, fromPort, err := splitEndpoint(input.From)
	if err != nil {
		return err
	}
	toComp, toPort, err := splitEndpoint(input.To)
	if err != nil {
		return err
	}

	source, ok := m.ComponentByName(fromComp)
	if !ok {
		return fmt.Errorf("connection %s -> %s: unknown element '%s'", input.From, input.To, fromComp)
	}
	target, ok := m.ComponentByName(toComp)
	if !ok {
		return fmt.Errorf("connection %s -> %s: unknown element '%s'", input.From, input.To, toComp)
	}

	srcIdx, ok := source.Databus().OutChannelIndex(fromPort)
	if !ok {
		if _, inverted := source.Databus().InChannelIndex(fromPort); inverted {
			return fmt.Errorf("connection %s -> %s: '%s' is an inport of %s; connections must run output -> input",
				input.From, input.To, fromPort, fromComp)
		}
		return fmt.Errorf("connection %s -> %s: unknown outport '%s' on %s", input.From, input.To, fromPort, fromComp)
	}
	tgtIdx, ok := target.Databus().InChannelIndex(toPort)
	if !ok {
		return fmt.Errorf("connection %s -> %s: unknown inport '%s' on %s", input.From, input.To, toPort, toComp)
	}

	decouple, err := parseDecouple(input.Decouple)
	if err != nil {
		return fmt.Errorf("connection %s -> %s: %w", input.From, input.To, err)
	}
	filter, err := parseFilter(input.Filter)
	if err != nil {
		return fmt.Errorf("connection %s -> %s: %w", input.From, input.To, err)
	}

	spec := databus.ConnectionSpec{
		SourceComp:       source.ID(),
		SourcePort:       srcIdx,
		TargetComp:       target.ID(),
		TargetPort:       tgtIdx,
		Unit:             input.Unit,
		Min:              input.Min,
		Max:              input.Max,
		Scale:            input.Scale,
		Offset:           input.Offset,
		Decouple:         decouple,
		DecouplePriority: input.DecouplePriority,
		Filter:           filter,
		SourceTimeStep:   source.TimeStep(),
		TargetTimeStep:   target.TimeStep(),
	}

	conn, err := source.Databus().CreateConnection(spec, target.Databus())
	if err != nil {
		return err
	}

	m.Connections = append(m.Connections, conn)
	cclog.Debugf("[MODEL]> Connected %s -> %s", input.From, input.To)
	return nil
}

// ConnectionsBetween returns the connection bundle from one element to
// another, decoupled connections included.
func (m *Model) ConnectionsBetween(from, to component.Component) []*databus.Connection {
	var conns []*databus.Connection
	for _, conn := range m.Connections {
		if conn.SourceComp == from.ID() && conn.TargetComp == to.ID() {
			conns = append(conns, conn)
		}
	}
	return conns
}

// Setup orders the model: it builds the runtime dependency graph, breaks
// loops by decoupling connections and stores the resulting sub-model.
func (m *Model) Setup() error {
	gen := NewSubModelGenerator(m)

	subModel, err := gen.CreateOrderedSubModel()
	if err != nil {
		return err
	}
	m.SubModel = subModel

	return nil
}

// Initialize drives every element through its initialization protocol in
// initial-dependency order and promotes all connections to the first
// communication point.
func (m *Model) Initialize(tStart float64) error {
	gen := NewSubModelGenerator(m)
	initOrder, err := gen.CreateInitialSubModel()
	if err != nil {
		return err
	}

	initialized := make(map[int]bool, len(m.Components))
	for _, node := range initOrder.EvaluationList {
		comp := node.Comp
		if !initialized[comp.ID()] {
			initialized[comp.ID()] = true
			if err := comp.Initialize(tStart); err != nil {
				return fmt.Errorf("%s: initialization failed: %w", comp.Name(), err)
			}
		}

		db := comp.Databus()
		if err := db.TriggerInConnections(schema.Point(tStart)); err != nil {
			return fmt.Errorf("%s: update inports failed: %w", comp.Name(), err)
		}

		if comp.PartOfInitCalculation() {
			if err := comp.DoStep(tStart, 0, tStart, true); err != nil {
				return fmt.Errorf("%s: initial calculation failed: %w", comp.Name(), err)
			}
		}

		if err := db.TriggerOutChannels(schema.Point(tStart)); err != nil {
			return fmt.Errorf("%s: update outports failed: %w", comp.Name(), err)
		}
		if err := db.EnterCommunication(tStart); err != nil {
			return fmt.Errorf("%s: enter communication failed: %w", comp.Name(), err)
		}
	}

	for _, comp := range m.Components {
		if err := comp.ExitInitMode(); err != nil {
			return fmt.Errorf("%s: exit init mode failed: %w", comp.Name(), err)
		}
	}

	return nil
}

// Finish runs the element finalizers in the order the elements were added.
func (m *Model) Finish() error {
	var firstErr error
	for _, comp := range m.Components {
		if err := comp.Finish(); err != nil {
			cclog.Errorf("%s: finish failed: %s", comp.Name(), err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := comp.WriteDebugInfoAfterSimulation(); err != nil {
			cclog.Warnf("%s: writing debug info failed: %s", comp.Name(), err.Error())
		}
	}
	return firstErr
}
