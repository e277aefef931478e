// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

func newGainComp(t *testing.T, m *Model, name string) component.Component {
	t.Helper()

	comp := component.NewGain(name)
	if err := m.AddComponent(comp); err != nil {
		t.Fatal(err)
	}
	input := &schema.ComponentInput{
		Name:     name,
		Type:     "gain",
		Inports:  []schema.PortInput{{Name: "in"}},
		Outports: []schema.PortInput{{Name: "out"}},
	}
	if err := comp.Read(input); err != nil {
		t.Fatal(err)
	}
	if err := comp.Setup(); err != nil {
		t.Fatal(err)
	}
	return comp
}

func TestChainOrdering(t *testing.T) {
	m := New("chain")
	a := newGainComp(t, m, "A")
	b := newGainComp(t, m, "B")
	c := newGainComp(t, m, "C")

	// wire C <- B <- A but add the elements in a different order above
	if err := m.Connect(schema.ConnectionInput{From: "A.out", To: "B.in"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(schema.ConnectionInput{From: "B.out", To: "C.in"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}

	eval := m.SubModel.EvaluationList
	if len(eval) != 3 {
		t.Fatalf("evaluation list has %d nodes, want 3", len(eval))
	}
	order := map[string]int{}
	for i, node := range eval {
		order[node.Comp.Name()] = i
	}
	if !(order["A"] < order["B"] && order["B"] < order["C"]) {
		t.Errorf("evaluation order broken: %v", order)
	}
	_ = a
	_ = b
	_ = c
}

// Algebraic loop of two pass-through elements: the connection with the
// higher if-needed priority is selected for decoupling, the other one stays
// coupled and still orders the elements.
func TestLoopBreaking(t *testing.T) {
	m := New("loop")
	newGainComp(t, m, "A")
	newGainComp(t, m, "B")

	if err := m.Connect(schema.ConnectionInput{
		From: "A.out", To: "B.in",
		Decouple: "ifNeeded", DecouplePriority: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(schema.ConnectionInput{
		From: "B.out", To: "A.in",
		Decouple: "ifNeeded", DecouplePriority: 1,
	}); err != nil {
		t.Fatal(err)
	}

	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}

	if len(m.SubModel.EvaluationList) != 2 {
		t.Fatalf("evaluation list has %d nodes, want 2", len(m.SubModel.EvaluationList))
	}

	var decoupled, coupled int
	for _, conn := range m.Connections {
		if conn.IsDecoupled() {
			decoupled++
			if conn.DecouplePriority() != 1 {
				t.Error("the priority-1 connection must be the decoupled one")
			}
		} else {
			coupled++
		}
	}
	if decoupled != 1 || coupled != 1 {
		t.Errorf("decoupled/coupled = %d/%d, want 1/1", decoupled, coupled)
	}

	// the remaining edge A -> B orders A first
	eval := m.SubModel.EvaluationList
	if eval[0].Comp.Name() != "A" || eval[1].Comp.Name() != "B" {
		t.Errorf("order = [%s, %s], want [A, B]", eval[0].Comp.Name(), eval[1].Comp.Name())
	}
}

func TestLoopWithoutDecoupleCandidateFails(t *testing.T) {
	m := New("stuck")
	newGainComp(t, m, "A")
	newGainComp(t, m, "B")

	if err := m.Connect(schema.ConnectionInput{From: "A.out", To: "B.in", Decouple: "never"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(schema.ConnectionInput{From: "B.out", To: "A.in", Decouple: "never"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Setup(); err == nil {
		t.Fatal("expected 'no connection can be decoupled' error")
	}
}

func TestAlwaysDecoupledConnectionsDoNotOrder(t *testing.T) {
	m := New("always")
	newGainComp(t, m, "A")
	newGainComp(t, m, "B")

	if err := m.Connect(schema.ConnectionInput{From: "A.out", To: "B.in", Decouple: "always"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(schema.ConnectionInput{From: "B.out", To: "A.in", Decouple: "always"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}
	for _, conn := range m.Connections {
		if !conn.IsDecoupled() {
			t.Error("always-decouple connections must be decoupled at setup")
		}
	}
}

func TestInvertedConnectionRejected(t *testing.T) {
	m := New("inverted")
	newGainComp(t, m, "A")
	newGainComp(t, m, "B")

	// "A.in" names an inport; the record is inverted and must be rejected
	if err := m.Connect(schema.ConnectionInput{From: "A.in", To: "B.in"}); err == nil {
		t.Fatal("expected error for inverted connection record")
	}
}

func TestSequenceNumberForcesDecoupling(t *testing.T) {
	m := New("sequence")
	a := newGainComp(t, m, "A")
	b := newGainComp(t, m, "B")
	a.(*component.Gain).SetSequenceNumber(5)
	b.(*component.Gain).SetSequenceNumber(1)

	// loop where priority alone would pick the B->A direction, but A's
	// sequence number exceeds B's, so A->B wins outright
	if err := m.Connect(schema.ConnectionInput{
		From: "A.out", To: "B.in",
		Decouple: "ifNeeded", DecouplePriority: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(schema.ConnectionInput{
		From: "B.out", To: "A.in",
		Decouple: "ifNeeded", DecouplePriority: 100,
	}); err != nil {
		t.Fatal(err)
	}

	if err := m.Setup(); err != nil {
		t.Fatal(err)
	}

	for _, conn := range m.Connections {
		if conn.IsDecoupled() && conn.DecouplePriority() != 0 {
			t.Error("the A->B bundle must be decoupled because of the sequence numbers")
		}
	}
}
