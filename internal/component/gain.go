// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Gain is a pass-through element: out[i] = gain * in[i] for each port pair.
// With gain 1 it is the identity block.
type Gain struct {
	*BaseComponent

	gain float64
	in   []float64
	out  []float64
}

func NewGain(name string) *Gain {
	return &Gain{BaseComponent: NewBaseComponent(name, "gain"), gain: 1.0}
}

func (g *Gain) Read(input *schema.ComponentInput) error {
	if err := g.ReadCommon(input); err != nil {
		return err
	}

	if raw, ok := input.Parameters["gain"]; ok {
		if err := json.Unmarshal(raw, &g.gain); err != nil {
			return fmt.Errorf("%s: parameter gain: %w", g.Name(), err)
		}
	}

	inInfos, err := BuildPortInfos(g.Name(), input.Inports)
	if err != nil {
		return err
	}
	outInfos, err := BuildPortInfos(g.Name(), input.Outports)
	if err != nil {
		return err
	}
	if len(inInfos) == 0 || len(inInfos) != len(outInfos) {
		return fmt.Errorf("%s: gain elements need matching inport and outport counts", g.Name())
	}

	g.DeclareChannels(inInfos, outInfos)
	return nil
}

func (g *Gain) Setup() error {
	db := g.Databus()
	g.in = make([]float64, db.NumInChannels())
	g.out = make([]float64, db.NumOutChannels())

	for i := range g.in {
		if err := db.SetInReference(i, &g.in[i], schema.ChannelTypeDouble); err != nil {
			return err
		}
	}
	for i := range g.out {
		if err := db.SetOutReference(i, &g.out[i], schema.ChannelTypeDouble); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gain) Initialize(tStart float64) error {
	if err := g.BaseComponent.Initialize(tStart); err != nil {
		return err
	}
	return ApplyInitialValues(g.Databus())
}

func (g *Gain) DoStep(start, dt, end float64, isNewStep bool) error {
	for i := range g.in {
		g.out[i] = g.gain * g.in[i]
	}
	return nil
}

var _ Component = (*Gain)(nil)
