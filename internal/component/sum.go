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

// Sum adds its inputs with per-input signs: out = sum(signs[i] * in[i]).
type Sum struct {
	*BaseComponent

	signs []float64
	in    []float64
	out   float64
}

func NewSum(name string) *Sum {
	return &Sum{BaseComponent: NewBaseComponent(name, "sum")}
}

func (s *Sum) Read(input *schema.ComponentInput) error {
	if err := s.ReadCommon(input); err != nil {
		return err
	}

	inInfos, err := BuildPortInfos(s.Name(), input.Inports)
	if err != nil {
		return err
	}
	outInfos, err := BuildPortInfos(s.Name(), input.Outports)
	if err != nil {
		return err
	}
	if len(inInfos) == 0 {
		return fmt.Errorf("%s: sum element needs at least one inport", s.Name())
	}
	if len(outInfos) != 1 {
		return fmt.Errorf("%s: sum element needs exactly one outport", s.Name())
	}

	if raw, ok := input.Parameters["signs"]; ok {
		if err := json.Unmarshal(raw, &s.signs); err != nil {
			return fmt.Errorf("%s: parameter signs: %w", s.Name(), err)
		}
		if len(s.signs) != len(inInfos) {
			return fmt.Errorf("%s: %d signs for %d inports", s.Name(), len(s.signs), len(inInfos))
		}
	} else {
		s.signs = make([]float64, len(inInfos))
		for i := range s.signs {
			s.signs[i] = 1.0
		}
	}

	s.DeclareChannels(inInfos, outInfos)
	return nil
}

func (s *Sum) Setup() error {
	db := s.Databus()
	s.in = make([]float64, db.NumInChannels())

	for i := range s.in {
		if err := db.SetInReference(i, &s.in[i], schema.ChannelTypeDouble); err != nil {
			return err
		}
	}
	return db.SetOutReference(0, &s.out, schema.ChannelTypeDouble)
}

func (s *Sum) Initialize(tStart float64) error {
	if err := s.BaseComponent.Initialize(tStart); err != nil {
		return err
	}
	return ApplyInitialValues(s.Databus())
}

func (s *Sum) DoStep(start, dt, end float64, isNewStep bool) error {
	acc := 0.0
	for i, v := range s.in {
		acc += s.signs[i] * v
	}
	s.out = acc
	return nil
}

var _ Component = (*Sum)(nil)
