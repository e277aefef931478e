// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ClusterCockpit/cc-cosim/internal/dependency"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// SinusGenerator emits amp*sin(omega*t + phase) + offset. The output is
// bound as a time-indexed function, so downstream filters sample the exact
// waveform at every evaluation time.
type SinusGenerator struct {
	*BaseComponent

	amplitude float64
	omega     float64
	phase     float64
	offset    float64
}

func NewSinusGenerator(name string) *SinusGenerator {
	return &SinusGenerator{
		BaseComponent: NewBaseComponent(name, "sinusGenerator"),
		amplitude:     1.0,
		omega:         2 * math.Pi,
	}
}

func (s *SinusGenerator) Read(input *schema.ComponentInput) error {
	if err := s.ReadCommon(input); err != nil {
		return err
	}

	for name, dst := range map[string]*float64{
		"amplitude": &s.amplitude,
		"omega":     &s.omega,
		"phase":     &s.phase,
		"offset":    &s.offset,
	} {
		if raw, ok := input.Parameters[name]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return fmt.Errorf("%s: parameter %s: %w", s.Name(), name, err)
			}
		}
	}
	if raw, ok := input.Parameters["frequency"]; ok {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("%s: parameter frequency: %w", s.Name(), err)
		}
		s.omega = 2 * math.Pi * f
	}

	outInfos, err := BuildPortInfos(s.Name(), input.Outports)
	if err != nil {
		return err
	}
	if len(outInfos) != 1 {
		return fmt.Errorf("%s: sinus generator needs exactly one outport", s.Name())
	}
	if len(input.Inports) > 0 {
		return fmt.Errorf("%s: sinus generator has no inports", s.Name())
	}

	s.DeclareChannels(nil, outInfos)
	return nil
}

func (s *SinusGenerator) Setup() error {
	return s.Databus().SetOutReferenceFunction(0, func(interval schema.TimeInterval) float64 {
		return s.amplitude*math.Sin(s.omega*interval.Start+s.phase) + s.offset
	})
}

func (s *SinusGenerator) DoStep(start, dt, end float64, isNewStep bool) error {
	return nil
}

func (s *SinusGenerator) Dependencies() *dependency.Matrix {
	return dependency.NewMatrix(0, s.NumOutGroups())
}

var _ Component = (*SinusGenerator)(nil)
