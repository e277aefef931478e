// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/dependency"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Constant emits fixed values on its output ports. The value of each port is
// its default from the model file.
type Constant struct {
	*BaseComponent

	values []float64
}

func NewConstant(name string) *Constant {
	return &Constant{BaseComponent: NewBaseComponent(name, "constant")}
}

func (c *Constant) Read(input *schema.ComponentInput) error {
	if err := c.ReadCommon(input); err != nil {
		return err
	}
	if len(input.Inports) > 0 {
		return fmt.Errorf("%s: constant elements have no inports", c.Name())
	}
	if len(input.Outports) == 0 {
		return fmt.Errorf("%s: constant element needs at least one outport", c.Name())
	}

	outInfos, err := BuildPortInfos(c.Name(), input.Outports)
	if err != nil {
		return err
	}
	for _, info := range outInfos {
		if info.Type != schema.ChannelTypeDouble {
			return fmt.Errorf("%s: port %s: constant outports must be double", c.Name(), info.Name)
		}
		if info.Default == nil {
			return fmt.Errorf("%s: port %s: constant outport needs a default value", c.Name(), info.Name)
		}
	}

	c.DeclareChannels(nil, outInfos)
	return nil
}

func (c *Constant) Setup() error {
	db := c.Databus()
	c.values = make([]float64, db.NumOutChannels())

	for i := 0; i < db.NumOutChannels(); i++ {
		c.values[i] = db.OutInfo(i).Default.Double()
		if err := db.SetOutReference(i, &c.values[i], schema.ChannelTypeDouble); err != nil {
			return err
		}
	}
	return nil
}

func (c *Constant) DoStep(start, dt, end float64, isNewStep bool) error {
	return nil
}

// Outputs never depend on inputs.
func (c *Constant) Dependencies() *dependency.Matrix {
	return dependency.NewMatrix(0, c.NumOutGroups())
}

var _ Component = (*Constant)(nil)
