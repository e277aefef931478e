// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package steptypes

import (
	"github.com/ClusterCockpit/cc-cosim/internal/model"
)

// parallelSTType runs the two-pass schedule on a single thread: all elements
// enter the coupling step from a fresh state, then step in evaluation order,
// then commit together. Every element reads the outputs of the previous
// communication point.
type parallelSTType struct{}

func (p *parallelSTType) Configure(params *Params, subModel *model.SubModel) error {
	return nil
}

func (p *parallelSTType) DoStep(params *Params, subModel *model.SubModel) error {
	for _, comp := range subModel.Components {
		if err := compEnterCouplingStep(comp, params); err != nil {
			return err
		}
	}

	for _, comp := range subModel.Components {
		if err := compPreDoUpdate(comp, params); err != nil {
			return err
		}
	}

	for _, node := range subModel.EvaluationList {
		if err := DoCommunicationStep(node.Comp, node.Group, params); err != nil {
			return err
		}
	}

	for _, node := range subModel.EvaluationList {
		if err := compEnterCommunicationPoint(node.Comp, params); err != nil {
			return err
		}
	}

	return nil
}

func (p *parallelSTType) Finish(params *Params, subModel *model.SubModel) error {
	return finishSubModel(params, subModel)
}
