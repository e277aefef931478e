// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package steptypes

import (
	"github.com/ClusterCockpit/cc-cosim/internal/model"
)

// sequentialType steps and commits each element in evaluation order, so
// every node sees the already-updated outputs of earlier nodes within the
// same synchronisation step.
type sequentialType struct{}

func (s *sequentialType) Configure(params *Params, subModel *model.SubModel) error {
	return nil
}

func (s *sequentialType) DoStep(params *Params, subModel *model.SubModel) error {
	for _, comp := range subModel.Components {
		if err := compEnterCouplingStep(comp, params); err != nil {
			return err
		}
	}

	// pre-step updates must not run interleaved with stepping
	for _, comp := range subModel.Components {
		if err := compPreDoUpdate(comp, params); err != nil {
			return err
		}
	}

	for _, node := range subModel.EvaluationList {
		if err := DoCommunicationStep(node.Comp, node.Group, params); err != nil {
			return err
		}
		if err := compEnterCommunicationPoint(node.Comp, params); err != nil {
			return err
		}
	}

	for _, comp := range subModel.Components {
		if err := compPostDoUpdate(comp, params); err != nil {
			return err
		}
	}

	return nil
}

func (s *sequentialType) Finish(params *Params, subModel *model.SubModel) error {
	return finishSubModel(params, subModel)
}
