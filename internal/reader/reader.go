// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reader loads a model file, validates it against the embedded JSON
// schema and assembles the element graph.
package reader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/model"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Read parses and validates the model file.
func Read(path string) (*schema.ModelInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read model file '%s': %w", path, err)
	}

	if err := schema.Validate(schema.Model, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("model file '%s' is invalid: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var input schema.ModelInput
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("could not decode model file '%s': %w", path, err)
	}

	return &input, nil
}

// BuildModel instantiates the elements and connections of a validated model
// input. It returns the model and the per-element result overrides for the
// task.
func BuildModel(input *schema.ModelInput) (*model.Model, map[string]*schema.ComponentResultsInput, error) {
	name := input.Name
	if name == "" {
		name = "model"
	}
	m := model.New(name)
	results := make(map[string]*schema.ComponentResultsInput)

	for i := range input.Components {
		compInput := &input.Components[i]

		comp, err := component.New(compInput.Type, compInput.Name)
		if err != nil {
			return nil, nil, err
		}
		if err := m.AddComponent(comp); err != nil {
			return nil, nil, err
		}
		if err := comp.Read(compInput); err != nil {
			return nil, nil, err
		}
		if err := comp.Setup(); err != nil {
			return nil, nil, fmt.Errorf("%s: setup failed: %w", comp.Name(), err)
		}
		if compInput.Results != nil {
			results[comp.Name()] = compInput.Results
		}

		cclog.Debugf("[READER]> Created element '%s' of type '%s'", comp.Name(), comp.TypeName())
	}

	for _, connInput := range input.Connections {
		if err := m.Connect(connInput); err != nil {
			return nil, nil, err
		}
	}

	return m, results, nil
}
