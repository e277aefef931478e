// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import "encoding/json"

// The reader decodes the model file into these records. Optional scalars are
// pointers so that "absent" is distinguishable from a zero value.

// PortInput describes one scalar port or, if Count is set, a vector port
// that is scalarised into Count children named "<name>[i]".
type PortInput struct {
	Name           string           `json:"name"`
	NameInModel    string           `json:"nameInModel,omitempty"`
	Description    string           `json:"description,omitempty"`
	ID             string           `json:"id,omitempty"`
	Unit           string           `json:"unit,omitempty"`
	Type           string           `json:"type,omitempty"`
	Min            *float64         `json:"min,omitempty"`
	Max            *float64         `json:"max,omitempty"`
	Scale          *float64         `json:"scale,omitempty"`
	Offset         *float64         `json:"offset,omitempty"`
	Default        *json.RawMessage `json:"default,omitempty"`
	Initial        *json.RawMessage `json:"initial,omitempty"`
	InitialIsExact bool             `json:"initialIsExact,omitempty"`
	WriteResult    *bool            `json:"writeResult,omitempty"`
	Discrete       bool             `json:"discrete,omitempty"`
	Count          int              `json:"count,omitempty"`
}

// ComponentResultsInput carries the per-element storage overrides.
type ComponentResultsInput struct {
	ResultLevel *string  `json:"resultLevel,omitempty"`
	StartTime   *float64 `json:"startTime,omitempty"`
	EndTime     *float64 `json:"endTime,omitempty"`
	StepTime    *float64 `json:"stepTime,omitempty"`
	StepCount   *int     `json:"stepCount,omitempty"`
	RTFactor    *bool    `json:"rtFactor,omitempty"`
}

// ComponentInput describes one element instance of the model.
type ComponentInput struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	TimeStep *float64 `json:"timeStep,omitempty"`
	// TriggerSequence is the element's sequence number. When a loop has to be
	// broken, a connection bundle whose source has a higher sequence number
	// than its target is decoupled first.
	TriggerSequence *int                       `json:"triggerSequence,omitempty"`
	InputAtEndTime  *bool                      `json:"inputAtEndTime,omitempty"`
	Inports         []PortInput                `json:"inports,omitempty"`
	Outports        []PortInput                `json:"outports,omitempty"`
	Parameters      map[string]json.RawMessage `json:"parameters,omitempty"`
	Results         *ComponentResultsInput     `json:"results,omitempty"`
}

// InterExtraInput selects a connection filter.
type InterExtraInput struct {
	Kind        string `json:"kind"`
	DegreeInter int    `json:"interpolationDegree,omitempty"`
	DegreeExtra int    `json:"extrapolationDegree,omitempty"`
}

// ConnectionInput is one directed edge of the model. From/To name an element
// and one of its ports as "<element>.<port>".
type ConnectionInput struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	Unit             string           `json:"unit,omitempty"`
	Min              *float64         `json:"min,omitempty"`
	Max              *float64         `json:"max,omitempty"`
	Scale            *float64         `json:"scale,omitempty"`
	Offset           *float64         `json:"offset,omitempty"`
	Decouple         string           `json:"decouple,omitempty"`
	DecouplePriority int              `json:"decouplePriority,omitempty"`
	Filter           *InterExtraInput `json:"filter,omitempty"`
}

// BackendInput configures one result backend.
type BackendInput struct {
	Kind           string `json:"kind"`
	StoreAtRuntime bool   `json:"storeAtRuntime,omitempty"`

	// csv / lineprotocol
	Directory string `json:"directory,omitempty"`

	// sqlite
	DBPath string `json:"dbPath,omitempty"`

	// nats
	Address string `json:"address,omitempty"`
	Subject string `json:"subject,omitempty"`
	Creds   string `json:"creds,omitempty"`

	// s3
	Bucket   string `json:"bucket,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// ResultsInput is the task-wide storage configuration.
type ResultsInput struct {
	ResultDir     string         `json:"resultDir,omitempty"`
	ResultLevel   *string        `json:"resultLevel,omitempty"`
	StartTime     *float64       `json:"startTime,omitempty"`
	Backends      []BackendInput `json:"backends,omitempty"`
	FlushInterval *string        `json:"flushInterval,omitempty"`

	StoreIn       *bool `json:"storeInports,omitempty"`
	StoreOut      *bool `json:"storeOutports,omitempty"`
	StoreLocal    *bool `json:"storeLocalValues,omitempty"`
	StoreRTFactor *bool `json:"storeRTFactor,omitempty"`
}

// TaskInput is the simulation control block of the model file.
type TaskInput struct {
	StartTime      *float64 `json:"startTime,omitempty"`
	EndTime        *float64 `json:"endTime,omitempty"`
	DeltaTime      *float64 `json:"deltaTime,omitempty"`
	CouplingMethod string   `json:"couplingMethod,omitempty"`
	RelativeEps    *float64 `json:"relativeEps,omitempty"`
	InputAtEndTime *bool    `json:"inputAtEndTime,omitempty"`
	SumTime        *bool    `json:"sumTime,omitempty"`
	EndType        string   `json:"endType,omitempty"`
	TimingOutput   *bool    `json:"timingOutput,omitempty"`
}

// ModelInput is the root document of a model file.
type ModelInput struct {
	Name        string            `json:"name,omitempty"`
	Task        TaskInput         `json:"task"`
	Results     ResultsInput      `json:"results,omitempty"`
	Components  []ComponentInput  `json:"components"`
	Connections []ConnectionInput `json:"connections,omitempty"`
	Monitoring  string            `json:"monitoring,omitempty"`
}
