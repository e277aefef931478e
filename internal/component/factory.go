// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"fmt"
	"sort"
)

// factories maps the element type strings of the model file to their
// constructors. External element kinds register themselves with Register.
var factories = map[string]func(name string) Component{
	"constant":       func(name string) Component { return NewConstant(name) },
	"gain":           func(name string) Component { return NewGain(name) },
	"sum":            func(name string) Component { return NewSum(name) },
	"integrator":     func(name string) Component { return NewIntegrator(name) },
	"sinusGenerator": func(name string) Component { return NewSinusGenerator(name) },
	"expression":     func(name string) Component { return NewExpression(name) },
}

// Register adds an element constructor under the given type string.
// Registering an existing type is a programming error.
func Register(typeName string, fn func(name string) Component) error {
	if _, ok := factories[typeName]; ok {
		return fmt.Errorf("element type '%s' already registered", typeName)
	}
	factories[typeName] = fn
	return nil
}

// New instantiates an element of the given type.
func New(typeName, name string) (Component, error) {
	fn, ok := factories[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown element type '%s' (known: %v)", typeName, KnownTypes())
	}
	return fn(name), nil
}

// KnownTypes lists the registered element types, sorted.
func KnownTypes() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
