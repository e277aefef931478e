// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

// polynomial holds a sliding window of samples and the Newton
// divided-difference coefficients through them. The window never grows past
// its capacity; older samples are shifted out.
type polynomial struct {
	xs   []float64
	ys   []float64
	coef []float64
	cap  int
}

func newPolynomial(capacity int) *polynomial {
	if capacity < 1 {
		capacity = 1
	}
	return &polynomial{
		xs:   make([]float64, 0, capacity),
		ys:   make([]float64, 0, capacity),
		coef: make([]float64, 0, capacity),
		cap:  capacity,
	}
}

func (p *polynomial) n() int {
	return len(p.xs)
}

func (p *polynomial) x(i int) float64 { return p.xs[i] }
func (p *polynomial) y(i int) float64 { return p.ys[i] }

func (p *polynomial) add(x, y float64) {
	p.xs = append(p.xs, x)
	p.ys = append(p.ys, y)
}

// shift drops the oldest sample and appends the new one.
func (p *polynomial) shift(x, y float64) {
	copy(p.xs, p.xs[1:])
	copy(p.ys, p.ys[1:])
	p.xs[len(p.xs)-1] = x
	p.ys[len(p.ys)-1] = y
}

// replaceLast overwrites the newest sample.
func (p *polynomial) replaceLast(x, y float64) {
	p.xs[len(p.xs)-1] = x
	p.ys[len(p.ys)-1] = y
}

// calcCoefficients recomputes the Newton divided-difference coefficients for
// the current window.
func (p *polynomial) calcCoefficients() {
	n := len(p.xs)
	p.coef = append(p.coef[:0], p.ys...)
	for j := 1; j < n; j++ {
		for i := n - 1; i >= j; i-- {
			p.coef[i] = (p.coef[i] - p.coef[i-1]) / (p.xs[i] - p.xs[i-j])
		}
	}
}

// evaluate computes the polynomial at x using Horner's scheme on the Newton
// form.
func (p *polynomial) evaluate(x float64) float64 {
	n := len(p.coef)
	if n == 0 {
		return 0.0
	}
	v := p.coef[n-1]
	for i := n - 2; i >= 0; i-- {
		v = v*(x-p.xs[i]) + p.coef[i]
	}
	return v
}
