// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package util

import "testing"

func TestDoubleCompare(t *testing.T) {
	SetTimeEps(1e-9)
	defer SetTimeEps(1e-8)

	if !DoubleEq(1.0, 1.0+1e-10) {
		t.Error("values within epsilon must compare equal")
	}
	if DoubleEq(1.0, 1.0+1e-8) {
		t.Error("values outside epsilon must not compare equal")
	}
	if !DoubleLt(1.0, 1.1) || DoubleLt(1.0, 1.0+1e-10) {
		t.Error("DoubleLt epsilon handling broken")
	}
	if !DoubleGt(1.1, 1.0) || DoubleGt(1.0+1e-10, 1.0) {
		t.Error("DoubleGt epsilon handling broken")
	}
	if !DoubleGeq(1.0, 1.0+1e-10) || !DoubleLeq(1.0+1e-10, 1.0) {
		t.Error("DoubleGeq/DoubleLeq epsilon handling broken")
	}
}

func TestRepeatGuard(t *testing.T) {
	g := RepeatGuard{Max: 2}

	if !g.Allow() {
		t.Error("first occurrence must pass")
	}
	if g.JustExhausted() {
		t.Error("not exhausted after one occurrence")
	}
	if !g.Allow() {
		t.Error("second occurrence must pass")
	}
	if !g.JustExhausted() {
		t.Error("exactly exhausted after the second occurrence")
	}
	if g.Allow() {
		t.Error("third occurrence must be suppressed")
	}

	unlimited := RepeatGuard{}
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("unlimited guard must always pass")
		}
	}
}
