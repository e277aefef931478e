// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"math"
	"strconv"
	"testing"
)

func TestChannelValueString(t *testing.T) {
	testCases := []struct {
		in   ChannelValue
		want string
	}{
		{DoubleValue(7.5), "7.5000000000000E+00"},
		{DoubleValue(0.0), "0.0000000000000E+00"},
		{DoubleValue(-1.25e-3), "-1.2500000000000E-03"},
		{IntegerValue(42), "42"},
		{IntegerValue(-7), "-7"},
		{BoolValue(true), "1"},
		{BoolValue(false), "0"},
		{StringValue("plain"), "plain"},
		{StringValue("with\nnewline"), "with_newline"},
		{StringValue("quote\"inside"), "quote_inside"},
		{BinaryValue([]byte{0x00, 0xab}), "\\x00\\xab"},
	}

	for _, tc := range testCases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("String(%v) = %q, want %q", tc.in.Type, got, tc.want)
		}
	}
}

func TestChannelValueStringRoundTrip(t *testing.T) {
	// parsing the encoded value back yields the original for all types
	// except binary
	d := DoubleValue(1.0 / 3.0)
	parsed, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != d.Double() {
		t.Errorf("double round trip: got %.17g, want %.17g", parsed, d.Double())
	}

	i := IntegerValue(-12345)
	pi, err := strconv.ParseInt(i.String(), 10, 32)
	if err != nil {
		t.Fatal(err)
	}
	if int32(pi) != i.Integer() {
		t.Errorf("integer round trip: got %d, want %d", pi, i.Integer())
	}
}

func TestChannelValueSetMismatch(t *testing.T) {
	d := DoubleValue(1.0)
	i := IntegerValue(1)
	if err := d.Set(&i); err == nil {
		t.Error("expected error setting Integer into Double")
	}

	var unknown ChannelValue
	if err := unknown.Set(&d); err == nil {
		t.Error("expected error setting value of unknown type")
	}
}

func TestChannelValueScaleOffset(t *testing.T) {
	v := DoubleValue(2.0)
	f := DoubleValue(3.0)
	o := DoubleValue(1.0)

	if err := v.Scale(&f); err != nil {
		t.Fatal(err)
	}
	if err := v.AddOffset(&o); err != nil {
		t.Fatal(err)
	}
	if v.Double() != 7.0 {
		t.Errorf("got %g, want 7.0", v.Double())
	}

	s := StringValue("nope")
	if err := s.Scale(&f); err == nil {
		t.Error("expected error scaling a string")
	}

	iv := IntegerValue(2)
	if err := iv.Scale(&f); err == nil {
		t.Error("expected error scaling integer by double factor")
	}
}

func TestChannelValueCompare(t *testing.T) {
	a, b := DoubleValue(1.0), DoubleValue(2.0)
	if !a.Leq(&b) || a.Geq(&b) || a.Eq(&b) {
		t.Error("double comparison broken")
	}

	i := IntegerValue(1)
	if a.Leq(&i) || a.Geq(&i) || a.Eq(&i) {
		t.Error("mixed tags must compare false")
	}

	s1, s2 := StringValue("x"), StringValue("x")
	if !s1.Eq(&s2) {
		t.Error("equal strings must compare equal")
	}
}

func TestChannelValueNaN(t *testing.T) {
	n := DoubleValue(math.NaN())
	if !n.IsNaN() {
		t.Error("NaN not detected")
	}
	iv := IntegerValue(1)
	if iv.IsNaN() {
		t.Error("integer can never be NaN")
	}
}

func TestBinarySetCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	v := BinaryValue(src)
	src[0] = 9
	if v.Binary()[0] != 1 {
		t.Error("owned binary value must copy its payload")
	}

	dst := NewChannelValue(ChannelTypeBinary)
	if err := dst.Set(&v); err != nil {
		t.Fatal(err)
	}
	v.Binary()[1] = 8
	if dst.Binary()[1] != 2 {
		t.Error("Set must copy owned binary payloads")
	}
}
