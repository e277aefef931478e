// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package util

// RepeatGuard suppresses repeated log messages after a configured number of
// occurrences. Max == 0 means unlimited.
type RepeatGuard struct {
	Max   uint
	count uint
}

// Allow reports whether the message may still be emitted and counts the
// occurrence.
func (g *RepeatGuard) Allow() bool {
	g.count++
	return g.Max == 0 || g.count <= g.Max
}

// JustExhausted reports whether the previous Allow call was the last
// permitted one, so call sites can log a final "suppressing further
// messages" notice.
func (g *RepeatGuard) JustExhausted() bool {
	return g.Max != 0 && g.count == g.Max
}

// Count returns the number of occurrences seen so far.
func (g *RepeatGuard) Count() uint {
	return g.count
}
