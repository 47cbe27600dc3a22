// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "github.com/holiman/uint256"

// sqrt returns the integer square root of y, rounded down, computed with
// Newton's method seeded at y/2+1. Converges in O(log y) iterations.
func sqrt(y *uint256.Int) *uint256.Int {
	if y.LtUint64(4) {
		if y.IsZero() {
			return new(uint256.Int)
		}
		return uint256.NewInt(1)
	}
	z := new(uint256.Int).Set(y)
	x := new(uint256.Int).Rsh(y, 1)
	x.AddUint64(x, 1)
	for x.Lt(z) {
		z.Set(x)
		// x = (y/x + x) / 2
		t := new(uint256.Int).Div(y, x)
		t.Add(t, x)
		x.Rsh(t, 1)
	}
	return z
}

// minWord returns the smaller of x and y as a fresh value.
func minWord(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Set(x)
	}
	return new(uint256.Int).Set(y)
}
