// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "github.com/holiman/uint256"

// UQ112x112 fixed point: prices are encoded with 112 fractional bits so a
// full-range uint112 reserve ratio survives integer division. Cumulative
// price accumulators hold sums of UQ112x112 prices multiplied by elapsed
// seconds and wrap modulo 2^256; consumers subtract two observations so the
// wrap cancels.

// UQ112Resolution is the number of fractional bits in an encoded price.
const UQ112Resolution = 112

// EncodeUQ112 encodes a uint112 as a UQ112x112 fixed-point value.
func EncodeUQ112(y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Lsh(y, UQ112Resolution)
}

// FractionUQ112 returns numerator/denominator as a UQ112x112 price.
// The denominator must be non-zero.
func FractionUQ112(numerator, denominator *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(EncodeUQ112(numerator), denominator)
}

// MulUQ112 multiplies an integer amount by a UQ112x112 price and truncates
// the result back to an integer.
func MulUQ112(amount, price *uint256.Int) *uint256.Int {
	p := new(uint256.Int).Mul(amount, price)
	return p.Rsh(p, UQ112Resolution)
}
