// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quote computes swap amounts against a constant-product pool
// without touching pool state. Routers and indexers use it to price a
// trade before submitting it; the pool engine itself never calls it.
package quote

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	feeNumerator   = 3
	feeDenominator = 1000
)

var (
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil amount")
	// ErrZeroAmount is returned when the traded amount is zero.
	ErrZeroAmount = errors.New("zero amount")
	// ErrInsufficientLiquidity is returned when a reserve is zero or the
	// requested output is not below the available reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// AmountOut returns the output obtained for amountIn against the given
// reserves, net of the 0.3% input fee:
//
//	out = reserveOut*in*997 / (reserveIn*1000 + in*997)
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, ErrNilAmount
	}
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	inWithFee := new(uint256.Int).Mul(amountIn, uint256.NewInt(feeDenominator-feeNumerator))
	numerator := new(uint256.Int).Mul(reserveOut, inWithFee)
	denominator := new(uint256.Int).Mul(reserveIn, uint256.NewInt(feeDenominator))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}

// AmountIn returns the input required to obtain amountOut against the
// given reserves, rounded up so the pool's fee-adjusted invariant holds:
//
//	in = reserveIn*out*1000 / ((reserveOut-out)*997) + 1
func AmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut == nil || reserveIn == nil || reserveOut == nil {
		return nil, ErrNilAmount
	}
	if amountOut.IsZero() {
		return nil, ErrZeroAmount
	}
	if reserveIn.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, fmt.Errorf("%w: requested %s of reserve %s",
			ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	numerator := new(uint256.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, uint256.NewInt(feeDenominator))
	denominator := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, uint256.NewInt(feeDenominator-feeNumerator))
	in := numerator.Div(numerator, denominator)
	return in.AddUint64(in, 1), nil
}

// SimulateSwap returns the output for amountIn along with the reserves as
// they would stand after the swap settles.
func SimulateSwap(amountIn, reserveIn, reserveOut *uint256.Int) (out, newReserveIn, newReserveOut *uint256.Int, err error) {
	out, err = AmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, nil, nil, err
	}
	newReserveIn = new(uint256.Int).Add(reserveIn, amountIn)
	newReserveOut = new(uint256.Int).Sub(reserveOut, out)
	return out, newReserveIn, newReserveOut, nil
}
