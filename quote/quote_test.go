// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quote

import (
	"testing"
	"testing/quick"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

func TestAmountOut(t *testing.T) {
	// 100 in against (1000, 2000): 2000*99700/(1000000+99700) = 181.
	out, err := AmountOut(u(100), u(1000), u(2000))
	require.NoError(t, err)
	require.Equal(t, uint64(181), out.Uint64())

	// Fee-free price would be 200; the fee plus slippage eats the rest.
	require.Less(t, out.Uint64(), uint64(200))
}

func TestAmountIn(t *testing.T) {
	// Asking for 100 of the 1000-side reserve against (2000, 1000).
	in, err := AmountIn(u(100), u(2000), u(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(223), in.Uint64())
}

func TestQuoteInverse(t *testing.T) {
	// AmountIn quotes enough input that AmountOut yields at least the
	// requested output.
	reserveIn, reserveOut := u(5_000_000), u(3_000_000)
	want := u(12_345)

	in, err := AmountIn(want, reserveIn, reserveOut)
	require.NoError(t, err)
	out, err := AmountOut(in, reserveIn, reserveOut)
	require.NoError(t, err)
	require.False(t, out.Lt(want), "quoted input %s yields only %s, want >= %s", in, out, want)
}

func TestQuoteErrors(t *testing.T) {
	_, err := AmountOut(nil, u(1), u(1))
	require.ErrorIs(t, err, ErrNilAmount)
	_, err = AmountOut(u(0), u(1), u(1))
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = AmountOut(u(1), u(0), u(1))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = AmountIn(u(0), u(1), u(1))
	require.ErrorIs(t, err, ErrZeroAmount)
	// Requesting the whole reserve (or more) cannot be priced.
	_, err = AmountIn(u(1000), u(1000), u(1000))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	_, err = AmountIn(u(1001), u(1000), u(1000))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSimulateSwap(t *testing.T) {
	out, newIn, newOut, err := SimulateSwap(u(100), u(1000), u(2000))
	require.NoError(t, err)
	require.Equal(t, uint64(181), out.Uint64())
	require.Equal(t, uint64(1100), newIn.Uint64())
	require.Equal(t, uint64(1819), newOut.Uint64())

	// The product never shrinks across a simulated swap.
	require.False(t, new(uint256.Int).Mul(newIn, newOut).Lt(u(2_000_000)))
}

func TestAmountOutPreservesK(t *testing.T) {
	// Property: for any non-degenerate trade, (rIn+in)*(rOut-out) >= rIn*rOut.
	property := func(in, rIn, rOut uint64) bool {
		if in == 0 || rIn == 0 || rOut == 0 {
			return true
		}
		amountIn, reserveIn, reserveOut := u(in), u(rIn), u(rOut)
		out, err := AmountOut(amountIn, reserveIn, reserveOut)
		if err != nil {
			return false
		}
		k := new(uint256.Int).Mul(reserveIn, reserveOut)
		after := new(uint256.Int).Add(reserveIn, amountIn)
		after.Mul(after, new(uint256.Int).Sub(reserveOut, out))
		return !after.Lt(k)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}
