// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a constant-product automated market maker: a
// registry that deterministically creates isolated two-asset pools, and a
// pool engine that holds two reserves, issues a fungible liquidity claim,
// and executes deposits, withdrawals, and swaps under the x*y=k invariant.
//
// The package owns reserve accounting, liquidity minting/burning math, swap
// pricing with fee deduction, time-weighted price accumulation, and
// protocol-fee skimming. Raw asset balances live in an external ledger the
// pools only read and transfer against; see AssetLedger.
package amm

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// MinimumLiquidity is the amount of liquidity claims permanently locked to
// the zero address on the first deposit into a pool. The floor keeps the
// per-unit claim value from being manipulated near zero supply.
const MinimumLiquidity = 1000

// Swap fee: 3/1000 = 0.30% charged on input amounts.
const (
	feeNumerator   = 3
	feeDenominator = 1000
)

// MaxReserve is the largest balance a pool reserve can track: 2^112 - 1.
// Settlement fails with ErrOverflow beyond this.
var MaxReserve = new(uint256.Int).SubUint64(
	new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)

// zeroAddress receives the permanently locked MinimumLiquidity claims.
var zeroAddress = common.Address{}

// AssetLedger is the external fungible-asset ledger the pools settle
// against. It tracks raw balances for the traded assets and executes
// transfers on the pool's behalf. The engine never trusts live balances
// during invariant checks; it re-reads them only at settlement points.
//
// A Transfer error is surfaced by the engine as ErrTransferFailed.
type AssetLedger interface {
	BalanceOf(asset, owner common.Address) (*uint256.Int, error)
	Transfer(asset, from, to common.Address, amount *uint256.Int) error
}

// Callee is the flash-swap callback hook. When Swap is invoked with
// non-empty data, the engine transfers the requested outputs to the
// recipient first and then calls SwapCall on the recipient's callee; the
// callee is expected to deliver the input assets before returning.
type Callee interface {
	SwapCall(caller common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error
}

// CalleeResolver maps a swap recipient address to its callback hook.
// Resolvers return nil for addresses with no hook.
type CalleeResolver interface {
	Callee(addr common.Address) Callee
}

// CalleeMap is a map-backed CalleeResolver.
type CalleeMap map[common.Address]Callee

// Callee implements CalleeResolver.
func (m CalleeMap) Callee(addr common.Address) Callee { return m[addr] }

// Clock supplies the settlement timestamp. The engine stores the low 32
// bits and computes elapsed time with wrapping uint32 arithmetic.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// FeeSource tells a pool who, if anyone, collects the protocol fee.
// The Registry implements it; a zero address disables the fee.
type FeeSource interface {
	FeeRecipient() common.Address
}

// Errors - input validation
var (
	ErrIdenticalAssets    = errors.New("identical assets")
	ErrZeroAsset          = errors.New("zero asset")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrInsufficientOutput = errors.New("insufficient output amount")
)

// Errors - state conflict
var (
	ErrPoolExists         = errors.New("pool already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrLocked             = errors.New("pool locked")
	ErrAlreadyInitialized = errors.New("pool already initialized")
)

// Errors - invariant violation
var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientInput     = errors.New("insufficient input amount")
	ErrK                     = errors.New("constant product invariant violated")
	ErrOverflow              = errors.New("reserve overflow")
	ErrTransferFailed        = errors.New("asset transfer failed")
	ErrNoCallee              = errors.New("no swap callee for recipient")
)

// Errors - economic edge cases
var (
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
)

// Errors - liquidity claim ledger
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// u256OrZero normalizes nil amounts to zero without aliasing the input.
func u256OrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}
