// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle derives time-weighted average prices from a pool's
// cumulative price accumulators. Because each accumulator is a running sum
// of price multiplied by elapsed seconds, the average over a window is just
// the accumulator delta divided by the window length, which makes the
// reading expensive to manipulate: a one-off reserve spike contributes
// only for as long as it persists.
package oracle

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/amm"
)

var (
	// ErrNoObservation is returned by Consult before the first Update.
	ErrNoObservation = errors.New("no prior observation")
	// ErrWindowTooShort is returned when no time has elapsed since the
	// last observation.
	ErrWindowTooShort = errors.New("observation window too short")
	// ErrUnknownAsset is returned when the consulted asset is not one of
	// the pool's pair.
	ErrUnknownAsset = errors.New("asset not in pool")
)

// Observation is a snapshot of a pool's accumulators at one settlement
// timestamp.
type Observation struct {
	Timestamp        uint32
	Price0Cumulative *uint256.Int
	Price1Cumulative *uint256.Int
}

// Observer tracks one pool and answers average-price queries over the
// window since its last update. Safe for concurrent use.
type Observer struct {
	pool *amm.Pool

	mu   sync.Mutex
	last *Observation
}

// NewObserver starts observing the given pool. Call Update once to anchor
// the window before the first Consult.
func NewObserver(pool *amm.Pool) *Observer {
	return &Observer{pool: pool}
}

// snapshot reads the pool's current accumulators and settlement time.
func (o *Observer) snapshot() Observation {
	p0, p1 := o.pool.PriceCumulatives()
	_, _, ts := o.pool.GetReserves()
	return Observation{Timestamp: ts, Price0Cumulative: p0, Price1Cumulative: p1}
}

// Update anchors a new observation window and returns the snapshot taken.
func (o *Observer) Update() Observation {
	obs := o.snapshot()
	o.mu.Lock()
	o.last = &obs
	o.mu.Unlock()
	return obs
}

// Consult returns how much of the counter asset the window's average price
// assigns to amountIn of the given asset. The accumulator subtraction is
// modulo 2^256 and the timestamp subtraction modulo 2^32, so readings
// remain correct across both wraps.
func (o *Observer) Consult(asset common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	o.mu.Lock()
	last := o.last
	o.mu.Unlock()
	if last == nil {
		return nil, ErrNoObservation
	}

	now := o.snapshot()
	elapsed := now.Timestamp - last.Timestamp // wraps
	if elapsed == 0 {
		return nil, ErrWindowTooShort
	}
	dt := uint256.NewInt(uint64(elapsed))

	asset0, asset1 := o.pool.Assets()
	var delta *uint256.Int
	switch asset {
	case asset0:
		delta = new(uint256.Int).Sub(now.Price0Cumulative, last.Price0Cumulative)
	case asset1:
		delta = new(uint256.Int).Sub(now.Price1Cumulative, last.Price1Cumulative)
	default:
		return nil, ErrUnknownAsset
	}

	avgPrice := delta.Div(delta, dt) // UQ112x112
	return amm.MulUQ112(amountIn, avgPrice), nil
}
