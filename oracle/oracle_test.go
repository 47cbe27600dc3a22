// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/amm"
	"github.com/luxfi/amm/oracle"
	"github.com/luxfi/amm/token"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	controller   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	assetA       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	assetB       = common.HexToAddress("0x2222222222222222222222222222222222222222")
	depositor    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	stranger     = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type testClock struct{ now uint64 }

func (c *testClock) Now() uint64 { return c.now }

// newPool stands up a pool at reserves (1000, 4000): asset0 is worth four
// units of asset1.
func newPool(t *testing.T, clock *testClock) (*amm.Pool, *token.Ledger) {
	t.Helper()
	assets := token.NewLedger()
	reg, err := amm.NewRegistry(registryAddr, controller, amm.Config{Assets: assets, Clock: clock})
	require.NoError(t, err)
	pool, err := reg.CreatePool(assetA, assetB)
	require.NoError(t, err)

	assets.Mint(assetA, pool.Address(), uint256.NewInt(1000))
	assets.Mint(assetB, pool.Address(), uint256.NewInt(4000))
	_, err = pool.Deposit(depositor, depositor)
	require.NoError(t, err)
	return pool, assets
}

func TestConsultRequiresObservation(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)

	_, err := obs.Consult(assetA, uint256.NewInt(1))
	require.ErrorIs(t, err, oracle.ErrNoObservation)
}

func TestConsultRequiresElapsedTime(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	obs.Update()

	_, err := obs.Consult(assetA, uint256.NewInt(1))
	require.ErrorIs(t, err, oracle.ErrWindowTooShort)
}

func TestConsultAveragePrice(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	obs.Update()

	clock.now += 300
	require.NoError(t, pool.Sync())

	// Price held at 4.0 over the whole window: 100 of asset0 is worth 400
	// of asset1, and the reverse quote truncates to 25.
	out, err := obs.Consult(assetA, uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(400), out.Uint64())

	out, err = obs.Consult(assetB, uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(25), out.Uint64())
}

func TestConsultWeightsByTime(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, assets := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	obs.Update()

	// 100 seconds at price 4, then a deposit doubles both reserves without
	// moving the price, then 100 more seconds.
	clock.now += 100
	assets.Mint(assetA, pool.Address(), uint256.NewInt(1000))
	assets.Mint(assetB, pool.Address(), uint256.NewInt(4000))
	_, err := pool.Deposit(depositor, depositor)
	require.NoError(t, err)

	clock.now += 100
	require.NoError(t, pool.Sync())

	out, err := obs.Consult(assetA, uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(400), out.Uint64())
}

func TestConsultAcrossTimestampWrap(t *testing.T) {
	// The window straddles the 2^32 timestamp boundary; wrapping
	// subtraction of both the timestamps and the accumulators recovers
	// the true 20-second average.
	clock := &testClock{now: 1<<32 - 10}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	obs.Update()

	clock.now = 1<<32 + 10
	require.NoError(t, pool.Sync())

	out, err := obs.Consult(assetA, uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(400), out.Uint64())
}

func TestConsultUnknownAsset(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	obs.Update()

	clock.now += 10
	require.NoError(t, pool.Sync())

	_, err := obs.Consult(stranger, uint256.NewInt(1))
	require.ErrorIs(t, err, oracle.ErrUnknownAsset)
}

func TestUpdateAdvancesWindow(t *testing.T) {
	clock := &testClock{now: 1_700_000_000}
	pool, _ := newPool(t, clock)
	obs := oracle.NewObserver(pool)
	first := obs.Update()

	clock.now += 50
	require.NoError(t, pool.Sync())
	second := obs.Update()

	require.NotEqual(t, first.Timestamp, second.Timestamp)
	require.True(t, second.Price0Cumulative.Gt(first.Price0Cumulative))
}
