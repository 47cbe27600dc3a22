// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token provides an in-memory multi-asset fungible ledger that
// satisfies the amm.AssetLedger contract. It is the reference collaborator
// for tests and for embedders that do not bring their own balance store.
package token

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger tracks per-asset balances and supplies. Safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int // asset -> owner -> balance
	supplies map[common.Address]*uint256.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supplies: make(map[common.Address]*uint256.Int),
	}
}

// Mint credits amount of asset to `to`, growing the asset's supply.
func (l *Ledger) Mint(asset, to common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, to, amount)
	s, ok := l.supplies[asset]
	if !ok {
		s = new(uint256.Int)
		l.supplies[asset] = s
	}
	s.Add(s, amount)
}

// BalanceOf implements amm.AssetLedger.
func (l *Ledger) BalanceOf(asset, owner common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[asset][owner]; ok {
		return new(uint256.Int).Set(b), nil
	}
	return new(uint256.Int), nil
}

// Transfer implements amm.AssetLedger. It fails with ErrInsufficientFunds
// rather than underflowing.
func (l *Ledger) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[asset][from]
	if !ok || b.Lt(amount) {
		return ErrInsufficientFunds
	}
	b.Sub(b, amount)
	l.credit(asset, to, amount)
	return nil
}

// TotalSupply returns the minted supply of an asset.
func (l *Ledger) TotalSupply(asset common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.supplies[asset]; ok {
		return new(uint256.Int).Set(s)
	}
	return new(uint256.Int)
}

// credit assumes l.mu is held.
func (l *Ledger) credit(asset, to common.Address, amount *uint256.Int) {
	owners, ok := l.balances[asset]
	if !ok {
		owners = make(map[common.Address]*uint256.Int)
		l.balances[asset] = owners
	}
	b, ok := owners[to]
	if !ok {
		b = new(uint256.Int)
		owners[to] = b
	}
	b.Add(b, amount)
}
