// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// claimLedger is the pool-owned fungible ledger tracking each address's
// liquidity claim. Total supply always equals the sum of all balances,
// including the permanently locked MinimumLiquidity at the zero address.
type claimLedger struct {
	mu          sync.RWMutex
	totalSupply uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
}

func newClaimLedger() *claimLedger {
	return &claimLedger{
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (l *claimLedger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(&l.totalSupply)
}

func (l *claimLedger) BalanceOf(owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[owner]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// mint credits amount to `to` and grows the total supply.
func (l *claimLedger) mint(to common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalSupply.Add(&l.totalSupply, amount)
	l.credit(to, amount)
}

// burn debits amount from `from` and shrinks the total supply. It fails
// with ErrInsufficientBalance rather than underflowing.
func (l *claimLedger) burn(from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.totalSupply.Sub(&l.totalSupply, amount)
	return nil
}

// Transfer moves claims between holders. Pure ledger operation; the only
// invariant is conservation of total supply.
func (l *claimLedger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Approve lets spender move up to amount of owner's claims.
func (l *claimLedger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(amount)
}

func (l *claimLedger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return new(uint256.Int)
}

// TransferFrom moves claims on behalf of owner, consuming allowance.
func (l *claimLedger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	allowance := l.allowances[from][spender]
	if allowance == nil || allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	l.credit(to, amount)
	return nil
}

// credit and debit assume l.mu is held.

func (l *claimLedger) credit(to common.Address, amount *uint256.Int) {
	b, ok := l.balances[to]
	if !ok {
		b = new(uint256.Int)
		l.balances[to] = b
	}
	b.Add(b, amount)
}

func (l *claimLedger) debit(from common.Address, amount *uint256.Int) error {
	b, ok := l.balances[from]
	if !ok || b.Lt(amount) {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}
