// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Pool holds the reserves and liquidity ledger for exactly one unordered
// asset pair. Pools are created and initialized by a Registry; all economic
// activity flows through the pool directly.
//
// Every externally triggered operation runs under a reentrancy gate: entry
// fails with ErrLocked while another operation is in flight, and the gate
// clears on every exit path. Within one pool the execution model is a
// single atomic operation at a time; the only suspension point is the
// flash-swap callback, which runs with the gate held.
//
// Failure atomicity: a failed operation leaves reserves, the liquidity
// ledger, and the price accumulators untouched. Asset transfers already
// issued to the external ledger before the failure (the optimistic swap
// outputs, the withdraw payouts) are the embedder's to roll back; the
// engine never performs compensating transfers itself.
type Pool struct {
	addr     common.Address
	registry common.Address // sole authorized initializer

	assets  AssetLedger
	clock   Clock
	events  EventSink
	log     log.Logger
	callees CalleeResolver
	fees    FeeSource

	mu          sync.RWMutex
	locked      bool
	initialized bool
	asset0      common.Address
	asset1      common.Address
	reserve0    uint256.Int
	reserve1    uint256.Int
	// Last settlement time, wrapping modulo 2^32.
	timestampLast uint32
	// Time-weighted UQ112x112 price sums, wrapping modulo 2^256.
	price0Cumulative uint256.Int
	price1Cumulative uint256.Int
	// reserve0*reserve1 as of the last liquidity event with the protocol
	// fee enabled; zero otherwise.
	kLast uint256.Int

	ledger *claimLedger
}

func newPool(addr, registry common.Address, cfg Config, fees FeeSource) *Pool {
	return &Pool{
		addr:     addr,
		registry: registry,
		assets:   cfg.Assets,
		clock:    cfg.Clock,
		events:   cfg.Events,
		log:      cfg.Log,
		callees:  cfg.Callees,
		fees:     fees,
		ledger:   newClaimLedger(),
	}
}

// Initialize fixes the pool's asset pair. Only the creating registry may
// call it, exactly once; the registry invokes it as part of CreatePool.
func (p *Pool) Initialize(caller, asset0, asset1 common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.registry {
		return ErrForbidden
	}
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.asset0 = asset0
	p.asset1 = asset1
	p.initialized = true
	return nil
}

// Address returns the pool's deterministic identity.
func (p *Pool) Address() common.Address { return p.addr }

// Assets returns the pool's asset pair in canonical order.
func (p *Pool) Assets() (asset0, asset1 common.Address) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.asset0, p.asset1
}

// GetReserves returns the tracked reserves and the last settlement time.
func (p *Pool) GetReserves() (reserve0, reserve1 *uint256.Int, timestampLast uint32) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.reserve0), new(uint256.Int).Set(&p.reserve1), p.timestampLast
}

// PriceCumulatives returns the time-weighted UQ112x112 price accumulators.
// They wrap modulo 2^256; consumers must subtract two readings.
func (p *Pool) PriceCumulatives() (price0, price1 *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.price0Cumulative), new(uint256.Int).Set(&p.price1Cumulative)
}

// Liquidity claim ledger surface.

// TotalSupply returns the outstanding liquidity claims.
func (p *Pool) TotalSupply() *uint256.Int { return p.ledger.TotalSupply() }

// BalanceOf returns owner's liquidity claim balance.
func (p *Pool) BalanceOf(owner common.Address) *uint256.Int { return p.ledger.BalanceOf(owner) }

// Transfer moves liquidity claims between holders.
func (p *Pool) Transfer(from, to common.Address, amount *uint256.Int) error {
	return p.ledger.Transfer(from, to, u256OrZero(amount))
}

// Approve lets spender move up to amount of owner's claims.
func (p *Pool) Approve(owner, spender common.Address, amount *uint256.Int) {
	p.ledger.Approve(owner, spender, u256OrZero(amount))
}

// Allowance returns the remaining approval from owner to spender.
func (p *Pool) Allowance(owner, spender common.Address) *uint256.Int {
	return p.ledger.Allowance(owner, spender)
}

// TransferFrom moves owner's claims using spender's allowance.
func (p *Pool) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	return p.ledger.TransferFrom(spender, from, to, u256OrZero(amount))
}

// lock acquires the reentrancy gate.
func (p *Pool) lock() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return ErrLocked
	}
	p.locked = true
	return nil
}

// unlock releases the gate; deferred on every gated operation so a failed
// call never leaves the pool permanently locked.
func (p *Pool) unlock() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

// reserves snapshots the tracked reserves.
func (p *Pool) reserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.reserve0), new(uint256.Int).Set(&p.reserve1)
}

func (p *Pool) balanceOf(asset common.Address) (*uint256.Int, error) {
	b, err := p.assets.BalanceOf(asset, p.addr)
	if err != nil {
		return nil, fmt.Errorf("asset %s balance: %w", asset, err)
	}
	return u256OrZero(b), nil
}

// Deposit mints liquidity claims to `to` for the assets transferred to the
// pool since the last settlement. The caller must have moved both deposit
// amounts to the pool's address on the asset ledger before calling.
//
// The first deposit mints sqrt(amount0*amount1) claims, of which
// MinimumLiquidity is locked at the zero address forever. Later deposits
// mint the minimum of the two reserve-proportional amounts; any excess of
// the better-proportioned asset accrues to existing holders.
func (p *Pool) Deposit(sender, to common.Address) (*uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.unlock()

	r0, r1 := p.reserves()
	bal0, err := p.balanceOf(p.asset0)
	if err != nil {
		return nil, err
	}
	bal1, err := p.balanceOf(p.asset1)
	if err != nil {
		return nil, err
	}
	amount0 := clampedSub(bal0, r0)
	amount1 := clampedSub(bal1, r1)

	// Bound the balances before any mint math: past 2^112 the products
	// below can wrap, and the overflow must win over a mint-size error.
	if bal0.Gt(MaxReserve) || bal1.Gt(MaxReserve) {
		return nil, ErrOverflow
	}

	feeOn, feeLiquidity, feeTo := p.protocolFee(r0, r1)
	supply := new(uint256.Int).Add(p.ledger.TotalSupply(), feeLiquidity)

	liquidity := new(uint256.Int)
	first := supply.IsZero()
	if first {
		root := sqrt(new(uint256.Int).Mul(amount0, amount1))
		if root.LtUint64(MinimumLiquidity + 1) {
			return nil, ErrInsufficientLiquidityMinted
		}
		liquidity.SubUint64(root, MinimumLiquidity)
	} else {
		l0 := new(uint256.Int).Mul(amount0, supply)
		l0.Div(l0, r0)
		l1 := new(uint256.Int).Mul(amount1, supply)
		l1.Div(l1, r1)
		liquidity = minWord(l0, l1)
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}

	// All checks passed; commit.
	if !feeLiquidity.IsZero() {
		p.ledger.mint(feeTo, feeLiquidity)
	}
	if first {
		p.ledger.mint(zeroAddress, uint256.NewInt(MinimumLiquidity))
	}
	p.ledger.mint(to, liquidity)
	p.update(bal0, bal1)
	p.settleKLast(feeOn)

	p.events.Emit(DepositEvent{Pool: p.addr, Sender: sender, Amount0: amount0, Amount1: amount1})
	p.log.Debug("deposit", "pool", p.addr, "sender", sender,
		"amount0", amount0, "amount1", amount1, "liquidity", liquidity)
	return liquidity, nil
}

// Withdraw burns the liquidity claims held by the pool itself and pays out
// the pro-rata share of both assets to `to`. The caller must have
// transferred the claims to the pool's address before calling.
func (p *Pool) Withdraw(sender, to common.Address) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	r0, r1 := p.reserves()
	bal0, err := p.balanceOf(p.asset0)
	if err != nil {
		return nil, nil, err
	}
	bal1, err := p.balanceOf(p.asset1)
	if err != nil {
		return nil, nil, err
	}
	liquidity := p.ledger.BalanceOf(p.addr)

	feeOn, feeLiquidity, feeTo := p.protocolFee(r0, r1)
	supply := new(uint256.Int).Add(p.ledger.TotalSupply(), feeLiquidity)

	amount0 := new(uint256.Int).Mul(liquidity, bal0)
	amount0.Div(amount0, supply)
	amount1 := new(uint256.Int).Mul(liquidity, bal1)
	amount1.Div(amount1, supply)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	// Pay out before touching engine state so a failed transfer leaves
	// reserves and the claim ledger unchanged.
	if err := p.assets.Transfer(p.asset0, p.addr, to, amount0); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset0, err)
	}
	if err := p.assets.Transfer(p.asset1, p.addr, to, amount1); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset1, err)
	}
	bal0, err = p.balanceOf(p.asset0)
	if err != nil {
		return nil, nil, err
	}
	bal1, err = p.balanceOf(p.asset1)
	if err != nil {
		return nil, nil, err
	}
	if bal0.Gt(MaxReserve) || bal1.Gt(MaxReserve) {
		return nil, nil, ErrOverflow
	}

	if !feeLiquidity.IsZero() {
		p.ledger.mint(feeTo, feeLiquidity)
	}
	if err := p.ledger.burn(p.addr, liquidity); err != nil {
		// Unreachable: the pool's balance was read as liquidity above and
		// only this operation can touch it while the gate is held.
		return nil, nil, err
	}
	p.update(bal0, bal1)
	p.settleKLast(feeOn)

	p.events.Emit(WithdrawEvent{Pool: p.addr, Sender: sender, Amount0: amount0, Amount1: amount1, To: to})
	p.log.Debug("withdraw", "pool", p.addr, "sender", sender,
		"amount0", amount0, "amount1", amount1, "to", to)
	return amount0, amount1, nil
}

// Swap sends the requested output amounts to `to`, then requires that the
// implicit inputs delivered to the pool satisfy the fee-adjusted constant
// product. Outputs are transferred before inputs are checked, so a
// recipient with a registered Callee can borrow and repay within the same
// call: when data is non-empty the recipient's SwapCall hook runs between
// the optimistic transfer and the invariant check.
func (p *Pool) Swap(sender common.Address, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	out0 := u256OrZero(amount0Out)
	out1 := u256OrZero(amount1Out)
	if out0.IsZero() && out1.IsZero() {
		return ErrInsufficientOutput
	}
	r0, r1 := p.reserves()
	if !out0.Lt(r0) || !out1.Lt(r1) {
		return ErrInsufficientLiquidity
	}
	if to == p.asset0 || to == p.asset1 {
		return ErrInvalidRecipient
	}

	// Optimistic transfer of the requested outputs.
	if !out0.IsZero() {
		if err := p.assets.Transfer(p.asset0, p.addr, to, out0); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset0, err)
		}
	}
	if !out1.IsZero() {
		if err := p.assets.Transfer(p.asset1, p.addr, to, out1); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset1, err)
		}
	}
	if len(data) > 0 {
		var callee Callee
		if p.callees != nil {
			callee = p.callees.Callee(to)
		}
		if callee == nil {
			return ErrNoCallee
		}
		if err := callee.SwapCall(sender, out0, out1, data); err != nil {
			return fmt.Errorf("swap callback: %w", err)
		}
	}

	// Authoritative post-callback balances; nothing echoed by the callee
	// is trusted.
	bal0, err := p.balanceOf(p.asset0)
	if err != nil {
		return err
	}
	bal1, err := p.balanceOf(p.asset1)
	if err != nil {
		return err
	}
	in0 := implicitInput(bal0, r0, out0)
	in1 := implicitInput(bal1, r1, out1)
	if in0.IsZero() && in1.IsZero() {
		return ErrInsufficientInput
	}
	if bal0.Gt(MaxReserve) || bal1.Gt(MaxReserve) {
		return ErrOverflow
	}

	// Fee-adjusted invariant: scale balances by 1000, deduct 3 per 1000 of
	// each input, and require the product not to fall below k scaled by
	// 1000^2. Equivalent to charging 0.3% on whichever assets were
	// actually supplied.
	adj0 := feeAdjusted(bal0, in0)
	adj1 := feeAdjusted(bal1, in1)
	kBefore := new(uint256.Int).Mul(r0, r1)
	kBefore.Mul(kBefore, uint256.NewInt(feeDenominator*feeDenominator))
	if new(uint256.Int).Mul(adj0, adj1).Lt(kBefore) {
		return ErrK
	}

	p.update(bal0, bal1)

	p.events.Emit(SwapEvent{
		Pool: p.addr, Sender: sender,
		Amount0In: in0, Amount1In: in1,
		Amount0Out: out0, Amount1Out: out1,
		To: to,
	})
	p.log.Debug("swap", "pool", p.addr, "sender", sender,
		"in0", in0, "in1", in1, "out0", out0, "out1", out1, "to", to)
	return nil
}

// Skim transfers any live balance in excess of the tracked reserves to
// `to`. It recovers assets sent to the pool outside the deposit flow
// without touching the invariant.
func (p *Pool) Skim(to common.Address) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	r0, r1 := p.reserves()
	bal0, err := p.balanceOf(p.asset0)
	if err != nil {
		return err
	}
	bal1, err := p.balanceOf(p.asset1)
	if err != nil {
		return err
	}
	if excess := clampedSub(bal0, r0); !excess.IsZero() {
		if err := p.assets.Transfer(p.asset0, p.addr, to, excess); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset0, err)
		}
	}
	if excess := clampedSub(bal1, r1); !excess.IsZero() {
		if err := p.assets.Transfer(p.asset1, p.addr, to, excess); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransferFailed, p.asset1, err)
		}
	}
	return nil
}

// Sync forces the tracked reserves to match the live balances, rolling the
// price accumulators forward for the elapsed time first.
func (p *Pool) Sync() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	bal0, err := p.balanceOf(p.asset0)
	if err != nil {
		return err
	}
	bal1, err := p.balanceOf(p.asset1)
	if err != nil {
		return err
	}
	if bal0.Gt(MaxReserve) || bal1.Gt(MaxReserve) {
		return ErrOverflow
	}
	p.update(bal0, bal1)
	return nil
}

// update settles reserves to the given balances. Callers must have checked
// the balances against MaxReserve. If time has passed and both prior
// reserves were non-zero, the elapsed interval is added to the cumulative
// price sums first, so a reserve spike weighs only as long as it lasted.
func (p *Pool) update(bal0, bal1 *uint256.Int) {
	p.mu.Lock()
	now := uint32(p.clock.Now())
	elapsed := now - p.timestampLast // wraps modulo 2^32
	if elapsed > 0 && !p.reserve0.IsZero() && !p.reserve1.IsZero() {
		dt := uint256.NewInt(uint64(elapsed))
		d0 := FractionUQ112(&p.reserve1, &p.reserve0)
		p.price0Cumulative.Add(&p.price0Cumulative, d0.Mul(d0, dt))
		d1 := FractionUQ112(&p.reserve0, &p.reserve1)
		p.price1Cumulative.Add(&p.price1Cumulative, d1.Mul(d1, dt))
	}
	p.reserve0.Set(bal0)
	p.reserve1.Set(bal1)
	p.timestampLast = now
	r0 := new(uint256.Int).Set(&p.reserve0)
	r1 := new(uint256.Int).Set(&p.reserve1)
	p.mu.Unlock()

	p.events.Emit(SyncEvent{Pool: p.addr, Reserve0: r0, Reserve1: r1})
}

// protocolFee computes the liquidity owed to the protocol-fee recipient
// for the invariant growth since the last liquidity event: 1/6 of the
// sqrt(k) growth, the 0.05% protocol cut of the 0.3% trading fee. Pure
// computation; the caller commits the mint once all checks have passed.
func (p *Pool) protocolFee(r0, r1 *uint256.Int) (feeOn bool, liquidity *uint256.Int, feeTo common.Address) {
	feeTo = p.fees.FeeRecipient()
	feeOn = feeTo != zeroAddress
	liquidity = new(uint256.Int)

	p.mu.RLock()
	kLast := new(uint256.Int).Set(&p.kLast)
	p.mu.RUnlock()
	if !feeOn || kLast.IsZero() {
		return feeOn, liquidity, feeTo
	}

	rootK := sqrt(new(uint256.Int).Mul(r0, r1))
	rootKLast := sqrt(kLast)
	if rootK.Gt(rootKLast) {
		num := new(uint256.Int).Sub(rootK, rootKLast)
		num.Mul(num, p.ledger.TotalSupply())
		den := new(uint256.Int).Mul(rootK, uint256.NewInt(5))
		den.Add(den, rootKLast)
		liquidity.Div(num, den)
	}
	return feeOn, liquidity, feeTo
}

// settleKLast records k after a liquidity event while the fee is enabled,
// or clears it when disabled.
func (p *Pool) settleKLast(feeOn bool) {
	p.mu.Lock()
	if feeOn {
		p.kLast.Mul(&p.reserve0, &p.reserve1)
	} else {
		p.kLast.Clear()
	}
	p.mu.Unlock()
}

// clampedSub returns x-y, or zero if y > x.
func clampedSub(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}

// implicitInput derives how much of an asset was delivered to the pool
// during a swap: the balance above the post-output reserve floor.
func implicitInput(balance, reserve, out *uint256.Int) *uint256.Int {
	floor := new(uint256.Int).Sub(reserve, out) // out < reserve checked by caller
	return clampedSub(balance, floor)
}

// feeAdjusted returns balance*1000 - in*3.
func feeAdjusted(balance, in *uint256.Int) *uint256.Int {
	adj := new(uint256.Int).Mul(balance, uint256.NewInt(feeDenominator))
	cut := new(uint256.Int).Mul(in, uint256.NewInt(feeNumerator))
	return adj.Sub(adj, cut)
}
