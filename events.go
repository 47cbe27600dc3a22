// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Events are the sole externally observable log of state transitions
// besides direct state reads. Every mutating registry or pool operation
// emits exactly one event (plus a SyncEvent per reserve settlement) through
// the configured EventSink.

// Event is a structured record of a completed state transition.
type Event interface {
	// Name identifies the event kind for sinks that index by type.
	Name() string
}

// EventSink receives events from registries and pools. Implementations
// must be safe for use from multiple pools.
type EventSink interface {
	Emit(Event)
}

// PoolCreatedEvent is emitted by the registry for each new pool.
type PoolCreatedEvent struct {
	Asset0 common.Address // lower-ordered asset
	Asset1 common.Address // higher-ordered asset
	Pool   common.Address
	Index  int // total pool count after creation
}

// DepositEvent is emitted when liquidity is added to a pool.
type DepositEvent struct {
	Pool    common.Address
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// WithdrawEvent is emitted when liquidity is removed from a pool.
type WithdrawEvent struct {
	Pool    common.Address
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	To      common.Address
}

// SwapEvent is emitted for every completed swap.
type SwapEvent struct {
	Pool       common.Address
	Sender     common.Address
	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	To         common.Address
}

// SyncEvent is emitted whenever tracked reserves settle to new values.
type SyncEvent struct {
	Pool     common.Address
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

func (PoolCreatedEvent) Name() string { return "pool_created" }
func (DepositEvent) Name() string     { return "deposit" }
func (WithdrawEvent) Name() string    { return "withdraw" }
func (SwapEvent) Name() string        { return "swap" }
func (SyncEvent) Name() string        { return "sync" }

// Recorder is an EventSink that appends events in emission order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Emit implements EventSink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// nopSink drops events; used when no sink is configured.
type nopSink struct{}

func (nopSink) Emit(Event) {}
