// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"bytes"
	"errors"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"
)

// poolTemplateTag names the creation template that, together with the
// canonical asset pair and the registry identity, fixes a pool's address.
// Bumping the tag changes every derived address; it is part of the wire
// identity, not a version string.
const poolTemplateTag = "lux/amm/pool/v1"

var poolTemplateHash = blake3.Sum256([]byte(poolTemplateTag))

// PoolAddress derives the deterministic identity of the pool for the
// canonically ordered pair (asset0, asset1) created by the given registry.
// The same inputs always yield the same address across independent
// re-derivations, so observers can compute a pool's identity without
// querying prior state.
func PoolAddress(registry, asset0, asset1 common.Address) common.Address {
	salt := blake3.New()
	salt.Write(asset0.Bytes())
	salt.Write(asset1.Bytes())
	var s [32]byte
	salt.Digest().Read(s[:])

	h := blake3.New()
	h.Write(registry.Bytes())
	h.Write(s[:])
	h.Write(poolTemplateHash[:])
	var id [32]byte
	h.Digest().Read(id[:])
	return common.BytesToAddress(id[12:])
}

// Config carries the collaborators a registry wires into every pool it
// creates. Assets is required; everything else has a default.
type Config struct {
	// Assets is the external fungible-asset ledger (required).
	Assets AssetLedger
	// Clock supplies settlement timestamps; defaults to SystemClock.
	Clock Clock
	// Events receives the structured operation log; defaults to a sink
	// that drops everything.
	Events EventSink
	// Log receives key/value diagnostics.
	Log log.Logger
	// Callees resolves flash-swap callback hooks; defaults to none.
	Callees CalleeResolver
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Events == nil {
		c.Events = nopSink{}
	}
	if c.Log == nil {
		c.Log = log.NewTestLogger(log.InfoLevel)
	}
	return c
}

// Registry owns the mapping from unordered asset pairs to pools and the
// append-only list of every pool created. It is created once with a
// designated fee controller; pools consult it for the current protocol-fee
// recipient and for nothing else.
type Registry struct {
	addr common.Address
	cfg  Config
	log  log.Logger

	mu            sync.RWMutex
	feeRecipient  common.Address
	feeController common.Address
	poolOf        map[common.Address]map[common.Address]*Pool
	allPools      []*Pool
}

// NewRegistry creates a registry identified by addr with the given initial
// fee controller.
func NewRegistry(addr, feeController common.Address, cfg Config) (*Registry, error) {
	if cfg.Assets == nil {
		return nil, errors.New("amm: Config.Assets is required")
	}
	cfg = cfg.withDefaults()
	return &Registry{
		addr:          addr,
		cfg:           cfg,
		log:           cfg.Log,
		feeController: feeController,
		poolOf:        make(map[common.Address]map[common.Address]*Pool),
	}, nil
}

// Address returns the registry's identity, an input to every pool address
// it derives.
func (r *Registry) Address() common.Address { return r.addr }

// CreatePool creates and initializes the pool for the unordered pair
// (assetX, assetY). The pair is canonicalized by byte order before the
// address is derived, so both argument orders yield the identical pool.
// Exactly one pool can ever exist per pair.
func (r *Registry) CreatePool(assetX, assetY common.Address) (*Pool, error) {
	if assetX == assetY {
		return nil, ErrIdenticalAssets
	}
	lo, hi := assetX, assetY
	if bytes.Compare(hi.Bytes(), lo.Bytes()) < 0 {
		lo, hi = hi, lo
	}
	if lo == zeroAddress {
		return nil, ErrZeroAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poolOf[lo][hi] != nil {
		return nil, ErrPoolExists
	}

	pool := newPool(PoolAddress(r.addr, lo, hi), r.addr, r.cfg, r)
	if err := pool.Initialize(r.addr, lo, hi); err != nil {
		return nil, err
	}
	r.register(lo, hi, pool)
	r.register(hi, lo, pool)
	r.allPools = append(r.allPools, pool)

	r.cfg.Events.Emit(PoolCreatedEvent{Asset0: lo, Asset1: hi, Pool: pool.Address(), Index: len(r.allPools)})
	r.log.Info("pool created", "asset0", lo, "asset1", hi,
		"pool", pool.Address(), "count", len(r.allPools))
	return pool, nil
}

// register assumes r.mu is held.
func (r *Registry) register(a, b common.Address, pool *Pool) {
	m, ok := r.poolOf[a]
	if !ok {
		m = make(map[common.Address]*Pool)
		r.poolOf[a] = m
	}
	m[b] = pool
}

// Pool returns the pool for the unordered pair, in either argument order,
// or nil if none exists.
func (r *Registry) Pool(assetX, assetY common.Address) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.poolOf[assetX][assetY]
}

// AllPools returns every pool in creation order.
func (r *Registry) AllPools() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pool, len(r.allPools))
	copy(out, r.allPools)
	return out
}

// PoolCount returns the number of pools ever created.
func (r *Registry) PoolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.allPools)
}

// FeeRecipient implements FeeSource. A zero address means the protocol
// fee is disabled.
func (r *Registry) FeeRecipient() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient
}

// FeeController returns the address authorized to change the fee
// recipient and the controller itself.
func (r *Registry) FeeController() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeController
}

// SetFeeRecipient changes the protocol-fee recipient. Only the current
// fee controller may call it; the zero address disables the fee.
func (r *Registry) SetFeeRecipient(caller, recipient common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.feeController {
		return ErrForbidden
	}
	r.feeRecipient = recipient
	return nil
}

// SetFeeController hands fee control to a new address. Only the current
// fee controller may call it.
func (r *Registry) SetFeeController(caller, controller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.feeController {
		return ErrForbidden
	}
	r.feeController = controller
	return nil
}
