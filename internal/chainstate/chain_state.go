package chainstate

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// AccountObservation is a snapshot of on-chain facts about an account. It is
// a cache, never a source of truth: the chain decides, callers refresh.
type AccountObservation struct {
	Deployed  bool
	Nonce     *big.Int
	FetchedAt time.Time
}

// ChainState caches account observations per address with an explicit
// refresh contract, mirroring the locked fetch-through caches the rest of
// the system uses for chain-derived data.
type ChainState struct {
	reader Reader

	accountCacheLock sync.RWMutex
	accountCache     map[ethcommon.Address]*AccountObservation

	maxAge time.Duration
}

func NewChainState(reader Reader, maxAge time.Duration) *ChainState {
	return &ChainState{
		reader:       reader,
		accountCache: make(map[ethcommon.Address]*AccountObservation),
		maxAge:       maxAge,
	}
}

func (c *ChainState) Reader() Reader {
	return c.reader
}

// Observe returns the cached observation for addr, fetching when the cache
// is empty or stale.
func (c *ChainState) Observe(ctx context.Context, addr ethcommon.Address) (*AccountObservation, error) {
	c.accountCacheLock.RLock()
	ob, ok := c.accountCache[addr]
	c.accountCacheLock.RUnlock()
	if ok && (c.maxAge <= 0 || time.Since(ob.FetchedAt) < c.maxAge) {
		return ob, nil
	}
	return c.Refresh(ctx, addr)
}

// Refresh re-reads deployed state and nonce from the chain, replacing any
// cached observation.
func (c *ChainState) Refresh(ctx context.Context, addr ethcommon.Address) (*AccountObservation, error) {
	code, err := c.reader.CodeAt(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "read code for %s", addr)
	}
	nonce, err := c.reader.NonceAt(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "read nonce for %s", addr)
	}

	ob := &AccountObservation{
		Deployed:  len(code) > 0,
		Nonce:     nonce,
		FetchedAt: time.Now(),
	}
	c.accountCacheLock.Lock()
	c.accountCache[addr] = ob
	c.accountCacheLock.Unlock()
	return ob, nil
}

// Invalidate drops the cached observation, forcing the next Observe to hit
// the chain. Called after an operation lands, since it bumps the nonce.
func (c *ChainState) Invalidate(addr ethcommon.Address) {
	c.accountCacheLock.Lock()
	delete(c.accountCache, addr)
	c.accountCacheLock.Unlock()
}
