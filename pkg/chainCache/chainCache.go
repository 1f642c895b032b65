// Package chainCache holds the per-project caches for fetched bytecode and
// storage words. Entries are keyed by regularized block tag, so a symbolic
// block name resolved at two different times can never collide. The pending
// tag is never cached: every pending read goes back to the fetcher.
//
// Writes are idempotent for a given key (the chain state at a concrete block
// never changes), so concurrent population races are harmless and a plain
// RWMutex is all the synchronization needed.
package chainCache

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solscope/solscope/pkg/provider"
)

// CodeFetcher loads bytecode on a cache miss.
type CodeFetcher func(ctx context.Context) ([]byte, error)

// WordFetcher loads a single storage word on a cache miss.
type WordFetcher func(ctx context.Context) (common.Hash, error)

// CodeCache caches account bytecode by (block tag, address).
type CodeCache struct {
	mu      sync.RWMutex
	byBlock map[string]map[common.Address][]byte
}

func NewCodeCache() *CodeCache {
	return &CodeCache{
		byBlock: make(map[string]map[common.Address][]byte),
	}
}

// Get returns the cached bytecode for (block, address), calling fetch at most
// once per key. Pending reads bypass the cache entirely and are not stored.
func (c *CodeCache) Get(ctx context.Context, block provider.BlockTag, address common.Address, fetch CodeFetcher) ([]byte, error) {
	if block.IsPending() {
		return fetch(ctx)
	}

	key := block.Key()
	c.mu.RLock()
	if code, ok := c.byBlock[key][address]; ok {
		c.mu.RUnlock()
		return code, nil
	}
	c.mu.RUnlock()

	code, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.byBlock[key] == nil {
		c.byBlock[key] = make(map[common.Address][]byte)
	}
	c.byBlock[key][address] = code
	c.mu.Unlock()
	return code, nil
}

// StorageCache caches storage words by (block tag, address, slot).
type StorageCache struct {
	mu      sync.RWMutex
	byBlock map[string]map[common.Address]map[common.Hash]common.Hash
}

func NewStorageCache() *StorageCache {
	return &StorageCache{
		byBlock: make(map[string]map[common.Address]map[common.Hash]common.Hash),
	}
}

// Get mirrors CodeCache.Get with one more key level for the slot.
func (c *StorageCache) Get(ctx context.Context, block provider.BlockTag, address common.Address, slot common.Hash, fetch WordFetcher) (common.Hash, error) {
	if block.IsPending() {
		return fetch(ctx)
	}

	key := block.Key()
	c.mu.RLock()
	if word, ok := c.byBlock[key][address][slot]; ok {
		c.mu.RUnlock()
		return word, nil
	}
	c.mu.RUnlock()

	word, err := fetch(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	if c.byBlock[key] == nil {
		c.byBlock[key] = make(map[common.Address]map[common.Hash]common.Hash)
	}
	if c.byBlock[key][address] == nil {
		c.byBlock[key][address] = make(map[common.Hash]common.Hash)
	}
	c.byBlock[key][address][slot] = word
	c.mu.Unlock()
	return word, nil
}
