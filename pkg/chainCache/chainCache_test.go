package chainCache

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solscope/solscope/pkg/provider"
)

func TestCodeCache_FetchesAtMostOncePerKey(t *testing.T) {
	cache := NewCodeCache()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte{0x60, 0x0a}, nil
	}

	for i := 0; i < 3; i++ {
		code, err := cache.Get(context.Background(), provider.AtBlock(100), addr, fetch)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x60, 0x0a}, code)
	}
	assert.Equal(t, 1, calls)

	// A different block is a different key.
	_, err := cache.Get(context.Background(), provider.AtBlock(101), addr, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCodeCache_PendingBypassesCache(t *testing.T) {
	cache := NewCodeCache()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte{byte(calls)}, nil
	}

	first, err := cache.Get(context.Background(), provider.Pending(), addr, fetch)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), provider.Pending(), addr, fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "pending reads always refetch")
	assert.NotEqual(t, first, second)
}

func TestCodeCache_FetchErrorNotCached(t *testing.T) {
	cache := NewCodeCache()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []byte{0x01}, nil
	}

	_, err := cache.Get(context.Background(), provider.AtBlock(5), addr, fetch)
	require.Error(t, err)

	code, err := cache.Get(context.Background(), provider.AtBlock(5), addr, fetch)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, code)
	assert.Equal(t, 2, calls)
}

func TestStorageCache_KeyedBySlot(t *testing.T) {
	cache := NewStorageCache()
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	slotA := common.HexToHash("0x01")
	slotB := common.HexToHash("0x02")
	calls := 0
	fetch := func(ctx context.Context) (common.Hash, error) {
		calls++
		return common.HexToHash("0xff"), nil
	}

	_, err := cache.Get(context.Background(), provider.AtBlock(7), addr, slotA, fetch)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), provider.AtBlock(7), addr, slotA, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = cache.Get(context.Background(), provider.AtBlock(7), addr, slotB, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStorageCache_PendingBypassesCache(t *testing.T) {
	cache := NewStorageCache()
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	slot := common.HexToHash("0x01")
	calls := 0
	fetch := func(ctx context.Context) (common.Hash, error) {
		calls++
		return common.Hash{}, nil
	}

	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background(), provider.Pending(), addr, slot, fetch)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}
