package provider

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider satisfies Provider with canned data; only the methods a test
// exercises matter.
type stubProvider struct {
	latest uint64
}

func (s *stubProvider) CodeAt(ctx context.Context, address common.Address, block BlockTag) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) StorageAt(ctx context.Context, address common.Address, slot common.Hash, block BlockTag) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return s.latest, nil
}

func (s *stubProvider) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(s.latest)}, nil
}

func (s *stubProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (s *stubProvider) BalanceAt(ctx context.Context, address common.Address, block BlockTag) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (s *stubProvider) NonceAt(ctx context.Context, address common.Address, block BlockTag) (uint64, error) {
	return 0, nil
}

func (s *stubProvider) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func TestBlockTag_PendingAndConcrete(t *testing.T) {
	p := Pending()
	assert.True(t, p.IsPending())
	assert.Nil(t, p.BigInt())
	assert.Equal(t, "pending", p.Key())

	b := AtBlock(1234)
	assert.False(t, b.IsPending())
	assert.Equal(t, uint64(1234), b.Number())
	assert.Equal(t, big.NewInt(1234), b.BigInt())
	assert.Equal(t, "1234", b.Key())
	assert.Equal(t, "1234", b.String())
}

func TestBlockTag_KeysAreDistinct(t *testing.T) {
	assert.NotEqual(t, Pending().Key(), AtBlock(0).Key())
	assert.NotEqual(t, AtBlock(1).Key(), AtBlock(2).Key())
}

func TestRegularize_Pending(t *testing.T) {
	tag, err := Regularize(context.Background(), &stubProvider{}, rpc.PendingBlockNumber)
	require.NoError(t, err)
	assert.True(t, tag.IsPending())
}

func TestRegularize_Concrete(t *testing.T) {
	tag, err := Regularize(context.Background(), &stubProvider{}, rpc.BlockNumber(77))
	require.NoError(t, err)
	assert.Equal(t, uint64(77), tag.Number())
}

func TestRegularize_SymbolicResolvesThroughProvider(t *testing.T) {
	stub := &stubProvider{latest: 9000}

	tag, err := Regularize(context.Background(), stub, rpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.False(t, tag.IsPending())
	assert.Equal(t, uint64(9000), tag.Number())

	tag, err = Regularize(context.Background(), stub, rpc.FinalizedBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), tag.Number())
}
