// Package provider defines the chain data source the decoder reads from.
// The decoder core never retries or interprets provider failures; they
// propagate to the caller unchanged.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Provider is the read-only chain surface the decoder consumes. It is
// satisfied by *ethclient.Client via RpcProvider, and by in-memory fakes in
// tests.
type Provider interface {
	CodeAt(ctx context.Context, address common.Address, block BlockTag) ([]byte, error)
	StorageAt(ctx context.Context, address common.Address, slot common.Hash, block BlockTag) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	// HeaderByNumber resolves a symbolic or numeric block reference to its
	// header; nil asks for the latest block.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, address common.Address, block BlockTag) (*big.Int, error)
	NonceAt(ctx context.Context, address common.Address, block BlockTag) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}
