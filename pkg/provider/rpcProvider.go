package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RpcProvider adapts an ethclient connection to the Provider interface.
// Pending-tagged reads are routed through the client's Pending* methods.
type RpcProvider struct {
	client *ethclient.Client
	logger *zap.Logger
}

func NewRpcProvider(rpcUrl string, logger *zap.Logger) (*RpcProvider, error) {
	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial rpc url %s", rpcUrl)
	}
	logger.Sugar().Infow("Connected to rpc provider", "rpcUrl", rpcUrl)
	return &RpcProvider{client: client, logger: logger}, nil
}

func NewRpcProviderFromClient(client *ethclient.Client, logger *zap.Logger) *RpcProvider {
	return &RpcProvider{client: client, logger: logger}
}

func (r *RpcProvider) CodeAt(ctx context.Context, address common.Address, block BlockTag) ([]byte, error) {
	if block.IsPending() {
		return r.client.PendingCodeAt(ctx, address)
	}
	return r.client.CodeAt(ctx, address, block.BigInt())
}

func (r *RpcProvider) StorageAt(ctx context.Context, address common.Address, slot common.Hash, block BlockTag) ([]byte, error) {
	if block.IsPending() {
		return r.client.PendingStorageAt(ctx, address, slot)
	}
	return r.client.StorageAt(ctx, address, slot, block.BigInt())
}

func (r *RpcProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

func (r *RpcProvider) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return r.client.HeaderByNumber(ctx, number)
}

func (r *RpcProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return r.client.ChainID(ctx)
}

func (r *RpcProvider) BalanceAt(ctx context.Context, address common.Address, block BlockTag) (*big.Int, error) {
	if block.IsPending() {
		return r.client.PendingBalanceAt(ctx, address)
	}
	return r.client.BalanceAt(ctx, address, block.BigInt())
}

func (r *RpcProvider) NonceAt(ctx context.Context, address common.Address, block BlockTag) (uint64, error) {
	if block.IsPending() {
		return r.client.PendingNonceAt(ctx, address)
	}
	return r.client.NonceAt(ctx, address, block.BigInt())
}

func (r *RpcProvider) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return r.client.FilterLogs(ctx, q)
}

// TransactionByHash fetches a transaction along with the block it was mined
// in, or a nil block number when still pending. Not part of the Provider
// interface; decoding drivers never need it, only callers that start from a
// transaction hash.
func (r *RpcProvider) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, *big.Int, error) {
	tx, isPending, err := r.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to fetch transaction %s", hash.Hex())
	}
	if isPending {
		return tx, nil, nil
	}
	receipt, err := r.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to fetch receipt for %s", hash.Hex())
	}
	return tx, receipt.BlockNumber, nil
}
