package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"
)

// BlockTag is a regularized block reference: either a concrete block number
// or the literal pending marker. Symbolic references ("latest", "safe", ...)
// are resolved to concrete numbers before a BlockTag is formed, so the same
// tag always denotes the same block and is safe to use as a cache key.
type BlockTag struct {
	pending bool
	number  uint64
}

// Pending returns the pending tag. Pending reads are never cached.
func Pending() BlockTag {
	return BlockTag{pending: true}
}

// AtBlock returns the tag for a concrete block number.
func AtBlock(number uint64) BlockTag {
	return BlockTag{number: number}
}

func (b BlockTag) IsPending() bool {
	return b.pending
}

// Number returns the concrete block number; only meaningful when not pending.
func (b BlockTag) Number() uint64 {
	return b.number
}

// BigInt renders the tag in the form ethclient calls expect: nil stands for
// pending at the RPC layer is not expressible, so pending callers must use
// the Pending* client methods instead.
func (b BlockTag) BigInt() *big.Int {
	if b.pending {
		return nil
	}
	return new(big.Int).SetUint64(b.number)
}

// Key is the stable cache key form of the tag.
func (b BlockTag) Key() string {
	if b.pending {
		return "pending"
	}
	return fmt.Sprintf("%d", b.number)
}

func (b BlockTag) String() string {
	return b.Key()
}

// Regularize resolves an rpc.BlockNumber to a BlockTag. Pending maps to the
// pending tag; latest, safe and finalized are resolved through the provider
// to the concrete number they denote right now, so later cache hits can never
// conflate two resolutions of the same symbolic name.
func Regularize(ctx context.Context, p Provider, number rpc.BlockNumber) (BlockTag, error) {
	if number == rpc.PendingBlockNumber {
		return Pending(), nil
	}
	if number >= 0 {
		return AtBlock(uint64(number)), nil
	}
	header, err := p.HeaderByNumber(ctx, big.NewInt(number.Int64()))
	if err != nil {
		return BlockTag{}, err
	}
	return AtBlock(header.Number.Uint64()), nil
}
