// Package decoder exposes the decoding drivers: a project-level decoder
// owning contexts, allocation tables and caches; contract-level decoders
// scoped to one compiled contract; and instance-level decoders scoped to one
// deployed address. Contract and instance decoders borrow the project's
// tables and caches by reference, so data fetched through any of them
// benefits the whole hierarchy.
package decoder

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/solscope/solscope/pkg/artifacts"
	"github.com/solscope/solscope/pkg/chainCache"
	"github.com/solscope/solscope/pkg/contexts"
	"github.com/solscope/solscope/pkg/decoding"
	"github.com/solscope/solscope/pkg/layout"
	"github.com/solscope/solscope/pkg/provider"
	"github.com/solscope/solscope/pkg/util"
)

// ProjectDecoder is the root driver. It is safe for concurrent decode calls;
// the caches tolerate idempotent racing writes.
type ProjectDecoder struct {
	provider     provider.Provider
	logger       *zap.Logger
	compilations []*artifacts.Compilation

	allContexts      map[common.Hash]*contexts.Context
	deployedContexts map[common.Hash]*contexts.Context
	// orderedDeployed fixes an iteration order for ambiguity resolution.
	orderedDeployed []*contexts.Context

	allocations    map[string]*layout.StorageAllocation
	allocationErrs map[string]error

	codeCache    *chainCache.CodeCache
	storageCache *chainCache.StorageCache
}

// NewProjectDecoder builds the project driver from all compilations.
// Contexts and allocation tables are computed once here and never mutated
// afterward. A contract whose storage allocation fails stays usable for
// everything except variable decoding; the failure is surfaced lazily.
func NewProjectDecoder(p provider.Provider, compilations []*artifacts.Compilation, logger *zap.Logger) (*ProjectDecoder, error) {
	if p == nil {
		return nil, ErrNoProvider
	}
	d := &ProjectDecoder{
		provider:         p,
		logger:           logger,
		compilations:     compilations,
		allContexts:      make(map[common.Hash]*contexts.Context),
		deployedContexts: make(map[common.Hash]*contexts.Context),
		allocations:      make(map[string]*layout.StorageAllocation),
		allocationErrs:   make(map[string]error),
		codeCache:        chainCache.NewCodeCache(),
		storageCache:     chainCache.NewStorageCache(),
	}

	for _, compilation := range compilations {
		for _, contract := range compilation.Contracts {
			d.registerContract(contract)
		}
	}

	sort.Slice(d.orderedDeployed, func(i, j int) bool {
		return d.orderedDeployed[i].ID.Hex() < d.orderedDeployed[j].ID.Hex()
	})

	logger.Sugar().Infow("Initialized project decoder",
		zap.Int("compilations", len(compilations)),
		zap.Int("contexts", len(d.allContexts)),
		zap.Int("deployedContexts", len(d.deployedContexts)),
	)
	return d, nil
}

func (d *ProjectDecoder) registerContract(contract *artifacts.Contract) {
	if contract.HasDeployedBytecode() {
		if c, err := contexts.Build(contract, false); err == nil {
			if _, exists := d.allContexts[c.ID]; !exists {
				d.allContexts[c.ID] = c
				d.deployedContexts[c.ID] = c
				d.orderedDeployed = append(d.orderedDeployed, c)
			}
		} else {
			d.logger.Sugar().Debugw("Failed to build deployed context",
				zap.String("contract", contract.Name), zap.Error(err))
		}
	}
	if c, err := contexts.Build(contract, true); err == nil {
		if _, exists := d.allContexts[c.ID]; !exists {
			d.allContexts[c.ID] = c
		}
	}

	if _, done := d.allocations[contract.Name]; done {
		return
	}
	alloc, err := artifacts.Allocate(contract)
	if err != nil {
		d.allocationErrs[contract.Name] = err
		return
	}
	d.allocations[contract.Name] = alloc
}

// constructorContexts filters the non-deployed partition.
func (d *ProjectDecoder) constructorContexts() map[common.Hash]*contexts.Context {
	out := make(map[common.Hash]*contexts.Context)
	for id, c := range d.allContexts {
		if c.Constructor {
			out[id] = c
		}
	}
	return out
}

// RegularizeBlock resolves a symbolic or numeric block reference to a stable
// tag. A nil reference means pending.
func (d *ProjectDecoder) RegularizeBlock(ctx context.Context, number *rpc.BlockNumber) (provider.BlockTag, error) {
	if number == nil {
		return provider.Pending(), nil
	}
	return provider.Regularize(ctx, d.provider, *number)
}

// getCode reads bytecode through the shared cache.
func (d *ProjectDecoder) getCode(ctx context.Context, address common.Address, block provider.BlockTag) ([]byte, error) {
	return d.codeCache.Get(ctx, block, address, func(ctx context.Context) ([]byte, error) {
		return d.provider.CodeAt(ctx, address, block)
	})
}

// getStorage reads one storage word through the shared cache.
func (d *ProjectDecoder) getStorage(ctx context.Context, address common.Address, slot common.Hash, block provider.BlockTag) (common.Hash, error) {
	return d.storageCache.Get(ctx, block, address, slot, func(ctx context.Context) (common.Hash, error) {
		raw, err := d.provider.StorageAt(ctx, address, slot, block)
		if err != nil {
			return common.Hash{}, err
		}
		return common.BytesToHash(raw), nil
	})
}

// runMachine is the resume loop: satisfy each request cache-then-provider
// and resume until done. storageAddress scopes storage requests to the
// contract currently being decoded.
func runMachine[T any](ctx context.Context, d *ProjectDecoder, m *decoding.Machine[T], storageAddress common.Address, block provider.BlockTag) (T, error) {
	var zero T
	for {
		switch m.Next() {
		case decoding.StateAwaitingCode:
			req := m.CodeRequest()
			code, err := d.getCode(ctx, req.Address, req.Block)
			if err != nil {
				m.Abort()
				return zero, err
			}
			m.ResumeCode(code)
		case decoding.StateAwaitingStorage:
			req := m.StorageRequest()
			word, err := d.getStorage(ctx, storageAddress, req.Slot, block)
			if err != nil {
				m.Abort()
				return zero, err
			}
			m.ResumeStorage(word)
		case decoding.StateDone:
			return m.Result()
		}
	}
}

// DecodeTransaction decodes calldata. A nil "to" is treated as a
// constructor call and matched against the calldata as init code.
func (d *ProjectDecoder) DecodeTransaction(ctx context.Context, tx *types.Transaction, blockNumber *rpc.BlockNumber) (*decoding.Decoding, error) {
	block, err := d.RegularizeBlock(ctx, blockNumber)
	if err != nil {
		return nil, err
	}
	info := &decoding.TransactionInfo{
		To:                  tx.To(),
		Data:                tx.Data(),
		Block:               block,
		DeployedContexts:    d.deployedContexts,
		ConstructorContexts: d.constructorContexts(),
	}
	m := decoding.Run(ctx, func(env *decoding.Env) (*decoding.Decoding, error) {
		return decoding.DecodeTransaction(env, info)
	})
	var storageAddress common.Address
	if tx.To() != nil {
		storageAddress = *tx.To()
	}
	return runMachine(ctx, d, m, storageAddress, block)
}

// DecodeLog returns every strict-mode-valid interpretation of the log,
// ordered per the ambiguity rules. The emitting address's bytecode is
// fetched to identify which context declared the event natively.
func (d *ProjectDecoder) DecodeLog(ctx context.Context, lg *types.Log) ([]*decoding.Decoding, error) {
	return d.decodeLogWith(ctx, lg, d.deployedContexts, d.orderedDeployed)
}

// decodeLogWith decodes against an explicit context set; instance decoders
// pass their layered contexts through here.
func (d *ProjectDecoder) decodeLogWith(ctx context.Context, lg *types.Log, byID map[common.Hash]*contexts.Context, ordered []*contexts.Context) ([]*decoding.Decoding, error) {
	block := provider.AtBlock(lg.BlockNumber)
	code, err := d.getCode(ctx, lg.Address, block)
	if err != nil {
		return nil, err
	}
	var emitterID common.Hash
	if emitter := contexts.Find(byID, code); emitter != nil {
		emitterID = emitter.ID
	}

	info := &decoding.LogInfo{
		Log:       lg,
		Contexts:  ordered,
		EmitterID: emitterID,
	}
	m := decoding.Run(ctx, func(env *decoding.Env) ([]*decoding.Decoding, error) {
		return decoding.DecodeLog(env, info)
	})
	return runMachine(ctx, d, m, lg.Address, block)
}

// EventOptions narrows an Events query. The zero value fetches everything in
// the latest block only.
type EventOptions struct {
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
	// Address restricts the query to one emitter.
	Address *common.Address
	// Name keeps only decodings of the named event, applied after decoding.
	Name string
}

// DecodedEvent pairs a fetched log with its ordered decodings.
type DecodedEvent struct {
	Log       types.Log
	Decodings []*decoding.Decoding
}

// Events fetches logs over a block range and decodes each one. Logs whose
// every candidate is filtered out by Name are dropped; logs with no valid
// decoding at all are kept with an empty candidate list so callers can see
// them.
func (d *ProjectDecoder) Events(ctx context.Context, opts *EventOptions) ([]*DecodedEvent, error) {
	return d.events(ctx, opts, d.DecodeLog)
}

// events runs the fetch-and-decode loop with a caller-chosen log decoder.
func (d *ProjectDecoder) events(ctx context.Context, opts *EventOptions, decodeLog func(context.Context, *types.Log) ([]*decoding.Decoding, error)) ([]*DecodedEvent, error) {
	if opts == nil {
		opts = &EventOptions{}
	}
	latest := rpc.LatestBlockNumber
	from, to := opts.FromBlock, opts.ToBlock
	if from == nil {
		from = &latest
	}
	if to == nil {
		to = &latest
	}
	fromTag, err := d.RegularizeBlock(ctx, from)
	if err != nil {
		return nil, err
	}
	toTag, err := d.RegularizeBlock(ctx, to)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: fromTag.BigInt(),
		ToBlock:   toTag.BigInt(),
	}
	if opts.Address != nil {
		query.Addresses = []common.Address{*opts.Address}
	}
	logs, err := d.provider.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	var out []*DecodedEvent
	for i := range logs {
		decodings, err := decodeLog(ctx, &logs[i])
		if err != nil {
			return nil, err
		}
		if opts.Name != "" {
			decodings = filterByEventName(decodings, opts.Name)
			if len(decodings) == 0 {
				continue
			}
		}
		out = append(out, &DecodedEvent{Log: logs[i], Decodings: decodings})
	}
	return out, nil
}

func filterByEventName(decodings []*decoding.Decoding, name string) []*decoding.Decoding {
	var out []*decoding.Decoding
	for _, d := range decodings {
		if d.Event != nil && d.Event.RawName == name {
			out = append(out, d)
		}
	}
	return out
}

// ForArtifact spawns a contract-level decoder for the given artifact,
// matched against the project's compilations by name plus exact bytecode
// equality.
func (d *ProjectDecoder) ForArtifact(artifact *artifacts.Contract) (*ContractDecoder, error) {
	for _, compilation := range d.compilations {
		for _, contract := range compilation.Contracts {
			if contract.Name != artifact.Name {
				continue
			}
			if contract.Bytecode != artifact.Bytecode || contract.DeployedBytecode != artifact.DeployedBytecode {
				continue
			}
			return newContractDecoder(d, contract)
		}
	}
	return nil, errors.Wrapf(ErrContractNotFound, "name %s, bytecode %.20s...", artifact.Name, artifact.Bytecode)
}

// ForContractName spawns a contract-level decoder for the named contract in
// the project's own compilations.
func (d *ProjectDecoder) ForContractName(name string) (*ContractDecoder, error) {
	compilation := util.Find(d.compilations, func(c *artifacts.Compilation) bool {
		return c.ContractByName(name) != nil
	})
	if compilation == nil {
		return nil, errors.Wrapf(ErrContractNotFound, "name %s", name)
	}
	return newContractDecoder(d, compilation.ContractByName(name))
}

// ForAddress spawns an instance-level decoder for a deployed address by
// matching its live bytecode against the deployed contexts.
func (d *ProjectDecoder) ForAddress(ctx context.Context, address string) (*ContractInstanceDecoder, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Wrapf(ErrInvalidAddress, "%q", address)
	}
	addr := common.HexToAddress(address)

	latest := rpc.LatestBlockNumber
	block, err := d.RegularizeBlock(ctx, &latest)
	if err != nil {
		return nil, err
	}
	code, err := d.getCode(ctx, addr, block)
	if err != nil {
		return nil, err
	}
	matched := contexts.Find(d.deployedContexts, code)
	if matched == nil {
		return nil, errors.Wrapf(ErrNoMatchingContext, "address %s", addr.Hex())
	}

	cd, err := newContractDecoder(d, matched.Contract)
	if err != nil {
		return nil, err
	}
	return newContractInstanceDecoder(ctx, cd, addr)
}

// compilationFor returns the compilation containing the contract.
func (d *ProjectDecoder) compilationFor(contract *artifacts.Contract) *artifacts.Compilation {
	for _, compilation := range d.compilations {
		for _, c := range compilation.Contracts {
			if c == contract {
				return compilation
			}
		}
	}
	return nil
}

// allocationFor surfaces the lazily-reported allocation result for a
// contract.
func (d *ProjectDecoder) allocationFor(name string) (*layout.StorageAllocation, error) {
	if alloc, ok := d.allocations[name]; ok {
		return alloc, nil
	}
	if err, ok := d.allocationErrs[name]; ok {
		return nil, errors.Wrapf(ErrMissingAllocation, "contract %s: %v", name, err)
	}
	return nil, errors.Wrapf(ErrMissingAllocation, "contract %s", name)
}
