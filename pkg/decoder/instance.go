package decoder

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/solscope/solscope/pkg/contexts"
	"github.com/solscope/solscope/pkg/decoding"
	"github.com/solscope/solscope/pkg/layout"
	"github.com/solscope/solscope/pkg/provider"
	"github.com/solscope/solscope/pkg/storageSlot"
)

// ContractInstanceDecoder is scoped to one deployed address. When the static
// artifact lacked deployed bytecode, a context built from the instance's
// live bytecode is layered over the project's contexts, which restores
// full-mode decoding for operations touching this instance.
//
// The watched-mapping-key set carries no internal locking; concurrent
// WatchMappingKey/UnwatchMappingKey calls must be serialized by the caller.
type ContractInstanceDecoder struct {
	project  *ProjectDecoder
	contract *ContractDecoder
	address  common.Address

	// additionalContext is non-nil only when discovered from live bytecode.
	additionalContext *contexts.Context
	// internalFunctions is nil when the table could not be built; that is
	// tolerated, not fatal.
	internalFunctions decoding.InternalFunctionTable

	watched *storageSlot.WatchedKeys
	logger  *zap.Logger
}

func newContractInstanceDecoder(ctx context.Context, cd *ContractDecoder, address common.Address) (*ContractInstanceDecoder, error) {
	d := &ContractInstanceDecoder{
		project:  cd.project,
		contract: cd,
		address:  address,
		watched:  storageSlot.NewWatchedKeys(),
		logger:   cd.logger,
	}

	latest := rpc.LatestBlockNumber
	block, err := d.project.RegularizeBlock(ctx, &latest)
	if err != nil {
		return nil, err
	}
	code, err := d.project.getCode(ctx, address, block)
	if err != nil {
		return nil, err
	}

	if !cd.contract.HasDeployedBytecode() && len(code) > 0 {
		d.additionalContext = contexts.FromCode(cd.contract, code)
		d.logger.Sugar().Debugw("Built additional context from live bytecode",
			zap.String("contract", cd.contract.Name),
			zap.String("address", address.Hex()),
		)
	}

	d.internalFunctions = d.buildInternalFunctionTable(code)
	return d, nil
}

// Address returns the deployed address this decoder is scoped to.
func (d *ContractInstanceDecoder) Address() common.Address {
	return d.address
}

// buildInternalFunctionTable attempts the pc-to-function table. It requires
// a recognized compiler, a deployed source map and a syntax tree for every
// compiled source; anything missing, or any scan failure, leaves the table
// absent rather than failing initialization.
func (d *ContractInstanceDecoder) buildInternalFunctionTable(code []byte) decoding.InternalFunctionTable {
	contract := d.contract.contract
	if !contract.RecognizedCompiler() || contract.DeployedSourceMap == "" || len(code) == 0 {
		return nil
	}
	compilation := d.project.compilationFor(contract)
	if compilation == nil || len(compilation.Sources) == 0 {
		return nil
	}
	for _, source := range compilation.Sources {
		if len(source.AST) == 0 {
			return nil
		}
	}

	table, err := assembleInternalFunctionTable(contract, compilation, code)
	if err != nil {
		d.logger.Sugar().Debugw("Could not build internal function table",
			zap.String("contract", contract.Name),
			zap.Error(err),
		)
		return nil
	}
	return table
}

// contextsForDecode layers the additional context, when present, over the
// project's deployed contexts.
func (d *ContractInstanceDecoder) contextsForDecode() (map[common.Hash]*contexts.Context, []*contexts.Context) {
	if d.additionalContext == nil {
		return d.project.deployedContexts, d.project.orderedDeployed
	}
	merged := make(map[common.Hash]*contexts.Context, len(d.project.deployedContexts)+1)
	for id, c := range d.project.deployedContexts {
		merged[id] = c
	}
	merged[d.additionalContext.ID] = d.additionalContext
	ordered := append([]*contexts.Context{d.additionalContext}, d.project.orderedDeployed...)
	return merged, ordered
}

// allocation resolves the contract's declaration node and storage
// allocation, failing with a distinct error per missing piece. Both checks
// are deferred to first variable access so instances of partially-known
// contracts keep their other features.
func (d *ContractInstanceDecoder) allocation() (*layout.StorageAllocation, error) {
	contract := d.contract.contract
	if !contract.HasAST() {
		return nil, errors.Wrapf(ErrMissingDeclaration, "contract %s", contract.Name)
	}
	return d.project.allocationFor(contract.Name)
}

// VariableValue is one decoded state variable.
type VariableValue struct {
	Name         string
	ContractName string
	Type         string
	Value        interface{}
}

// Variables decodes every storage state variable of the instance as of the
// given block (nil means pending).
func (d *ContractInstanceDecoder) Variables(ctx context.Context, blockNumber *rpc.BlockNumber) ([]*VariableValue, error) {
	alloc, err := d.allocation()
	if err != nil {
		return nil, err
	}
	block, err := d.project.RegularizeBlock(ctx, blockNumber)
	if err != nil {
		return nil, err
	}

	var out []*VariableValue
	for i := range alloc.Variables {
		v := &alloc.Variables[i]
		if v.Location != layout.LocationStorage {
			continue
		}
		value, err := d.decodeVariableSlot(ctx, storageSlot.Root(v.Slot), v.Type, v.Offset, block)
		if err != nil {
			return nil, err
		}
		out = append(out, &VariableValue{
			Name:         v.Name,
			ContractName: v.ContractName,
			Type:         v.Type.String(),
			Value:        value,
		})
	}
	return out, nil
}

// Variable decodes one state variable, identified by declaration id, bare
// name, or "Contract.name", optionally followed by an access path of array
// indices, mapping keys and struct member names. A path that resolves to
// "no slot" (constants, immutables, packed array elements) yields a nil
// value without error.
func (d *ContractInstanceDecoder) Variable(ctx context.Context, nameOrId string, blockNumber *rpc.BlockNumber, path ...interface{}) (interface{}, error) {
	alloc, err := d.allocation()
	if err != nil {
		return nil, err
	}
	slot, slotType, offset, err := storageSlot.ConstructSlot(alloc, storageSlot.ParseRef(nameOrId), path...)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, nil
	}

	block, err := d.project.RegularizeBlock(ctx, blockNumber)
	if err != nil {
		return nil, err
	}
	return d.decodeVariableSlot(ctx, slot, slotType, offset, block)
}

func (d *ContractInstanceDecoder) decodeVariableSlot(ctx context.Context, slot *storageSlot.Slot, slotType *layout.Type, offset uint, block provider.BlockTag) (interface{}, error) {
	info := &decoding.StorageInfo{
		Type:              slotType,
		Slot:              slot,
		Offset:            offset,
		Watched:           d.watched,
		InternalFunctions: d.internalFunctions,
	}
	m := decoding.Run(ctx, func(env *decoding.Env) (interface{}, error) {
		return decoding.DecodeStorageValue(env, info)
	})
	return runMachine(ctx, d.project, m, d.address, block)
}

// WatchMappingKey opts the resolved mapping key into decoding, along with
// every mapping-key ancestor on its path. A "no slot" resolution is a
// harmless no-op.
func (d *ContractInstanceDecoder) WatchMappingKey(variable string, path ...interface{}) error {
	slot, err := d.resolveWatchSlot(variable, path...)
	if err != nil || slot == nil {
		return err
	}
	d.watched.Add(slot)
	return nil
}

// UnwatchMappingKey removes the resolved slot and every watched descendant
// of it. A "no slot" resolution is a harmless no-op.
func (d *ContractInstanceDecoder) UnwatchMappingKey(variable string, path ...interface{}) error {
	slot, err := d.resolveWatchSlot(variable, path...)
	if err != nil || slot == nil {
		return err
	}
	d.watched.Remove(slot)
	return nil
}

// WatchedMappingKeys exposes the current watch set for inspection.
func (d *ContractInstanceDecoder) WatchedMappingKeys() []*storageSlot.Slot {
	return d.watched.Slots()
}

func (d *ContractInstanceDecoder) resolveWatchSlot(variable string, path ...interface{}) (*storageSlot.Slot, error) {
	alloc, err := d.allocation()
	if err != nil {
		return nil, err
	}
	slot, _, _, err := storageSlot.ConstructSlot(alloc, storageSlot.ParseRef(variable), path...)
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// DecodeTransaction decodes calldata as the project decoder does, but with
// this instance's layered contexts and with the instance itself assumed as
// the target when the transaction matches its address.
func (d *ContractInstanceDecoder) DecodeTransaction(ctx context.Context, to *common.Address, data []byte, blockNumber *rpc.BlockNumber) (*decoding.Decoding, error) {
	block, err := d.project.RegularizeBlock(ctx, blockNumber)
	if err != nil {
		return nil, err
	}
	merged, _ := d.contextsForDecode()
	info := &decoding.TransactionInfo{
		To:                  to,
		Data:                data,
		Block:               block,
		DeployedContexts:    merged,
		ConstructorContexts: d.project.constructorContexts(),
	}
	if to != nil && *to == d.address && d.additionalContext != nil {
		info.CurrentContext = d.additionalContext
	}
	m := decoding.Run(ctx, func(env *decoding.Env) (*decoding.Decoding, error) {
		return decoding.DecodeTransaction(env, info)
	})
	storageAddress := d.address
	if to != nil {
		storageAddress = *to
	}
	return runMachine(ctx, d.project, m, storageAddress, block)
}

// DecodeLog decodes a log with the instance's layered contexts, so events
// declared by an artifact lacking deployed bytecode still resolve through
// the context discovered from live code.
func (d *ContractInstanceDecoder) DecodeLog(ctx context.Context, lg *types.Log) ([]*decoding.Decoding, error) {
	merged, ordered := d.contextsForDecode()
	return d.project.decodeLogWith(ctx, lg, merged, ordered)
}

// Events queries logs as the project decoder does, defaulting the address
// filter to this instance unless explicitly overridden. Each log is decoded
// with the instance's layered contexts.
func (d *ContractInstanceDecoder) Events(ctx context.Context, opts *EventOptions) ([]*DecodedEvent, error) {
	scoped := EventOptions{}
	if opts != nil {
		scoped = *opts
	}
	if scoped.Address == nil {
		addr := d.address
		scoped.Address = &addr
	}
	return d.project.events(ctx, &scoped, d.DecodeLog)
}
