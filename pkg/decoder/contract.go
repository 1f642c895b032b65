package decoder

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/solscope/solscope/pkg/artifacts"
	"github.com/solscope/solscope/pkg/contexts"
	"github.com/solscope/solscope/pkg/decoding"
	"github.com/solscope/solscope/pkg/provider"
)

// ContractDecoder is scoped to one compiled contract. It borrows the project
// decoder's contexts, tables and caches; it owns nothing of its own beyond
// its context reference.
type ContractDecoder struct {
	project  *ProjectDecoder
	contract *artifacts.Contract
	// context identifies the contract's deployed bytecode. When the artifact
	// recorded no deployed bytecode this is a synthetic placeholder, built
	// for ABI-only decoding and never registered with the project.
	context *contexts.Context
	logger  *zap.Logger
}

func newContractDecoder(project *ProjectDecoder, contract *artifacts.Contract) (*ContractDecoder, error) {
	cd := &ContractDecoder{
		project:  project,
		contract: contract,
		logger:   project.logger,
	}
	if contract.HasDeployedBytecode() {
		built, err := contexts.Build(contract, false)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build context for %s", contract.Name)
		}
		if registered, ok := project.deployedContexts[built.ID]; ok {
			cd.context = registered
		} else {
			cd.context = built
		}
	} else {
		// ABI-only mode: full source-derived type names are unavailable, but
		// calldata and return data still decode against the ABI.
		cd.context = contexts.Synthetic(contract)
		cd.logger.Sugar().Debugw("Contract has no deployed bytecode, using abi-only mode",
			zap.String("contract", contract.Name),
		)
	}
	return cd, nil
}

// Contract returns the compiled contract record this decoder is scoped to.
func (cd *ContractDecoder) Contract() *artifacts.Contract {
	return cd.contract
}

// DecodeReturnValue decodes return data for one ABI function entry under a
// fixed call status, producing every strict-mode-valid candidate ordered:
// successful return, reverted with message, reverted without message,
// self-destructed.
func (cd *ContractDecoder) DecodeReturnValue(ctx context.Context, method *abi.Method, data []byte, status decoding.CallStatus) ([]*decoding.Decoding, error) {
	info := &decoding.ReturnInfo{
		Data:         data,
		Status:       status,
		Method:       method,
		ABI:          cd.contract.ABI,
		ContractName: cd.contract.Name,
		ContextID:    cd.context.ID,
	}
	m := decoding.Run(ctx, func(env *decoding.Env) ([]*decoding.Decoding, error) {
		return decoding.DecodeReturnValue(env, info)
	})
	return runMachine(ctx, cd.project, m, common.Address{}, provider.Pending())
}

// DecodeReturnValueByName is DecodeReturnValue with the method looked up by
// name.
func (cd *ContractDecoder) DecodeReturnValueByName(ctx context.Context, methodName string, data []byte, status decoding.CallStatus) ([]*decoding.Decoding, error) {
	method, ok := cd.contract.ABI.Methods[methodName]
	if !ok {
		return nil, errors.Errorf("contract %s has no function %s", cd.contract.Name, methodName)
	}
	return cd.DecodeReturnValue(ctx, &method, data, status)
}

// ForInstance spawns an instance decoder for a deployed address presumed to
// run this contract.
func (cd *ContractDecoder) ForInstance(ctx context.Context, address string) (*ContractInstanceDecoder, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Wrapf(ErrInvalidAddress, "%q", address)
	}
	return newContractInstanceDecoder(ctx, cd, common.HexToAddress(address))
}
