package decoding

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/solscope/solscope/pkg/contexts"
	"github.com/solscope/solscope/pkg/provider"
)

// TransactionInfo carries everything the pure transaction decode needs
// besides chain data, which it requests through the Env.
type TransactionInfo struct {
	// To is nil for contract-creation transactions.
	To   *common.Address
	Data []byte
	// Block is the regularized block the transaction is interpreted against.
	Block provider.BlockTag
	// DeployedContexts are the candidate contexts for code at the target
	// address; constructor-time contexts never match deployed code.
	DeployedContexts map[common.Hash]*contexts.Context
	// ConstructorContexts are the candidates for creation calldata.
	ConstructorContexts map[common.Hash]*contexts.Context
	// CurrentContext short-circuits context discovery when the caller
	// already knows which contract the bytes belong to.
	CurrentContext *contexts.Context
}

// DecodeTransaction interprets calldata. A creation transaction is matched
// against constructor contexts with the calldata itself as init code; a call
// is matched by fetching the target's bytecode. When nothing matches, the
// result is a message decoding carrying the raw data rather than an error.
func DecodeTransaction(env *Env, info *TransactionInfo) (*Decoding, error) {
	if info.To == nil {
		return decodeCreation(info)
	}

	context := info.CurrentContext
	if context == nil {
		code, err := env.Code(*info.To, info.Block)
		if err != nil {
			return nil, err
		}
		context = contexts.Find(info.DeployedContexts, code)
	}
	if context == nil {
		return messageDecoding(info.Data), nil
	}

	if len(info.Data) < 4 {
		return messageDecoding(info.Data), nil
	}
	method, err := context.Contract.ABI.MethodById(info.Data[:4])
	if err != nil {
		return messageDecoding(info.Data), nil
	}
	values, err := method.Inputs.UnpackValues(info.Data[4:])
	if err != nil {
		return messageDecoding(info.Data), nil
	}
	return &Decoding{
		Kind:         KindFunction,
		Mode:         ModeFull,
		ContractName: context.ContractName,
		ContextID:    context.ID,
		Method:       method,
		Arguments:    argumentsFrom(method.Inputs, values),
	}, nil
}

func decodeCreation(info *TransactionInfo) (*Decoding, error) {
	context := info.CurrentContext
	if context == nil {
		context = contexts.Find(info.ConstructorContexts, info.Data)
	}
	if context == nil {
		return messageDecoding(info.Data), nil
	}

	constructor := context.Contract.ABI.Constructor
	argData := info.Data
	if len(argData) >= context.BinaryLength() {
		argData = argData[context.BinaryLength():]
	} else {
		argData = nil
	}

	decoding := &Decoding{
		Kind:         KindConstructor,
		Mode:         ModeFull,
		ContractName: context.ContractName,
		ContextID:    context.ID,
		Method:       &constructor,
	}
	if len(constructor.Inputs) > 0 {
		values, err := constructor.Inputs.UnpackValues(argData)
		if err != nil {
			return messageDecoding(info.Data), nil
		}
		decoding.Arguments = argumentsFrom(constructor.Inputs, values)
	}
	return decoding, nil
}

// messageDecoding is the fallback when no context or selector matches: the
// raw data, uninterpreted.
func messageDecoding(data []byte) *Decoding {
	return &Decoding{
		Kind: KindMessage,
		Mode: ModeABI,
		Arguments: []Argument{
			{Name: "data", Type: "bytes", Value: data},
		},
	}
}

// argumentsFrom pairs unpacked values with their declared names and types.
func argumentsFrom(inputs abi.Arguments, values []interface{}) []Argument {
	args := make([]Argument, 0, len(inputs))
	for i, input := range inputs {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		args = append(args, Argument{
			Name:    input.Name,
			Type:    input.Type.String(),
			Indexed: input.Indexed,
			Value:   v,
		})
	}
	return args
}
