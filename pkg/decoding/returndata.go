package decoding

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CallStatus is the caller's knowledge of how the call ended.
type CallStatus int

const (
	StatusUnknown CallStatus = iota
	StatusSuccess
	StatusFailure
)

// errorStringSelector is the 4-byte selector of Error(string), the encoding
// solc emits for require(..., "message") and revert("message").
var errorStringSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// ReturnInfo carries return data and the function entry it came from.
type ReturnInfo struct {
	Data   []byte
	Status CallStatus
	Method *abi.Method
	// Contract supplies the ABI for custom error candidates.
	ABI          *abi.ABI
	ContractName string
	ContextID    common.Hash
}

// DecodeReturnValue returns every strict-mode-valid interpretation of return
// data, ordered: successful return, reverted with message, reverted without
// message, self-destructed. Status prunes the candidate kinds it excludes;
// StatusUnknown tries everything.
func DecodeReturnValue(env *Env, info *ReturnInfo) ([]*Decoding, error) {
	var out []*Decoding

	maySucceed := info.Status != StatusFailure
	mayRevert := info.Status != StatusSuccess

	if maySucceed && info.Method != nil {
		if values, err := info.Method.Outputs.UnpackValues(info.Data); err == nil {
			out = append(out, &Decoding{
				Kind:         KindReturn,
				Mode:         ModeFull,
				ContractName: info.ContractName,
				ContextID:    info.ContextID,
				Method:       info.Method,
				Arguments:    argumentsFrom(info.Method.Outputs, values),
			})
		}
	}

	if mayRevert {
		out = append(out, revertCandidates(info)...)
	}

	if maySucceed && len(info.Data) == 0 {
		out = append(out, &Decoding{
			Kind:         KindSelfDestruct,
			Mode:         ModeFull,
			ContractName: info.ContractName,
			ContextID:    info.ContextID,
		})
	}
	return out, nil
}

func revertCandidates(info *ReturnInfo) []*Decoding {
	var out []*Decoding

	if len(info.Data) >= 4 && bytes.Equal(info.Data[:4], errorStringSelector) {
		stringType, _ := abi.NewType("string", "", nil)
		args := abi.Arguments{{Type: stringType}}
		if values, err := args.UnpackValues(info.Data[4:]); err == nil && len(values) == 1 {
			if message, ok := values[0].(string); ok {
				out = append(out, &Decoding{
					Kind:          KindRevert,
					Mode:          ModeFull,
					ContractName:  info.ContractName,
					ContextID:     info.ContextID,
					RevertMessage: message,
				})
			}
		}
	}

	// Custom errors declared in the ABI count as reverts with a message.
	if info.ABI != nil && len(info.Data) >= 4 {
		for name := range info.ABI.Errors {
			abiError := info.ABI.Errors[name]
			if !bytes.Equal(abiError.ID.Bytes()[:4], info.Data[:4]) {
				continue
			}
			values, err := abiError.Inputs.UnpackValues(info.Data[4:])
			if err != nil {
				continue
			}
			out = append(out, &Decoding{
				Kind:          KindRevert,
				Mode:          ModeFull,
				ContractName:  info.ContractName,
				ContextID:     info.ContextID,
				RevertMessage: abiError.Name,
				Arguments:     argumentsFrom(abiError.Inputs, values),
			})
		}
	}

	if len(info.Data) == 0 {
		out = append(out, &Decoding{
			Kind:         KindRevert,
			Mode:         ModeFull,
			ContractName: info.ContractName,
			ContextID:    info.ContextID,
		})
	}
	return out
}
