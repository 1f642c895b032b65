package decoding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies a decoding result.
type Kind string

const (
	KindFunction     Kind = "function"
	KindConstructor  Kind = "constructor"
	KindMessage      Kind = "message"
	KindEvent        Kind = "event"
	KindAnonymous    Kind = "anonymous"
	KindReturn       Kind = "return"
	KindRevert       Kind = "revert"
	KindSelfDestruct Kind = "selfdestruct"
)

// Mode distinguishes full decodings, which carry source-level type
// refinements, from ABI-only ones.
type Mode string

const (
	ModeFull Mode = "full"
	ModeABI  Mode = "abi"
)

// Argument is one decoded parameter.
type Argument struct {
	Name    string
	Type    string
	Indexed bool
	Value   interface{}
}

// Decoding is one candidate interpretation of a piece of binary data.
type Decoding struct {
	Kind Kind
	Mode Mode
	// ContractName is the compiled contract the interpretation came from.
	ContractName string
	// ContextID identifies the bytecode context, zero for ABI-only results.
	ContextID common.Hash
	// Method is set for function and constructor decodings.
	Method *abi.Method
	// Event is set for event and anonymous-event decodings.
	Event *abi.Event
	// RevertMessage carries the message of a revert decoding, empty when the
	// revert had none.
	RevertMessage string
	Arguments     []Argument
	// LibraryEvent marks an event matched against a contract other than the
	// emitter itself, which sorts after the emitter's own candidates.
	LibraryEvent bool
}

// EnumValue is a full-mode enum: the declared name alongside the raw index.
type EnumValue struct {
	TypeName string
	Name     string
	Index    uint64
}

// UserValue is a full-mode user-defined value type wrapping its underlying
// representation.
type UserValue struct {
	TypeName string
	Value    interface{}
}

// StructValue is a full-mode struct with named, ordered fields.
type StructValue struct {
	TypeName string
	Fields   []Argument
}

// FunctionPointer is a decoded internal function pointer. Name and
// ContractName are filled when the instance's internal function table
// resolved the program counter.
type FunctionPointer struct {
	DeployedPC    uint64
	ConstructorPC uint64
	Name          string
	ContractName  string
}

// InternalFunction is one entry of an instance's pc-to-function table.
type InternalFunction struct {
	Name         string
	ContractName string
}

// InternalFunctionTable maps deployed program counters to function metadata.
type InternalFunctionTable map[uint64]*InternalFunction

// Abify projects a full-mode decoding to its ABI-only equivalent, dropping
// source-level refinements. It performs no data fetches and leaves the
// receiver untouched.
func (d *Decoding) Abify() *Decoding {
	out := *d
	out.Mode = ModeABI
	out.Arguments = make([]Argument, len(d.Arguments))
	for i, arg := range d.Arguments {
		out.Arguments[i] = arg
		out.Arguments[i].Value = abifyValue(arg.Value)
	}
	return &out
}

func abifyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *EnumValue:
		return new(big.Int).SetUint64(val.Index)
	case *UserValue:
		return abifyValue(val.Value)
	case *StructValue:
		fields := make(map[string]interface{}, len(val.Fields))
		for _, f := range val.Fields {
			fields[f.Name] = abifyValue(f.Value)
		}
		return fields
	case *FunctionPointer:
		raw := make([]byte, 8)
		for i := 0; i < 4; i++ {
			raw[3-i] = byte(val.ConstructorPC >> (8 * i))
			raw[7-i] = byte(val.DeployedPC >> (8 * i))
		}
		return raw
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = abifyValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = abifyValue(item)
		}
		return out
	default:
		return v
	}
}
