package decoding

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/solscope/solscope/pkg/contexts"
)

// LogInfo carries a log and the contexts to interpret it against.
type LogInfo struct {
	Log *types.Log
	// Contexts lists the candidate contexts in a stable order.
	Contexts []*contexts.Context
	// EmitterID is the context matched against the emitting address's
	// bytecode, when known. Candidates from other contexts (linked
	// libraries) sort after the emitter's own.
	EmitterID common.Hash
}

// DecodeLog returns every strict-mode-valid interpretation of the log,
// ordered: the emitting contract's own non-anonymous events first, then
// library non-anonymous events, then anonymous matches in the same relative
// order. An empty slice, not an error, means no candidate was valid.
func DecodeLog(env *Env, info *LogInfo) ([]*Decoding, error) {
	var out []*Decoding
	for _, context := range info.Contexts {
		library := context.ID != info.EmitterID
		for _, candidate := range decodeLogAgainst(info.Log, context) {
			candidate.LibraryEvent = library
			out = append(out, candidate)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindEvent
		}
		return !out[i].LibraryEvent && out[j].LibraryEvent
	})
	return out, nil
}

// decodeLogAgainst tries every event of one contract's ABI. Strict mode:
// a candidate whose topics or data fail to unpack is discarded.
func decodeLogAgainst(lg *types.Log, context *contexts.Context) []*Decoding {
	var out []*Decoding
	contractABI := context.Contract.ABI

	if len(lg.Topics) > 0 {
		if event, err := contractABI.EventByID(lg.Topics[0]); err == nil {
			if d := decodeEventCandidate(lg, context, event, KindEvent); d != nil {
				out = append(out, d)
			}
		}
	}

	for name := range contractABI.Events {
		event := contractABI.Events[name]
		if !event.Anonymous {
			continue
		}
		if d := decodeEventCandidate(lg, context, &event, KindAnonymous); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func decodeEventCandidate(lg *types.Log, context *contexts.Context, event *abi.Event, kind Kind) *Decoding {
	topics := lg.Topics
	if kind == KindEvent {
		// Topic zero is the signature hash; only the rest carry values.
		topics = topics[1:]
	}
	if countIndexed(event.Inputs) != len(topics) {
		return nil
	}

	nonIndexed := event.Inputs.NonIndexed()
	values, err := nonIndexed.UnpackValues(lg.Data)
	if err != nil {
		return nil
	}

	args := make([]Argument, 0, len(event.Inputs))
	topicIdx, valueIdx := 0, 0
	for _, input := range event.Inputs {
		arg := Argument{Name: input.Name, Type: input.Type.String(), Indexed: input.Indexed}
		if input.Indexed {
			v, err := parseTopicValue(input, topics[topicIdx])
			if err != nil {
				return nil
			}
			arg.Value = v
			topicIdx++
		} else {
			arg.Value = values[valueIdx]
			valueIdx++
		}
		args = append(args, arg)
	}

	return &Decoding{
		Kind:         kind,
		Mode:         ModeFull,
		ContractName: context.ContractName,
		ContextID:    context.ID,
		Event:        event,
		Arguments:    args,
	}
}

func countIndexed(inputs abi.Arguments) int {
	n := 0
	for _, input := range inputs {
		if input.Indexed {
			n++
		}
	}
	return n
}

// parseTopicValue decodes one indexed topic word. Dynamic types are only
// present as their keccak hash, which is returned as-is.
func parseTopicValue(input abi.Argument, topic common.Hash) (interface{}, error) {
	word := topic.Bytes()
	switch input.Type.T {
	case abi.IntTy, abi.UintTy:
		return abi.ReadInteger(input.Type, word)
	case abi.BoolTy:
		return readBool(word)
	case abi.AddressTy:
		return common.BytesToAddress(word), nil
	case abi.FixedBytesTy:
		return word[:input.Type.Size], nil
	default:
		// string, bytes, arrays, tuples: hashed when indexed
		return topic, nil
	}
}

var errBadBool = fmt.Errorf("abi: improperly encoded boolean value")

// readBool rejects improperly encoded boolean words rather than guessing.
func readBool(word []byte) (bool, error) {
	for _, b := range word[:31] {
		if b != 0 {
			return false, errBadBool
		}
	}
	switch word[31] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errBadBool
	}
}
