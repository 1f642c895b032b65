package decoding

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/layout"
	"github.com/solscope/solscope/pkg/storageSlot"
)

// maxDynamicLength bounds how many elements a dynamic value read from
// storage may claim before the decode is treated as garbage data.
const maxDynamicLength = 1 << 20

// StorageInfo parameterizes a storage variable decode.
type StorageInfo struct {
	Type   *layout.Type
	Slot   *storageSlot.Slot
	Offset uint
	// Watched limits which mapping keys are decoded; mappings without
	// watched keys decode to an empty map.
	Watched *storageSlot.WatchedKeys
	// InternalFunctions resolves internal function pointer words, when the
	// instance managed to build a table.
	InternalFunctions InternalFunctionTable
}

// DecodeStorageValue reads and decodes one storage variable, requesting
// words through the Env as it goes.
func DecodeStorageValue(env *Env, info *StorageInfo) (interface{}, error) {
	return decodeStorage(env, info, info.Type, info.Slot, info.Offset)
}

func decodeStorage(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot, offset uint) (interface{}, error) {
	switch t.Class {
	case layout.ClassString, layout.ClassBytes:
		return decodeDynamicBytes(env, t, slot)
	case layout.ClassArray:
		if t.DynamicArray() {
			return decodeDynamicArray(env, info, t, slot)
		}
		return decodeStaticArray(env, info, t, slot, t.ArrayLen.Uint64())
	case layout.ClassStruct:
		return decodeStruct(env, info, t, slot)
	case layout.ClassMapping:
		return decodeMapping(env, info, t, slot)
	default:
		word, err := env.StorageWord(slot.Address())
		if err != nil {
			return nil, err
		}
		return decodeValueWord(info, t, word, offset)
	}
}

// decodeValueWord extracts and interprets a value type packed into a word at
// the given byte offset from the low end.
func decodeValueWord(info *StorageInfo, t *layout.Type, word common.Hash, offset uint) (interface{}, error) {
	size := uint(t.StorageBytes())
	if offset+size > 32 {
		return nil, errors.Errorf("value of type %s at offset %d overflows its slot", t.String(), offset)
	}
	raw := make([]byte, size)
	copy(raw, word[32-offset-size:32-offset])

	switch t.Class {
	case layout.ClassUint:
		return new(big.Int).SetBytes(raw), nil
	case layout.ClassInt:
		v := new(big.Int).SetBytes(raw)
		if len(raw) > 0 && raw[0]&0x80 != 0 {
			max := new(big.Int).Lsh(big.NewInt(1), uint(len(raw))*8)
			v.Sub(v, max)
		}
		return v, nil
	case layout.ClassBool:
		for _, b := range raw {
			if b != 0 {
				return true, nil
			}
		}
		return false, nil
	case layout.ClassAddress, layout.ClassContract:
		return common.BytesToAddress(raw), nil
	case layout.ClassFixedBytes:
		return raw, nil
	case layout.ClassEnum:
		index := new(big.Int).SetBytes(raw).Uint64()
		value := &EnumValue{TypeName: t.Name, Index: index}
		if index < uint64(len(t.EnumValues)) {
			value.Name = t.EnumValues[index]
		}
		return value, nil
	case layout.ClassUserValue:
		underlying := t.Underlying
		if underlying == nil {
			return &UserValue{TypeName: t.Name, Value: new(big.Int).SetBytes(raw)}, nil
		}
		inner, err := decodeRawValue(underlying, raw)
		if err != nil {
			return nil, err
		}
		return &UserValue{TypeName: t.Name, Value: inner}, nil
	case layout.ClassFunctionInternal:
		return decodeInternalFunction(info, raw), nil
	case layout.ClassFunctionExternal:
		// 20 bytes of address followed by the 4-byte selector.
		if len(raw) >= 24 {
			return map[string]interface{}{
				"address":  common.BytesToAddress(raw[:20]),
				"selector": append([]byte{}, raw[20:24]...),
			}, nil
		}
		return raw, nil
	}
	return nil, errors.Errorf("type %s is not a storage value type", t.String())
}

// decodeRawValue decodes already-extracted bytes without re-reading storage,
// used for user-defined value type underlying representations.
func decodeRawValue(t *layout.Type, raw []byte) (interface{}, error) {
	switch t.Class {
	case layout.ClassUint:
		return new(big.Int).SetBytes(raw), nil
	case layout.ClassInt:
		v := new(big.Int).SetBytes(raw)
		if len(raw) > 0 && raw[0]&0x80 != 0 {
			max := new(big.Int).Lsh(big.NewInt(1), uint(len(raw))*8)
			v.Sub(v, max)
		}
		return v, nil
	case layout.ClassBool:
		return len(raw) > 0 && raw[len(raw)-1] != 0, nil
	case layout.ClassAddress:
		return common.BytesToAddress(raw), nil
	case layout.ClassFixedBytes:
		return raw, nil
	}
	return raw, nil
}

func decodeInternalFunction(info *StorageInfo, raw []byte) interface{} {
	padded := make([]byte, 8)
	copy(padded[8-len(raw):], raw)
	pointer := &FunctionPointer{
		ConstructorPC: uint64(binary.BigEndian.Uint32(padded[:4])),
		DeployedPC:    uint64(binary.BigEndian.Uint32(padded[4:])),
	}
	if fn, ok := info.InternalFunctions[pointer.DeployedPC]; ok {
		pointer.Name = fn.Name
		pointer.ContractName = fn.ContractName
	}
	return pointer
}

// decodeDynamicBytes handles string and bytes storage: short form keeps the
// data in the root word, long form spills into the keccak-derived region.
func decodeDynamicBytes(env *Env, t *layout.Type, slot *storageSlot.Slot) (interface{}, error) {
	word, err := env.StorageWord(slot.Address())
	if err != nil {
		return nil, err
	}

	var data []byte
	if word[31]&1 == 0 {
		// Short form: length*2 in the low byte, data left-aligned.
		length := uint(word[31]) / 2
		if length > 31 {
			return nil, errors.New("corrupt short-form storage string")
		}
		data = append([]byte{}, word[:length]...)
	} else {
		var lenWord uint256.Int
		lenWord.SetBytes(word[:])
		lenWord.Sub(&lenWord, uint256.NewInt(1))
		lenWord.Rsh(&lenWord, 1)
		if !lenWord.IsUint64() || lenWord.Uint64() > maxDynamicLength {
			return nil, errors.New("implausible storage string length")
		}
		length := lenWord.Uint64()
		data = make([]byte, 0, length)
		words := (length + 31) / 32
		for i := uint64(0); i < words; i++ {
			chunk := &storageSlot.Slot{Path: slot, HashPath: true}
			chunk.Offset.SetUint64(i)
			w, err := env.StorageWord(chunk.Address())
			if err != nil {
				return nil, err
			}
			data = append(data, w[:]...)
		}
		data = data[:length]
	}

	if t.Class == layout.ClassString {
		return string(data), nil
	}
	return data, nil
}

func decodeDynamicArray(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot) (interface{}, error) {
	word, err := env.StorageWord(slot.Address())
	if err != nil {
		return nil, err
	}
	var lenWord uint256.Int
	lenWord.SetBytes(word[:])
	if !lenWord.IsUint64() || lenWord.Uint64() > maxDynamicLength {
		return nil, errors.New("implausible storage array length")
	}
	return decodeArrayElements(env, info, t, slot, lenWord.Uint64(), true)
}

func decodeStaticArray(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot, length uint64) (interface{}, error) {
	return decodeArrayElements(env, info, t, slot, length, false)
}

// decodeArrayElements walks an array's elements, handling both word-aligned
// strides and value types packed several to a word.
func decodeArrayElements(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot, length uint64, hashPath bool) (interface{}, error) {
	elem := t.Base
	out := make([]interface{}, 0, length)

	if words, whole := elem.StorageWords(); whole {
		stride := words.Uint64()
		for i := uint64(0); i < length; i++ {
			child := &storageSlot.Slot{Path: slot, HashPath: hashPath}
			child.Offset.SetUint64(i * stride)
			v, err := decodeStorage(env, info, elem, child, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	// Packed elements: several per word, low end first.
	elemBytes := elem.StorageBytes()
	perWord := uint64(32) / elemBytes
	for i := uint64(0); i < length; i++ {
		child := &storageSlot.Slot{Path: slot, HashPath: hashPath}
		child.Offset.SetUint64(i / perWord)
		v, err := decodeStorage(env, info, elem, child, uint((i%perWord)*elemBytes))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeStruct(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot) (interface{}, error) {
	value := &StructValue{TypeName: t.Name}
	for _, member := range t.Members {
		child := &storageSlot.Slot{Path: slot}
		child.Offset.SetFromBig(member.Slot)
		v, err := decodeStorage(env, info, member.Type, child, member.Offset)
		if err != nil {
			return nil, err
		}
		value.Fields = append(value.Fields, Argument{
			Name:  member.Name,
			Type:  member.Type.String(),
			Value: v,
		})
	}
	return value, nil
}

// decodeMapping decodes only the watched keys under this mapping slot;
// storage offers no way to enumerate the rest.
func decodeMapping(env *Env, info *StorageInfo, t *layout.Type, slot *storageSlot.Slot) (interface{}, error) {
	out := map[string]interface{}{}
	if info.Watched == nil {
		return out, nil
	}
	for _, keySlot := range info.Watched.ForMapping(slot) {
		v, err := decodeStorage(env, info, t.Value, keySlot, 0)
		if err != nil {
			return nil, err
		}
		out[keySlot.Key.String()] = v
	}
	return out, nil
}
