// Package layout holds the read-only allocation tables a decoder project is
// built from: the Solidity storage type model and the per-contract state
// variable allocations produced by the compilation pipeline. Nothing in this
// package is mutated after project construction.
package layout

import (
	"fmt"
	"math/big"
	"strings"
)

type TypeClass int

const (
	ClassUint TypeClass = iota
	ClassInt
	ClassBool
	ClassAddress
	ClassFixedBytes
	ClassBytes
	ClassString
	ClassEnum
	ClassUserValue
	ClassContract
	ClassArray
	ClassMapping
	ClassStruct
	ClassFunctionInternal
	ClassFunctionExternal
)

// Type describes a Solidity storage type. Only the fields relevant to the
// type's class are populated.
type Type struct {
	Class TypeClass

	// Bits is the width of uint/int types.
	Bits uint
	// ByteLen is the width of fixed-size bytesN types.
	ByteLen uint
	// Name is the declared name of enum, struct, contract and user-defined
	// value types.
	Name string
	// Underlying is the wrapped elementary type of a user-defined value type.
	Underlying *Type
	// EnumValues lists the enum's members in declaration order, when known.
	EnumValues []string

	// Base is the element type of an array.
	Base *Type
	// ArrayLen is the length of a static array; nil marks a dynamic array.
	ArrayLen *big.Int

	// Key and Value describe a mapping.
	Key   *Type
	Value *Type

	// Members describe a struct's storage layout.
	Members []Member

	// NumBytes is the storage footprint reported by the allocator. Dynamic
	// types occupy a single 32-byte header word at their declared slot.
	NumBytes uint64
}

// Member is a struct member together with its position relative to the
// struct's own slot.
type Member struct {
	Name   string
	Type   *Type
	Slot   *big.Int
	Offset uint
}

// DynamicArray reports whether the type is a dynamically sized array.
func (t *Type) DynamicArray() bool {
	return t.Class == ClassArray && t.ArrayLen == nil
}

// StorageBytes returns the number of bytes the type occupies when packed into
// a slot. Dynamic types report their 32-byte header word.
func (t *Type) StorageBytes() uint64 {
	if t.NumBytes != 0 {
		return t.NumBytes
	}
	switch t.Class {
	case ClassUint, ClassInt:
		return uint64(t.Bits / 8)
	case ClassBool:
		return 1
	case ClassAddress, ClassContract:
		return 20
	case ClassFixedBytes:
		return uint64(t.ByteLen)
	case ClassEnum:
		n := uint64(1)
		for v := len(t.EnumValues); v > 256; v /= 256 {
			n++
		}
		return n
	case ClassUserValue:
		if t.Underlying != nil {
			return t.Underlying.StorageBytes()
		}
		return 32
	case ClassFunctionInternal:
		return 8
	case ClassFunctionExternal:
		return 24
	default:
		// string, bytes, mapping, dynamic array headers and anything
		// word-aligned
		return 32
	}
}

// StorageWords returns the whole number of words the type occupies, and false
// when the type packs into less than a full word. Indexing into arrays of
// sub-word elements is not sliceable slot-by-slot, which is exactly what the
// second return value signals.
func (t *Type) StorageWords() (*big.Int, bool) {
	b := t.StorageBytes()
	if b%32 != 0 {
		return nil, false
	}
	return new(big.Int).SetUint64(b / 32), true
}

// Member looks up a struct member by exact name.
func (t *Type) Member(name string) (*Member, bool) {
	for i := range t.Members {
		if t.Members[i].Name == name {
			return &t.Members[i], true
		}
	}
	return nil, false
}

// String renders the canonical Solidity label for the type.
func (t *Type) String() string {
	switch t.Class {
	case ClassUint:
		return fmt.Sprintf("uint%d", t.Bits)
	case ClassInt:
		return fmt.Sprintf("int%d", t.Bits)
	case ClassBool:
		return "bool"
	case ClassAddress:
		return "address"
	case ClassFixedBytes:
		return fmt.Sprintf("bytes%d", t.ByteLen)
	case ClassBytes:
		return "bytes"
	case ClassString:
		return "string"
	case ClassEnum:
		return "enum " + t.Name
	case ClassUserValue:
		return t.Name
	case ClassContract:
		return "contract " + t.Name
	case ClassArray:
		if t.ArrayLen == nil {
			return t.Base.String() + "[]"
		}
		return fmt.Sprintf("%s[%s]", t.Base.String(), t.ArrayLen.String())
	case ClassMapping:
		return fmt.Sprintf("mapping(%s => %s)", t.Key.String(), t.Value.String())
	case ClassStruct:
		return "struct " + t.Name
	case ClassFunctionInternal:
		return "function (internal)"
	case ClassFunctionExternal:
		return "function (external)"
	}
	return "unknown"
}

// Elementary type constructors used by the artifact converter and by tests.

func Uint(bits uint) *Type       { return &Type{Class: ClassUint, Bits: bits} }
func Int(bits uint) *Type        { return &Type{Class: ClassInt, Bits: bits} }
func Bool() *Type                { return &Type{Class: ClassBool} }
func Address() *Type             { return &Type{Class: ClassAddress} }
func FixedBytes(n uint) *Type    { return &Type{Class: ClassFixedBytes, ByteLen: n} }
func Bytes() *Type               { return &Type{Class: ClassBytes} }
func String() *Type              { return &Type{Class: ClassString} }
func Contract(name string) *Type { return &Type{Class: ClassContract, Name: name} }

func Enum(name string, values ...string) *Type {
	return &Type{Class: ClassEnum, Name: name, EnumValues: values}
}

func DynArray(base *Type) *Type {
	return &Type{Class: ClassArray, Base: base}
}

func StaticArray(base *Type, length int64) *Type {
	return &Type{Class: ClassArray, Base: base, ArrayLen: big.NewInt(length)}
}

func Mapping(key, value *Type) *Type {
	return &Type{Class: ClassMapping, Key: key, Value: value}
}

func Struct(name string, members ...Member) *Type {
	t := &Type{Class: ClassStruct, Name: name, Members: members}
	var words uint64
	for i := range members {
		span := (members[i].Type.StorageBytes() + 31) / 32
		if span == 0 {
			span = 1
		}
		end := members[i].Slot.Uint64() + span
		if end > words {
			words = end
		}
	}
	t.NumBytes = words * 32
	return t
}

// ParseElementary maps a bare Solidity type name ("uint256", "bytes32",
// "address payable", ...) to its Type. Returns nil for non-elementary labels.
func ParseElementary(label string) *Type {
	label = strings.TrimSuffix(label, " payable")
	switch {
	case label == "bool":
		return Bool()
	case label == "address":
		return Address()
	case label == "string":
		return String()
	case label == "bytes":
		return Bytes()
	case label == "uint":
		return Uint(256)
	case label == "int":
		return Int(256)
	case strings.HasPrefix(label, "uint"):
		var bits uint
		if _, err := fmt.Sscanf(label, "uint%d", &bits); err == nil {
			return Uint(bits)
		}
	case strings.HasPrefix(label, "int"):
		var bits uint
		if _, err := fmt.Sscanf(label, "int%d", &bits); err == nil {
			return Int(bits)
		}
	case strings.HasPrefix(label, "bytes"):
		var n uint
		if _, err := fmt.Sscanf(label, "bytes%d", &n); err == nil {
			return FixedBytes(n)
		}
	}
	return nil
}
