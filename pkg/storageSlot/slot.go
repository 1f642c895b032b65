// Package storageSlot computes concrete storage locations for variable
// access paths: array indices, mapping keys and struct members, chained
// from a declared root slot.
package storageSlot

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/solscope/solscope/pkg/layout"
)

// Slot is a storage location descriptor. The Path chain leads back to a root
// variable slot; Key is set for mapping-derived slots; HashPath marks slots
// whose concrete address requires hashing the parent address first, as
// dynamic array data regions do.
type Slot struct {
	Path     *Slot
	Offset   uint256.Int
	Key      *Key
	HashPath bool
}

// Root returns the slot for a declared variable's root word.
func Root(offset *uint256.Int) *Slot {
	s := &Slot{}
	s.Offset.Set(offset)
	return s
}

// Equal compares full chains: key, offset, hashPath and recursively the
// parents.
func (s *Slot) Equal(o *Slot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.HashPath != o.HashPath || s.Offset.Cmp(&o.Offset) != 0 {
		return false
	}
	if (s.Key == nil) != (o.Key == nil) {
		return false
	}
	if s.Key != nil && s.Key.String() != o.Key.String() {
		return false
	}
	return s.Path.Equal(o.Path)
}

// HasAncestor reports whether ancestor appears anywhere in the slot's
// parent chain, the slot itself excluded.
func (s *Slot) HasAncestor(ancestor *Slot) bool {
	for p := s.Path; p != nil; p = p.Path {
		if p.Equal(ancestor) {
			return true
		}
	}
	return false
}

// Address resolves the chain to the concrete 32-byte storage address using
// the Solidity storage rules: mapping slots hash the encoded key with the
// parent address, dynamic regions hash the parent address alone, and struct
// or fixed-array steps add their word offset in place.
func (s *Slot) Address() common.Hash {
	var addr uint256.Int
	if s.Path == nil {
		addr.Set(&s.Offset)
		return addr.Bytes32()
	}
	parent := s.Path.Address()
	switch {
	case s.Key != nil:
		hashed := crypto.Keccak256(append(s.Key.Bytes(), parent.Bytes()...))
		addr.SetBytes(hashed)
	case s.HashPath:
		addr.SetBytes(crypto.Keccak256(parent.Bytes()))
	default:
		addr.SetBytes(parent.Bytes())
	}
	addr.Add(&addr, &s.Offset)
	return addr.Bytes32()
}

// ID renders a canonical string form of the full chain, used for set
// membership and cache keys.
func (s *Slot) ID() string {
	var sb strings.Builder
	s.writeID(&sb)
	return sb.String()
}

func (s *Slot) writeID(sb *strings.Builder) {
	if s.Path != nil {
		s.Path.writeID(sb)
		sb.WriteByte('/')
	}
	if s.Key != nil {
		sb.WriteString("key(")
		sb.WriteString(s.Key.String())
		sb.WriteByte(')')
	}
	if s.HashPath {
		sb.WriteByte('#')
	}
	sb.WriteString(s.Offset.Dec())
}

// Key is a typed mapping key.
type Key struct {
	Type  *layout.Type
	value interface{}
}

// Bytes returns the storage hash preimage encoding of the key: value types
// padded to a full word, strings and byte strings raw and unpadded.
func (k *Key) Bytes() []byte {
	switch v := k.value.(type) {
	case *big.Int:
		var word uint256.Int
		word.SetFromBig(v)
		out := word.Bytes32()
		return out[:]
	case bool:
		out := make([]byte, 32)
		if v {
			out[31] = 1
		}
		return out
	case common.Address:
		return common.LeftPadBytes(v.Bytes(), 32)
	case string:
		return []byte(v)
	case []byte:
		if k.Type != nil && k.Type.Class == layout.ClassFixedBytes {
			return common.RightPadBytes(v, 32)
		}
		return v
	}
	return nil
}

// Value returns the coerced key value.
func (k *Key) Value() interface{} {
	return k.value
}

// String is the canonical display form of the key.
func (k *Key) String() string {
	switch v := k.value.(type) {
	case *big.Int:
		return v.String()
	case bool:
		return fmt.Sprintf("%t", v)
	case common.Address:
		return v.Hex()
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return common.Bytes2Hex(v)
	}
	return fmt.Sprintf("%v", k.value)
}
