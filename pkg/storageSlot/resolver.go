package storageSlot

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/layout"
	"github.com/solscope/solscope/pkg/util"
)

var (
	ErrVariableNotFound = errors.New("state variable not found")
	ErrMemberNotFound   = errors.New("struct member not found")
	ErrBadIndex         = errors.New("array index must be a nonnegative integer")
	ErrBadKey           = errors.New("cannot coerce mapping key")
)

// VariableRef identifies a declared state variable: by declaration node id,
// by bare name, or by a "Contract.name" qualified name. One tagged variant,
// one dispatch; no string sniffing at use sites.
type VariableRef struct {
	byID     bool
	id       int64
	contract string
	name     string
}

func RefByID(id int64) VariableRef {
	return VariableRef{byID: true, id: id}
}

func RefByName(name string) VariableRef {
	return VariableRef{name: name}
}

func RefQualified(contract, name string) VariableRef {
	return VariableRef{contract: contract, name: name}
}

// ParseRef turns user input into a VariableRef: a nonnegative integer is a
// declaration id, "Contract.name" is qualified, anything else is a bare
// name.
func ParseRef(s string) VariableRef {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id >= 0 {
		return RefByID(id)
	}
	if i := strings.IndexByte(s, '.'); i > 0 {
		return RefQualified(s[:i], s[i+1:])
	}
	return RefByName(s)
}

func (r VariableRef) String() string {
	if r.byID {
		return strconv.FormatInt(r.id, 10)
	}
	if r.contract != "" {
		return r.contract + "." + r.name
	}
	return r.name
}

// ResolveRoot finds the referenced declaration in the allocation table.
// Name lookups search from the most-derived contract to the most-base one.
func ResolveRoot(alloc *layout.StorageAllocation, ref VariableRef) (*layout.StateVariable, error) {
	var v *layout.StateVariable
	if ref.byID {
		v = alloc.FindByID(ref.id)
	} else {
		v = alloc.FindByName(ref.name, ref.contract)
	}
	if v == nil {
		return nil, errors.Wrapf(ErrVariableNotFound, "%s", ref.String())
	}
	return v, nil
}

// ConstructSlot resolves a variable access path to its storage slot, the
// type stored there and the value's byte offset from the low end of the
// slot word. The offset is nonzero for packed roots and packed struct
// members; array and mapping steps always land at offset zero. A
// (nil, nil, 0, nil) return means "no slot": the path is well-formed but
// does not denote an independently addressable storage location, as with
// constants, immutables and packed sub-word array elements. That is
// distinct from the error returns, which mark paths that cannot be resolved
// at all.
func ConstructSlot(alloc *layout.StorageAllocation, ref VariableRef, path ...interface{}) (*Slot, *layout.Type, uint, error) {
	if len(path) == 0 {
		v, err := ResolveRoot(alloc, ref)
		if err != nil {
			return nil, nil, 0, err
		}
		if v.Location != layout.LocationStorage || v.Slot == nil {
			return nil, nil, 0, nil
		}
		return Root(v.Slot), v.Type, v.Offset, nil
	}

	parentSlot, parentType, _, err := ConstructSlot(alloc, ref, path[:len(path)-1]...)
	if err != nil {
		return nil, nil, 0, err
	}
	if parentSlot == nil {
		return nil, nil, 0, nil
	}

	step := path[len(path)-1]
	switch parentType.Class {
	case layout.ClassArray:
		index, ok := coerceIndex(step)
		if !ok {
			return nil, nil, 0, errors.Wrapf(ErrBadIndex, "%v", step)
		}
		words, whole := parentType.Base.StorageWords()
		if !whole {
			return nil, nil, 0, nil
		}
		child := &Slot{Path: parentSlot, HashPath: parentType.DynamicArray()}
		var stride uint256.Int
		stride.SetFromBig(words)
		child.Offset.Mul(&stride, index)
		return child, parentType.Base, 0, nil

	case layout.ClassMapping:
		keyType := resolveKeyType(parentType.Key)
		key, err := CoerceKey(keyType, step)
		if err != nil {
			return nil, nil, 0, err
		}
		child := &Slot{Path: parentSlot, Key: key}
		return child, parentType.Value, 0, nil

	case layout.ClassStruct:
		name, ok := step.(string)
		if !ok {
			return nil, nil, 0, errors.Wrapf(ErrMemberNotFound, "%v", step)
		}
		member, ok := parentType.Member(name)
		if !ok {
			return nil, nil, 0, errors.Wrapf(ErrMemberNotFound, "%s.%s", parentType.Name, name)
		}
		child := &Slot{Path: parentSlot}
		child.Offset.SetFromBig(member.Slot)
		return child, member.Type, member.Offset, nil

	default:
		// Indexing a non-aggregate does not make sense; no slot.
		return nil, nil, 0, nil
	}
}

// resolveKeyType unwraps user-defined value types to their underlying
// elementary form before key coercion. Enums keep their definition so named
// values remain usable as keys.
func resolveKeyType(t *layout.Type) *layout.Type {
	if t.Class == layout.ClassUserValue && t.Underlying != nil {
		return t.Underlying
	}
	return t
}

func coerceIndex(step interface{}) (*uint256.Int, bool) {
	switch v := step.(type) {
	case int:
		if v < 0 {
			return nil, false
		}
		return uint256.NewInt(uint64(v)), true
	case int64:
		if v < 0 {
			return nil, false
		}
		return uint256.NewInt(uint64(v)), true
	case uint64:
		return uint256.NewInt(v), true
	case *big.Int:
		if v.Sign() < 0 {
			return nil, false
		}
		var out uint256.Int
		if overflow := out.SetFromBig(v); overflow {
			return nil, false
		}
		return &out, true
	case string:
		n, err := uint256.FromDecimal(v)
		if err != nil {
			return nil, false
		}
		return n, true
	}
	return nil, false
}

// CoerceKey turns a raw key into a typed elementary value for the given key
// type.
func CoerceKey(t *layout.Type, raw interface{}) (*Key, error) {
	switch t.Class {
	case layout.ClassUint, layout.ClassInt:
		n, ok := coerceBig(raw)
		if !ok {
			return nil, errors.Wrapf(ErrBadKey, "%v as %s", raw, t.String())
		}
		return &Key{Type: t, value: n}, nil
	case layout.ClassBool:
		switch v := raw.(type) {
		case bool:
			return &Key{Type: t, value: v}, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Wrapf(ErrBadKey, "%v as bool", raw)
			}
			return &Key{Type: t, value: b}, nil
		}
	case layout.ClassAddress, layout.ClassContract:
		switch v := raw.(type) {
		case common.Address:
			return &Key{Type: t, value: v}, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, errors.Wrapf(ErrBadKey, "%q is not an address", v)
			}
			return &Key{Type: t, value: common.HexToAddress(v)}, nil
		}
	case layout.ClassString:
		if v, ok := raw.(string); ok {
			return &Key{Type: t, value: v}, nil
		}
	case layout.ClassBytes, layout.ClassFixedBytes:
		switch v := raw.(type) {
		case []byte:
			return &Key{Type: t, value: v}, nil
		case string:
			decoded, err := util.DecodeHex(v)
			if err != nil {
				return nil, errors.Wrapf(ErrBadKey, "%q is not hex", v)
			}
			return &Key{Type: t, value: decoded}, nil
		}
	case layout.ClassEnum:
		switch v := raw.(type) {
		case string:
			for i, name := range t.EnumValues {
				if name == v {
					return &Key{Type: t, value: big.NewInt(int64(i))}, nil
				}
			}
			if n, ok := coerceBig(v); ok {
				return &Key{Type: t, value: n}, nil
			}
		default:
			if n, ok := coerceBig(raw); ok {
				return &Key{Type: t, value: n}, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrBadKey, "%v as %s", raw, t.String())
}

func coerceBig(raw interface{}) (*big.Int, bool) {
	switch v := raw.(type) {
	case *big.Int:
		return v, true
	case int:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case string:
		if strings.HasPrefix(v, "0x") {
			n, ok := new(big.Int).SetString(v[2:], 16)
			return n, ok
		}
		n, ok := new(big.Int).SetString(v, 10)
		return n, ok
	}
	return nil, false
}
