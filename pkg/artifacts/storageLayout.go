package artifacts

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/layout"
)

// StorageLayout is the raw solc storageLayout output.
type StorageLayout struct {
	Storage []StorageEntry              `json:"storage"`
	Types   map[string]*StorageTypeInfo `json:"types"`
}

// StorageEntry is one allocated state variable, or one struct member when it
// appears under a type's Members.
type StorageEntry struct {
	AstID    int64  `json:"astId"`
	Contract string `json:"contract"`
	Label    string `json:"label"`
	Offset   uint   `json:"offset"`
	Slot     string `json:"slot"`
	Type     string `json:"type"`
}

// StorageTypeInfo describes one type referenced from the layout.
type StorageTypeInfo struct {
	Encoding      string         `json:"encoding"`
	Label         string         `json:"label"`
	NumberOfBytes string         `json:"numberOfBytes"`
	Base          string         `json:"base"`
	Key           string         `json:"key"`
	Value         string         `json:"value"`
	Members       []StorageEntry `json:"members"`
}

// Allocate converts the contract's raw storage layout into the allocation
// table the slot resolver works against. Constants and immutables found in
// the AST are appended with their non-storage locations so that looking them
// up yields "no slot" instead of "not found".
func Allocate(contract *Contract) (*layout.StorageAllocation, error) {
	if contract.StorageLayout == nil {
		return nil, errors.Errorf("contract %s has no storage layout", contract.Name)
	}

	resolver := &typeResolver{
		types: contract.StorageLayout.Types,
		memo:  map[string]*layout.Type{},
	}

	alloc := &layout.StorageAllocation{ContractName: contract.Name}
	for _, entry := range contract.StorageLayout.Storage {
		t, err := resolver.resolve(entry.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "contract %s variable %s", contract.Name, entry.Label)
		}
		slot, err := parseSlot(entry.Slot)
		if err != nil {
			return nil, errors.Wrapf(err, "contract %s variable %s", contract.Name, entry.Label)
		}
		alloc.Variables = append(alloc.Variables, layout.StateVariable{
			Name:          entry.Label,
			ContractName:  bareContractName(entry.Contract),
			DeclarationID: entry.AstID,
			Type:          t,
			Location:      layout.LocationStorage,
			Slot:          slot,
			Offset:        entry.Offset,
		})
	}

	if contract.HasAST() {
		fillEnumValues(contract.AST, resolver.memo)
		for _, decl := range nonStorageDeclarations(contract.AST) {
			location := layout.LocationDefinition
			if decl.Immutable {
				location = layout.LocationCode
			}
			alloc.Variables = append(alloc.Variables, layout.StateVariable{
				Name:          decl.Name,
				ContractName:  decl.Contract,
				DeclarationID: decl.ID,
				Type:          layout.ParseElementary(decl.TypeString),
				Location:      location,
			})
		}
	}
	return alloc, nil
}

type typeResolver struct {
	types map[string]*StorageTypeInfo
	memo  map[string]*layout.Type
}

func (r *typeResolver) resolve(id string) (*layout.Type, error) {
	if t, ok := r.memo[id]; ok {
		return t, nil
	}
	info, ok := r.types[id]
	if !ok {
		return nil, errors.Errorf("storage layout references unknown type %s", id)
	}

	// Reserve the memo entry first so recursive types terminate.
	t := &layout.Type{}
	r.memo[id] = t

	numBytes, _ := strconv.ParseUint(info.NumberOfBytes, 10, 64)
	t.NumBytes = numBytes

	switch info.Encoding {
	case "mapping":
		key, err := r.resolve(info.Key)
		if err != nil {
			return nil, err
		}
		value, err := r.resolve(info.Value)
		if err != nil {
			return nil, err
		}
		t.Class = layout.ClassMapping
		t.Key = key
		t.Value = value
	case "dynamic_array":
		base, err := r.resolve(info.Base)
		if err != nil {
			return nil, err
		}
		t.Class = layout.ClassArray
		t.Base = base
	case "bytes":
		if info.Label == "string" {
			t.Class = layout.ClassString
		} else {
			t.Class = layout.ClassBytes
		}
	case "inplace":
		if err := r.resolveInplace(id, info, t); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown storage encoding %q for type %s", info.Encoding, id)
	}
	return t, nil
}

func (r *typeResolver) resolveInplace(id string, info *StorageTypeInfo, t *layout.Type) error {
	switch {
	case len(info.Members) > 0:
		t.Class = layout.ClassStruct
		t.Name = strings.TrimPrefix(info.Label, "struct ")
		for _, m := range info.Members {
			mt, err := r.resolve(m.Type)
			if err != nil {
				return err
			}
			slot, err := parseSlot(m.Slot)
			if err != nil {
				return err
			}
			t.Members = append(t.Members, layout.Member{
				Name:   m.Label,
				Type:   mt,
				Slot:   slot.ToBig(),
				Offset: m.Offset,
			})
		}
	case info.Base != "":
		base, err := r.resolve(info.Base)
		if err != nil {
			return err
		}
		t.Class = layout.ClassArray
		t.Base = base
		t.ArrayLen = staticArrayLength(info.Label, base, t.NumBytes)
	case strings.HasPrefix(id, "t_userDefinedValueType"):
		t.Class = layout.ClassUserValue
		t.Name = info.Label
		t.Underlying = layout.ParseElementary(underlyingFromBytes(t.NumBytes))
	case strings.HasPrefix(info.Label, "enum "):
		t.Class = layout.ClassEnum
		t.Name = strings.TrimPrefix(info.Label, "enum ")
	case strings.HasPrefix(info.Label, "contract "):
		t.Class = layout.ClassContract
		t.Name = strings.TrimPrefix(info.Label, "contract ")
	case strings.HasPrefix(id, "t_function_internal"):
		t.Class = layout.ClassFunctionInternal
	case strings.HasPrefix(id, "t_function_external"):
		t.Class = layout.ClassFunctionExternal
	default:
		elem := layout.ParseElementary(info.Label)
		if elem == nil {
			return errors.Errorf("unsupported inplace type %s (%s)", id, info.Label)
		}
		elem.NumBytes = t.NumBytes
		*t = *elem
	}
	return nil
}

// staticArrayLength pulls the declared length out of a label like
// "uint256[3]", falling back to footprint arithmetic.
func staticArrayLength(label string, base *layout.Type, numBytes uint64) *big.Int {
	open := strings.LastIndex(label, "[")
	close := strings.LastIndex(label, "]")
	if open >= 0 && close > open+1 {
		if n, err := strconv.ParseUint(label[open+1:close], 10, 64); err == nil {
			return new(big.Int).SetUint64(n)
		}
	}
	if eb := base.StorageBytes(); eb != 0 {
		return new(big.Int).SetUint64(numBytes / eb)
	}
	return big.NewInt(0)
}

// underlyingFromBytes guesses the elementary label of a user-defined value
// type's representation from its width. The layout output does not record
// the wrapped type directly.
func underlyingFromBytes(n uint64) string {
	if n == 20 {
		return "address"
	}
	return "uint" + strconv.FormatUint(n*8, 10)
}

func parseSlot(s string) (*uint256.Int, error) {
	slot, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad slot value %q", s)
	}
	return slot, nil
}

// bareContractName strips the "path/to/Source.sol:" qualifier solc puts in
// front of contract names.
func bareContractName(qualified string) string {
	if i := strings.LastIndex(qualified, ":"); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
