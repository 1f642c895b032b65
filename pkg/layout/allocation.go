package layout

import (
	"github.com/holiman/uint256"
)

// DataLocation tells where a declared state variable actually lives.
type DataLocation int

const (
	// LocationStorage variables occupy storage slots and are addressable.
	LocationStorage DataLocation = iota
	// LocationCode variables are immutables baked into deployed bytecode.
	LocationCode
	// LocationDefinition variables are compile-time constants with no
	// independent storage at all.
	LocationDefinition
)

// StateVariable is one declared state variable together with its allocated
// position. Variables in LocationCode or LocationDefinition carry no slot.
type StateVariable struct {
	Name string
	// ContractName is the contract that declares the variable, which for
	// inherited variables differs from the contract being decoded.
	ContractName string
	// DeclarationID is the AST id of the declaration node.
	DeclarationID int64
	Type          *Type
	Location      DataLocation
	// Slot is the root word of the variable; nil unless LocationStorage.
	Slot *uint256.Int
	// Offset is the byte offset within the slot for packed variables.
	Offset uint
}

// StorageAllocation is the full storage layout of one contract. Variables
// appear in declaration collection order: most-base contract first, the
// contract's own declarations last.
type StorageAllocation struct {
	ContractName string
	Variables    []StateVariable
}

// FindByID returns the variable whose declaration node id matches exactly.
func (a *StorageAllocation) FindByID(id int64) *StateVariable {
	for i := range a.Variables {
		if a.Variables[i].DeclarationID == id {
			return &a.Variables[i]
		}
	}
	return nil
}

// FindByName searches declared variables from the most-derived contract down
// to the most-base one, taking the first name match. When declaringContract
// is non-empty the declaring contract name must match as well, which is how
// shadowed base-contract variables stay reachable.
func (a *StorageAllocation) FindByName(name, declaringContract string) *StateVariable {
	for i := len(a.Variables) - 1; i >= 0; i-- {
		v := &a.Variables[i]
		if v.Name != name {
			continue
		}
		if declaringContract != "" && v.ContractName != declaringContract {
			continue
		}
		return v
	}
	return nil
}
