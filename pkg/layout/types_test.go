package layout

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBytes(t *testing.T) {
	assert.Equal(t, uint64(32), Uint(256).StorageBytes())
	assert.Equal(t, uint64(8), Uint(64).StorageBytes())
	assert.Equal(t, uint64(16), Int(128).StorageBytes())
	assert.Equal(t, uint64(1), Bool().StorageBytes())
	assert.Equal(t, uint64(20), Address().StorageBytes())
	assert.Equal(t, uint64(4), FixedBytes(4).StorageBytes())
	assert.Equal(t, uint64(32), Bytes().StorageBytes(), "dynamic header word")
	assert.Equal(t, uint64(32), String().StorageBytes())
	assert.Equal(t, uint64(32), Mapping(Uint(256), Uint(256)).StorageBytes())
}

func TestStorageBytes_EnumWidth(t *testing.T) {
	small := Enum("Small", "A", "B", "C")
	assert.Equal(t, uint64(1), small.StorageBytes())

	values := make([]string, 300)
	for i := range values {
		values[i] = "V"
	}
	wide := &Type{Class: ClassEnum, Name: "Big", EnumValues: values}
	assert.Equal(t, uint64(2), wide.StorageBytes())
}

func TestStorageBytes_FunctionPointers(t *testing.T) {
	assert.Equal(t, uint64(8), (&Type{Class: ClassFunctionInternal}).StorageBytes())
	assert.Equal(t, uint64(24), (&Type{Class: ClassFunctionExternal}).StorageBytes())
}

func TestStorageWords(t *testing.T) {
	words, whole := Uint(256).StorageWords()
	require.True(t, whole)
	assert.Equal(t, int64(1), words.Int64())

	_, whole = Uint(64).StorageWords()
	assert.False(t, whole, "sub-word types do not slice into whole slots")

	pair := Struct("Pair",
		Member{Name: "a", Type: Uint(256), Slot: big.NewInt(0)},
		Member{Name: "b", Type: Uint(256), Slot: big.NewInt(1)},
	)
	words, whole = pair.StorageWords()
	require.True(t, whole)
	assert.Equal(t, int64(2), words.Int64())
}

func TestStruct_FootprintSpansMultiwordMembers(t *testing.T) {
	s := Struct("Holder",
		Member{Name: "a", Type: Uint(256), Slot: big.NewInt(0)},
		Member{Name: "wide", Type: StaticArray(Uint(256), 3), Slot: big.NewInt(1)},
	)
	assert.Equal(t, uint64(4*32), s.NumBytes)
}

func TestDynamicArray(t *testing.T) {
	assert.True(t, DynArray(Uint(256)).DynamicArray())
	assert.False(t, StaticArray(Uint(256), 3).DynamicArray())
	assert.False(t, Bytes().DynamicArray())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "uint256", Uint(256).String())
	assert.Equal(t, "int8", Int(8).String())
	assert.Equal(t, "bytes32", FixedBytes(32).String())
	assert.Equal(t, "uint256[]", DynArray(Uint(256)).String())
	assert.Equal(t, "uint8[4]", StaticArray(Uint(8), 4).String())
	assert.Equal(t, "mapping(address => uint256)", Mapping(Address(), Uint(256)).String())
	assert.Equal(t, "enum Color", Enum("Color", "Red").String())
	assert.Equal(t, "struct Pair", Struct("Pair").String())
	assert.Equal(t, "contract IERC20", Contract("IERC20").String())
}

func TestMemberLookup(t *testing.T) {
	pair := Struct("Pair",
		Member{Name: "first", Type: Uint(256), Slot: big.NewInt(0)},
		Member{Name: "second", Type: String(), Slot: big.NewInt(1)},
	)
	m, ok := pair.Member("second")
	require.True(t, ok)
	assert.Equal(t, ClassString, m.Type.Class)

	_, ok = pair.Member("third")
	assert.False(t, ok)
}

func TestParseElementary(t *testing.T) {
	assert.Equal(t, ClassBool, ParseElementary("bool").Class)
	assert.Equal(t, ClassAddress, ParseElementary("address").Class)
	assert.Equal(t, ClassAddress, ParseElementary("address payable").Class)
	assert.Equal(t, uint(256), ParseElementary("uint").Bits)
	assert.Equal(t, uint(128), ParseElementary("uint128").Bits)
	assert.Equal(t, uint(64), ParseElementary("int64").Bits)
	assert.Equal(t, uint(32), ParseElementary("bytes32").ByteLen)
	assert.Equal(t, ClassBytes, ParseElementary("bytes").Class)
	assert.Equal(t, ClassString, ParseElementary("string").Class)
	assert.Nil(t, ParseElementary("struct Pair"))
	assert.Nil(t, ParseElementary("mapping(uint256 => uint256)"))
}

func TestAllocationLookups(t *testing.T) {
	alloc := &StorageAllocation{
		ContractName: "Derived",
		Variables: []StateVariable{
			{Name: "v", ContractName: "Base", DeclarationID: 1},
			{Name: "v", ContractName: "Derived", DeclarationID: 2},
		},
	}

	assert.Equal(t, int64(2), alloc.FindByName("v", "").DeclarationID, "most-derived wins")
	assert.Equal(t, int64(1), alloc.FindByName("v", "Base").DeclarationID)
	assert.Nil(t, alloc.FindByName("v", "Other"))
	assert.Nil(t, alloc.FindByName("w", ""))
	assert.Equal(t, "Base", alloc.FindByID(1).ContractName)
	assert.Nil(t, alloc.FindByID(3))
}
