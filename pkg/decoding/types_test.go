package decoding

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbify_UnwrapsFullModeValues(t *testing.T) {
	full := &Decoding{
		Kind:         KindReturn,
		Mode:         ModeFull,
		ContractName: "Vault",
		Arguments: []Argument{
			{Name: "color", Type: "enum Color", Value: &EnumValue{TypeName: "Color", Name: "Green", Index: 1}},
			{Name: "balance", Type: "Balance", Value: &UserValue{TypeName: "Balance", Value: big.NewInt(99)}},
			{Name: "pair", Type: "struct Pair", Value: &StructValue{
				TypeName: "Pair",
				Fields: []Argument{
					{Name: "first", Value: big.NewInt(1)},
					{Name: "color", Value: &EnumValue{TypeName: "Color", Name: "Red", Index: 0}},
				},
			}},
			{Name: "callback", Type: "function", Value: &FunctionPointer{DeployedPC: 0x10, ConstructorPC: 0x20, Name: "helper"}},
			{Name: "plain", Type: "uint256", Value: big.NewInt(7)},
		},
	}

	abified := full.Abify()

	assert.Equal(t, ModeABI, abified.Mode)
	assert.Equal(t, "Vault", abified.ContractName)

	assert.Equal(t, big.NewInt(1), abified.Arguments[0].Value, "enum becomes its index")
	assert.Equal(t, big.NewInt(99), abified.Arguments[1].Value, "user value unwraps")

	fields, ok := abified.Arguments[2].Value.(map[string]interface{})
	require.True(t, ok, "struct becomes a map")
	assert.Equal(t, big.NewInt(1), fields["first"])
	assert.Equal(t, big.NewInt(0), fields["color"], "nested values unwrap too")

	raw, ok := abified.Arguments[3].Value.([]byte)
	require.True(t, ok, "function pointer becomes its raw words")
	assert.Equal(t, []byte{0, 0, 0, 0x20, 0, 0, 0, 0x10}, raw)

	assert.Equal(t, big.NewInt(7), abified.Arguments[4].Value)
}

func TestAbify_LeavesReceiverUntouched(t *testing.T) {
	full := &Decoding{
		Kind: KindEvent,
		Mode: ModeFull,
		Arguments: []Argument{
			{Name: "color", Value: &EnumValue{TypeName: "Color", Name: "Red", Index: 0}},
		},
	}

	_ = full.Abify()

	assert.Equal(t, ModeFull, full.Mode)
	_, stillWrapped := full.Arguments[0].Value.(*EnumValue)
	assert.True(t, stillWrapped)
}

func TestAbify_RecursesSlices(t *testing.T) {
	full := &Decoding{
		Mode: ModeFull,
		Arguments: []Argument{
			{Name: "colors", Value: []interface{}{
				&EnumValue{Index: 0},
				&EnumValue{Index: 2},
			}},
		},
	}

	abified := full.Abify()
	items, ok := abified.Arguments[0].Value.([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{big.NewInt(0), big.NewInt(2)}, items)
}
