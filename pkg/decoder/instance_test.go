package decoder

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solscope/solscope/pkg/artifacts"
	"github.com/solscope/solscope/pkg/decoding"
	"github.com/solscope/solscope/pkg/logger"
	"github.com/solscope/solscope/pkg/storageSlot"
)

// balanceSlot computes the storage address of balances[holder], with the
// mapping at root slot 1.
func balanceSlot(holder common.Address) common.Hash {
	preimage := append(
		common.LeftPadBytes(holder.Bytes(), 32),
		common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...,
	)
	return common.BytesToHash(crypto.Keccak256(preimage))
}

func tokenInstance(t *testing.T, mock *mockProvider) *ContractInstanceDecoder {
	t.Helper()
	mock.code[tokenAddress] = tokenDeployedCode
	d := testProject(t, mock)
	instance, err := d.ForAddress(context.Background(), tokenAddress.Hex())
	require.NoError(t, err)
	return instance
}

func TestInstanceVariables(t *testing.T) {
	mock := newMockProvider()
	mock.setStorage(tokenAddress, common.Hash{}, common.BigToHash(big.NewInt(42)))
	instance := tokenInstance(t, mock)

	values, err := instance.Variables(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, values, 3)

	assert.Equal(t, "total", values[0].Name)
	assert.Equal(t, "Token", values[0].ContractName)
	assert.Equal(t, "uint256", values[0].Type)
	assert.Equal(t, big.NewInt(42), values[0].Value)

	assert.Equal(t, "balances", values[1].Name)
	assert.Equal(t, map[string]interface{}{}, values[1].Value, "no watched keys yet")

	assert.Equal(t, "window", values[2].Name)
}

func TestInstanceVariable_ByNameAndByID(t *testing.T) {
	mock := newMockProvider()
	mock.setStorage(tokenAddress, common.Hash{}, common.BigToHash(big.NewInt(42)))
	instance := tokenInstance(t, mock)

	value, err := instance.Variable(context.Background(), "total", nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), value)

	// The declaration id from the storage layout works too.
	value, err = instance.Variable(context.Background(), "3", nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), value)
}

func TestInstanceVariable_MappingPath(t *testing.T) {
	holder := common.HexToAddress("0xCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCc")
	mock := newMockProvider()
	mock.setStorage(tokenAddress, balanceSlot(holder), common.BigToHash(big.NewInt(500)))
	instance := tokenInstance(t, mock)

	value, err := instance.Variable(context.Background(), "balances", nil, holder.Hex())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), value)
}

func TestInstanceVariable_PackedStructMember(t *testing.T) {
	// Slot 2 packs window.lo in the low sixteen bytes and window.hi in the
	// high sixteen.
	word := new(big.Int).Or(
		new(big.Int).Lsh(big.NewInt(1234), 128),
		big.NewInt(11),
	)
	mock := newMockProvider()
	mock.setStorage(tokenAddress, common.BigToHash(big.NewInt(2)), common.BigToHash(word))
	instance := tokenInstance(t, mock)

	lo, err := instance.Variable(context.Background(), "window", nil, "lo")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(11), lo)

	hi, err := instance.Variable(context.Background(), "window", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1234), hi)
}

func TestInstanceVariable_UnknownName(t *testing.T) {
	instance := tokenInstance(t, newMockProvider())

	_, err := instance.Variable(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestWatchMappingKey(t *testing.T) {
	holder := common.HexToAddress("0xCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCc")
	mock := newMockProvider()
	mock.setStorage(tokenAddress, balanceSlot(holder), common.BigToHash(big.NewInt(500)))
	instance := tokenInstance(t, mock)

	require.NoError(t, instance.WatchMappingKey("balances", holder.Hex()))
	assert.Len(t, instance.WatchedMappingKeys(), 1)

	values, err := instance.Variables(context.Background(), nil)
	require.NoError(t, err)
	balances, ok := values[1].Value.(map[string]interface{})
	require.True(t, ok)
	require.Len(t, balances, 1)
	assert.Equal(t, big.NewInt(500), balances[holder.Hex()])

	require.NoError(t, instance.UnwatchMappingKey("balances", holder.Hex()))
	assert.Empty(t, instance.WatchedMappingKeys())

	values, err = instance.Variables(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, values[1].Value.(map[string]interface{}))
}

func TestWatchMappingKey_BadKey(t *testing.T) {
	instance := tokenInstance(t, newMockProvider())

	err := instance.WatchMappingKey("balances", "not-an-address")
	require.ErrorIs(t, err, storageSlot.ErrBadKey)
	assert.Empty(t, instance.WatchedMappingKeys())
}

func TestVariables_MissingAllocation(t *testing.T) {
	mock := newMockProvider()
	noLayoutAddress := common.HexToAddress("0xDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDd")
	mock.code[noLayoutAddress] = []byte{0x60, 0x0c, 0x60, 0x0d}
	d := testProject(t, mock)

	instance, err := d.ForAddress(context.Background(), noLayoutAddress.Hex())
	require.NoError(t, err)

	_, err = instance.Variables(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingAllocation)
}

func TestVariables_MissingDeclaration(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[]`))
	require.NoError(t, err)
	noAST := &artifacts.Contract{
		Name:             "NoAST",
		ABI:              &parsed,
		Bytecode:         "0x60a0600e600f",
		DeployedBytecode: "0x600e600f",
	}
	compilation := &artifacts.Compilation{ID: "test", Contracts: []*artifacts.Contract{noAST}}
	d, err := NewProjectDecoder(newMockProvider(), []*artifacts.Compilation{compilation}, logger.NewNopLogger())
	require.NoError(t, err)

	cd, err := d.ForContractName("NoAST")
	require.NoError(t, err)
	instance, err := cd.ForInstance(context.Background(), tokenAddress.Hex())
	require.NoError(t, err)

	_, err = instance.Variables(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingDeclaration)
}

func TestDecodeReturnValueByName(t *testing.T) {
	d := testProject(t, newMockProvider())
	cd, err := d.ForContractName("Token")
	require.NoError(t, err)

	method := cd.Contract().ABI.Methods["totalSupply"]
	data, err := method.Outputs.Pack(big.NewInt(5000))
	require.NoError(t, err)

	decodings, err := cd.DecodeReturnValueByName(context.Background(), "totalSupply", data, decoding.StatusSuccess)
	require.NoError(t, err)
	require.NotEmpty(t, decodings)
	assert.Equal(t, decoding.KindReturn, decodings[0].Kind)
	require.Len(t, decodings[0].Arguments, 1)
	assert.Equal(t, big.NewInt(5000), decodings[0].Arguments[0].Value)

	_, err = cd.DecodeReturnValueByName(context.Background(), "nope", data, decoding.StatusSuccess)
	require.Error(t, err)
}

func TestInstanceEvents_DecodeThroughLiveCodeContext(t *testing.T) {
	const oracleABIJSON = `[{"type":"event","name":"Ping","inputs":[{"name":"value","type":"uint256"}]}]`
	parsed, err := abi.JSON(strings.NewReader(oracleABIJSON))
	require.NoError(t, err)
	// No deployed bytecode recorded; the only usable context is the one
	// discovered from live code at instance construction.
	oracle := &artifacts.Contract{
		Name:   "Oracle",
		RawABI: []byte(oracleABIJSON),
		ABI:    &parsed,
	}

	oracleAddress := common.HexToAddress("0xEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEe")
	mock := newMockProvider()
	mock.code[oracleAddress] = []byte{0x60, 0x01, 0x60, 0x02}

	compilation := &artifacts.Compilation{ID: "test", Contracts: []*artifacts.Contract{oracle}}
	d, err := NewProjectDecoder(mock, []*artifacts.Compilation{compilation}, logger.NewNopLogger())
	require.NoError(t, err)
	cd, err := d.ForContractName("Oracle")
	require.NoError(t, err)
	instance, err := cd.ForInstance(context.Background(), oracleAddress.Hex())
	require.NoError(t, err)

	event := parsed.Events["Ping"]
	data, err := event.Inputs.Pack(big.NewInt(7))
	require.NoError(t, err)
	lg := types.Log{
		Address:     oracleAddress,
		BlockNumber: 10,
		Topics:      []common.Hash{event.ID},
		Data:        data,
	}
	mock.logs = []types.Log{lg}

	from := rpc.BlockNumber(10)
	to := rpc.BlockNumber(10)
	events, err := instance.Events(context.Background(), &EventOptions{FromBlock: &from, ToBlock: &to})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].Decodings, 1)
	assert.Equal(t, "Oracle", events[0].Decodings[0].ContractName)
	assert.Equal(t, "Ping", events[0].Decodings[0].Event.RawName)
	assert.False(t, events[0].Decodings[0].LibraryEvent)

	// The project decoder alone carries no context for the artifact.
	decodings, err := d.DecodeLog(context.Background(), &lg)
	require.NoError(t, err)
	assert.Empty(t, decodings)
}

func TestInstanceDecodeTransaction(t *testing.T) {
	mock := newMockProvider()
	instance := tokenInstance(t, mock)

	calldata, err := instance.contract.Contract().ABI.Pack("transfer", strangerAddress, big.NewInt(9))
	require.NoError(t, err)

	result, err := instance.DecodeTransaction(context.Background(), &tokenAddress, calldata, nil)
	require.NoError(t, err)
	assert.Equal(t, decoding.KindFunction, result.Kind)
	assert.Equal(t, "transfer", result.Method.Name)
}
