package decoding

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaultABI = `[
	{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"shutdown","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"error","name":"InsufficientBalance","inputs":[
		{"name":"available","type":"uint256"},
		{"name":"required","type":"uint256"}
	]}
]`

func vaultReturnInfo(t *testing.T, method string, data []byte, status CallStatus) *ReturnInfo {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	require.NoError(t, err)
	m := parsed.Methods[method]
	return &ReturnInfo{
		Data:         data,
		Status:       status,
		Method:       &m,
		ABI:          &parsed,
		ContractName: "Vault",
		ContextID:    common.HexToHash("0x01"),
	}
}

func packRevertString(t *testing.T, message string) []byte {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(message)
	require.NoError(t, err)
	return append(append([]byte{}, errorStringSelector...), packed...)
}

func TestDecodeReturnValue_SuccessfulReturn(t *testing.T) {
	data := common.LeftPadBytes(big.NewInt(5000).Bytes(), 32)
	info := vaultReturnInfo(t, "totalSupply", data, StatusSuccess)

	out, err := DecodeReturnValue(nil, info)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, KindReturn, out[0].Kind)
	require.Len(t, out[0].Arguments, 1)
	assert.Equal(t, big.NewInt(5000), out[0].Arguments[0].Value)
}

func TestDecodeReturnValue_RevertWithMessage(t *testing.T) {
	data := packRevertString(t, "insufficient balance")
	info := vaultReturnInfo(t, "totalSupply", data, StatusFailure)

	out, err := DecodeReturnValue(nil, info)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, KindRevert, out[0].Kind)
	assert.Equal(t, "insufficient balance", out[0].RevertMessage)
}

func TestDecodeReturnValue_CustomError(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	require.NoError(t, err)
	custom := parsed.Errors["InsufficientBalance"]
	packed, err := custom.Inputs.Pack(big.NewInt(10), big.NewInt(25))
	require.NoError(t, err)
	data := append(append([]byte{}, custom.ID.Bytes()[:4]...), packed...)

	info := vaultReturnInfo(t, "totalSupply", data, StatusFailure)
	out, err := DecodeReturnValue(nil, info)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, KindRevert, out[0].Kind)
	assert.Equal(t, "InsufficientBalance", out[0].RevertMessage)
	require.Len(t, out[0].Arguments, 2)
	assert.Equal(t, big.NewInt(10), out[0].Arguments[0].Value)
	assert.Equal(t, big.NewInt(25), out[0].Arguments[1].Value)
}

func TestDecodeReturnValue_EmptyDataOrdering(t *testing.T) {
	// With no data and no status knowledge, all three empty-data readings are
	// candidates, ordered return, revert, selfdestruct.
	info := vaultReturnInfo(t, "shutdown", nil, StatusUnknown)

	out, err := DecodeReturnValue(nil, info)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, KindReturn, out[0].Kind)
	assert.Equal(t, KindRevert, out[1].Kind)
	assert.Equal(t, "", out[1].RevertMessage)
	assert.Equal(t, KindSelfDestruct, out[2].Kind)
}

func TestDecodeReturnValue_StatusPrunesCandidates(t *testing.T) {
	failed := vaultReturnInfo(t, "shutdown", nil, StatusFailure)
	out, err := DecodeReturnValue(nil, failed)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, KindRevert, out[0].Kind)

	succeeded := vaultReturnInfo(t, "shutdown", nil, StatusSuccess)
	out, err = DecodeReturnValue(nil, succeeded)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, KindReturn, out[0].Kind)
	assert.Equal(t, KindSelfDestruct, out[1].Kind)
}

func TestDecodeReturnValue_GarbageDataNoCandidates(t *testing.T) {
	info := vaultReturnInfo(t, "totalSupply", []byte{0x01, 0x02, 0x03}, StatusUnknown)
	out, err := DecodeReturnValue(nil, info)
	require.NoError(t, err)
	assert.Empty(t, out)
}
