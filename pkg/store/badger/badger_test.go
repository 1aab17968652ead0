package badger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/gateway-go/pkg/logger"
	"github.com/interop-labs/gateway-go/pkg/types"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs, err := NewBadgerStore(t.TempDir(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestBadgerStore_ExecutedSet(t *testing.T) {
	bs := newTestStore(t)
	var id types.CommandID
	id[0] = 0x01

	executed, err := bs.IsCommandExecuted(id)
	require.NoError(t, err)
	assert.False(t, executed)

	require.NoError(t, bs.MarkCommandExecuted(id))

	executed, err = bs.IsCommandExecuted(id)
	require.NoError(t, err)
	assert.True(t, executed)
}

func TestBadgerStore_Approvals(t *testing.T) {
	bs := newTestStore(t)
	key := crypto.Keccak256Hash([]byte("approval key"))

	loaded, err := bs.GetApproval(key)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	payload := []byte("payload bytes")
	approval := &types.ContractCallApproval{
		SourceChain:     "chain-a",
		SourceAddress:   "0xsource",
		ContractAddress: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		PayloadHash:     crypto.Keccak256Hash(payload),
		Payload:         payload,
		Symbol:          "WGAS",
		MintAmount:      big.NewInt(25),
	}
	require.NoError(t, bs.SaveApproval(key, approval))

	loaded, err = bs.GetApproval(key)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, approval.SourceChain, loaded.SourceChain)
	assert.Equal(t, approval.ContractAddress, loaded.ContractAddress)
	assert.Equal(t, approval.PayloadHash, loaded.PayloadHash)
	assert.Equal(t, payload, loaded.Payload)
	assert.Equal(t, "WGAS", loaded.Symbol)
	assert.Equal(t, int64(25), loaded.MintAmount.Int64())
}

func TestBadgerStore_SaveApproval_Nil(t *testing.T) {
	bs := newTestStore(t)
	err := bs.SaveApproval(common.Hash{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil approval")
}

func TestBadgerStore_RelayerSet(t *testing.T) {
	bs := newTestStore(t)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	active, err := bs.IsRelayer(addr)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, bs.AddRelayer(addr))
	active, err = bs.IsRelayer(addr)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, bs.RemoveRelayer(addr))
	active, err = bs.IsRelayer(addr)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestBadgerStore_ChainRegistry(t *testing.T) {
	bs := newTestStore(t)

	require.NoError(t, bs.AddChain("chain-a", 5))

	id, err := bs.GetChainID("chain-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	name, err := bs.GetChainName(5)
	require.NoError(t, err)
	assert.Equal(t, "chain-a", name)

	require.NoError(t, bs.RemoveChain("chain-a", 5))

	id, err = bs.GetChainID("chain-a")
	require.NoError(t, err)
	assert.Zero(t, id)

	name, err = bs.GetChainName(5)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestBadgerStore_Balances(t *testing.T) {
	bs := newTestStore(t)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	bal, err := bs.GetBalance(account, "WGAS")
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Zero(t, bal.Sign())

	amount := new(big.Int)
	amount.SetString("123456789012345678901234567890", 10)
	require.NoError(t, bs.SetBalance(account, "WGAS", amount))

	bal, err = bs.GetBalance(account, "WGAS")
	require.NoError(t, err)
	assert.Zero(t, bal.Cmp(amount))

	require.Error(t, bs.SetBalance(account, "WGAS", nil))
}

func TestBadgerStore_Nonces(t *testing.T) {
	bs := newTestStore(t)
	actor := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	nonce, err := bs.GetNonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	assert.Zero(t, nonce)

	require.NoError(t, bs.SetNonce(actor, types.BridgeDirectionIn, 7))

	nonce, err = bs.GetNonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	nonce, err = bs.GetNonce(actor, types.BridgeDirectionOut)
	require.NoError(t, err)
	assert.Zero(t, nonce)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs, err := NewBadgerStore(tmpDir, testLogger)
	require.NoError(t, err)

	var id types.CommandID
	id[0] = 0x42
	require.NoError(t, bs.MarkCommandExecuted(id))
	require.NoError(t, bs.AddToken("WGAS"))
	require.NoError(t, bs.Close())

	bs, err = NewBadgerStore(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bs.Close() }()

	executed, err := bs.IsCommandExecuted(id)
	require.NoError(t, err)
	assert.True(t, executed)

	supported, err := bs.IsTokenSupported("WGAS")
	require.NoError(t, err)
	assert.True(t, supported)
}

func TestBadgerStore_ClosedRejectsOperations(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bs, err := NewBadgerStore(t.TempDir(), testLogger)
	require.NoError(t, err)

	require.NoError(t, bs.Close())
	require.NoError(t, bs.Close()) // idempotent

	require.Error(t, bs.HealthCheck())
	var id types.CommandID
	_, err = bs.IsCommandExecuted(id)
	require.Error(t, err)
	require.Error(t, bs.AddToken("WGAS"))
}
