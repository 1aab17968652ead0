package memory

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/gateway-go/pkg/types"
)

func TestExecutedSet(t *testing.T) {
	st := NewMemoryStore()
	var id types.CommandID
	id[0] = 0x01

	executed, err := st.IsCommandExecuted(id)
	require.NoError(t, err)
	require.False(t, executed)

	require.NoError(t, st.MarkCommandExecuted(id))

	executed, err = st.IsCommandExecuted(id)
	require.NoError(t, err)
	require.True(t, executed)

	// other ids stay untouched
	var other types.CommandID
	other[0] = 0x02
	executed, err = st.IsCommandExecuted(other)
	require.NoError(t, err)
	require.False(t, executed)
}

func TestApprovals(t *testing.T) {
	st := NewMemoryStore()
	key := crypto.Keccak256Hash([]byte("approval key"))
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

	t.Run("Absent key returns nil without error", func(t *testing.T) {
		got, err := st.GetApproval(key)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("Round trip preserves all fields", func(t *testing.T) {
		require.NoError(t, st.SaveApproval(key, approval))

		got, err := st.GetApproval(key)
		require.NoError(t, err)
		require.Equal(t, approval.SourceChain, got.SourceChain)
		require.Equal(t, approval.ContractAddress, got.ContractAddress)
		require.Equal(t, approval.PayloadHash, got.PayloadHash)
		require.Equal(t, payload, got.Payload)
		require.Equal(t, "WGAS", got.Symbol)
		require.Equal(t, int64(25), got.MintAmount.Int64())
	})

	t.Run("Reads are isolated from caller mutation", func(t *testing.T) {
		got, err := st.GetApproval(key)
		require.NoError(t, err)
		got.Payload[0] = 0xff
		got.MintAmount.SetInt64(999)

		again, err := st.GetApproval(key)
		require.NoError(t, err)
		require.Equal(t, payload, again.Payload)
		require.Equal(t, int64(25), again.MintAmount.Int64())
	})

	t.Run("Nil approval rejected", func(t *testing.T) {
		require.Error(t, st.SaveApproval(key, nil))
	})
}

func TestRelayerSet(t *testing.T) {
	st := NewMemoryStore()
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	active, err := st.IsRelayer(addr)
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, st.AddRelayer(addr))
	active, err = st.IsRelayer(addr)
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, st.RemoveRelayer(addr))
	active, err = st.IsRelayer(addr)
	require.NoError(t, err)
	require.False(t, active)
}

func TestChainRegistry(t *testing.T) {
	st := NewMemoryStore()

	id, err := st.GetChainID("chain-a")
	require.NoError(t, err)
	require.Zero(t, id)
	name, err := st.GetChainName(5)
	require.NoError(t, err)
	require.Empty(t, name)

	require.NoError(t, st.AddChain("chain-a", 5))

	id, err = st.GetChainID("chain-a")
	require.NoError(t, err)
	require.Equal(t, uint64(5), id)
	name, err = st.GetChainName(5)
	require.NoError(t, err)
	require.Equal(t, "chain-a", name)

	require.NoError(t, st.RemoveChain("chain-a", 5))

	id, err = st.GetChainID("chain-a")
	require.NoError(t, err)
	require.Zero(t, id)
	name, err = st.GetChainName(5)
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestTokenSet(t *testing.T) {
	st := NewMemoryStore()

	supported, err := st.IsTokenSupported("WGAS")
	require.NoError(t, err)
	require.False(t, supported)

	require.NoError(t, st.AddToken("WGAS"))
	supported, err = st.IsTokenSupported("WGAS")
	require.NoError(t, err)
	require.True(t, supported)

	require.NoError(t, st.RemoveToken("WGAS"))
	supported, err = st.IsTokenSupported("WGAS")
	require.NoError(t, err)
	require.False(t, supported)
}

func TestBalances(t *testing.T) {
	st := NewMemoryStore()
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	t.Run("Defaults to zero, never nil", func(t *testing.T) {
		bal, err := st.GetBalance(account, "WGAS")
		require.NoError(t, err)
		require.NotNil(t, bal)
		require.Zero(t, bal.Sign())
	})

	t.Run("Round trip", func(t *testing.T) {
		require.NoError(t, st.SetBalance(account, "WGAS", big.NewInt(123)))
		bal, err := st.GetBalance(account, "WGAS")
		require.NoError(t, err)
		require.Equal(t, int64(123), bal.Int64())
	})

	t.Run("Keyed per symbol", func(t *testing.T) {
		bal, err := st.GetBalance(account, "OTHER")
		require.NoError(t, err)
		require.Zero(t, bal.Sign())
	})

	t.Run("Stored value isolated from caller mutation", func(t *testing.T) {
		bal, err := st.GetBalance(account, "WGAS")
		require.NoError(t, err)
		bal.SetInt64(999)

		again, err := st.GetBalance(account, "WGAS")
		require.NoError(t, err)
		require.Equal(t, int64(123), again.Int64())
	})

	t.Run("Nil balance rejected", func(t *testing.T) {
		require.Error(t, st.SetBalance(account, "WGAS", nil))
	})
}

func TestNonces(t *testing.T) {
	st := NewMemoryStore()
	actor := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	nonce, err := st.GetNonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	require.Zero(t, nonce)

	require.NoError(t, st.SetNonce(actor, types.BridgeDirectionIn, 3))

	nonce, err = st.GetNonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)

	// directions are keyed independently
	nonce, err = st.GetNonce(actor, types.BridgeDirectionOut)
	require.NoError(t, err)
	require.Zero(t, nonce)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.HealthCheck())
	require.NoError(t, st.Close())

	require.Error(t, st.HealthCheck())

	var id types.CommandID
	_, err := st.IsCommandExecuted(id)
	require.Error(t, err)
	require.Error(t, st.MarkCommandExecuted(id))
	require.Error(t, st.AddRelayer(common.Address{}))
	require.Error(t, st.AddToken("WGAS"))
	_, err = st.GetBalance(common.Address{}, "WGAS")
	require.Error(t, err)
}
