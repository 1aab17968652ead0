package gateway

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/testutil"
	"github.com/interop-labs/gateway-go/pkg/types"
)

func provenanceBlob(t *testing.T, chainID, nonce uint64) []byte {
	t.Helper()
	blob, err := command.EncodeBridgeProvenance(&command.BridgeProvenance{ChainID: chainID, Nonce: nonce})
	require.NoError(t, err)
	return blob
}

func bridgeIn(t *testing.T, f *fixture, key *ecdsa.PrivateKey, amount int64, nonce uint64) error {
	t.Helper()
	actor := testutil.AddressOf(key)
	amt := big.NewInt(amount)
	sig := testutil.SignBridge(t, key, types.BridgeDirectionIn, actor, amt, testChainID, nonce)
	return f.gw.BridgeIn(actor, amt, provenanceBlob(t, testChainID, nonce), sig)
}

func bridgeOut(t *testing.T, f *fixture, key *ecdsa.PrivateKey, amount int64, nonce uint64) error {
	t.Helper()
	actor := testutil.AddressOf(key)
	amt := big.NewInt(amount)
	sig := testutil.SignBridge(t, key, types.BridgeDirectionOut, actor, amt, testChainID, nonce)
	return f.gw.BridgeOut(actor, amt, provenanceBlob(t, testChainID, nonce), sig)
}

func TestBridgeIn(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	require.NoError(t, bridgeIn(t, f, key, 100, 0))

	bal, err := f.gw.BalanceOf(actor, testSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())

	nonce, err := f.gw.Nonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestBridge_NonceReplayRejected(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	require.NoError(t, bridgeIn(t, f, key, 100, 0))

	// replaying nonce 0 fails and leaves everything unchanged
	err := bridgeIn(t, f, key, 100, 0)
	var replayErr *types.ReplayError
	require.ErrorAs(t, err, &replayErr)

	bal, err := f.gw.BalanceOf(actor, testSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())

	nonce, err := f.gw.Nonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	// skipping ahead is also a replay-class failure
	err = bridgeIn(t, f, key, 100, 5)
	require.ErrorAs(t, err, &replayErr)

	// the correct next nonce succeeds
	require.NoError(t, bridgeIn(t, f, key, 50, 1))
	bal, err = f.gw.BalanceOf(actor, testSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(150), bal.Int64())
}

func TestBridge_DirectionsHaveIndependentNonces(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	require.NoError(t, bridgeIn(t, f, key, 100, 0))
	require.NoError(t, bridgeIn(t, f, key, 100, 1))

	// the out direction starts at nonce 0 regardless of in activity
	require.NoError(t, bridgeOut(t, f, key, 30, 0))

	in, err := f.gw.Nonce(actor, types.BridgeDirectionIn)
	require.NoError(t, err)
	require.Equal(t, uint64(2), in)

	out, err := f.gw.Nonce(actor, types.BridgeDirectionOut)
	require.NoError(t, err)
	require.Equal(t, uint64(1), out)

	bal, err := f.gw.BalanceOf(actor, testSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(170), bal.Int64())
}

func TestBridgeOut_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	err := bridgeOut(t, f, key, 10, 0)
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// the failed attempt consumed no nonce
	nonce, err := f.gw.Nonce(actor, types.BridgeDirectionOut)
	require.NoError(t, err)
	require.Zero(t, nonce)
}

func TestBridge_SignerMustMatchActor(t *testing.T) {
	f := newFixture(t)
	actorKey := testutil.DeterministicKey(t, 5)
	otherKey := testutil.DeterministicKey(t, 6)
	actor := testutil.AddressOf(actorKey)

	amt := big.NewInt(100)
	sig := testutil.SignBridge(t, otherKey, types.BridgeDirectionIn, actor, amt, testChainID, 0)
	err := f.gw.BridgeIn(actor, amt, provenanceBlob(t, testChainID, 0), sig)
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestBridge_WrongChainRejected(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	amt := big.NewInt(100)
	wrongChain := testChainID + 1
	sig := testutil.SignBridge(t, key, types.BridgeDirectionIn, actor, amt, wrongChain, 0)
	err := f.gw.BridgeIn(actor, amt, provenanceBlob(t, wrongChain, 0), sig)
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestBridge_InputValidation(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)
	var validationErr *types.ValidationError

	t.Run("Zero actor", func(t *testing.T) {
		err := f.gw.BridgeIn(common.Address{}, big.NewInt(1), provenanceBlob(t, testChainID, 0), []byte{1})
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Zero amount", func(t *testing.T) {
		err := f.gw.BridgeIn(actor, big.NewInt(0), provenanceBlob(t, testChainID, 0), []byte{1})
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Nil amount", func(t *testing.T) {
		err := f.gw.BridgeIn(actor, nil, provenanceBlob(t, testChainID, 0), []byte{1})
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Negative amount", func(t *testing.T) {
		err := f.gw.BridgeIn(actor, big.NewInt(-5), provenanceBlob(t, testChainID, 0), []byte{1})
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Malformed provenance", func(t *testing.T) {
		amt := big.NewInt(100)
		sig := testutil.SignBridge(t, key, types.BridgeDirectionIn, actor, amt, testChainID, 0)
		err := f.gw.BridgeIn(actor, amt, []byte{1, 2, 3}, sig)
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Unsupported bridge symbol", func(t *testing.T) {
		require.NoError(t, f.gw.RemoveToken(f.owner, testSymbol))
		err := bridgeIn(t, f, key, 100, 0)
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestBridge_SignatureIsSingleUse(t *testing.T) {
	f := newFixture(t)
	key := testutil.DeterministicKey(t, 5)
	actor := testutil.AddressOf(key)

	amt := big.NewInt(100)
	sig := testutil.SignBridge(t, key, types.BridgeDirectionIn, actor, amt, testChainID, 0)
	require.NoError(t, f.gw.BridgeIn(actor, amt, provenanceBlob(t, testChainID, 0), sig))

	// the same signature cannot authorize the next nonce: the digest binds
	// the nonce, so recovery yields a different address
	err := f.gw.BridgeIn(actor, amt, provenanceBlob(t, testChainID, 1), sig)
	require.Error(t, err)

	bal, err := f.gw.BalanceOf(actor, testSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())
}
