package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/types"
)

// DeterministicKey returns a reproducible secp256k1 keypair for tests.
// seed must be non-zero.
func DeterministicKey(t *testing.T, seed byte) *ecdsa.PrivateKey {
	t.Helper()
	if seed == 0 {
		t.Fatal("seed must be non-zero")
	}
	keyBytes := make([]byte, 32)
	keyBytes[31] = seed
	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		t.Fatalf("failed to build test key: %v", err)
	}
	return key
}

// AddressOf returns the address of a private key's public half
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// SignBatch signs a command batch the way relayers do: over the
// eth-signed-message digest of the canonical batch encoding.
func SignBatch(t *testing.T, key *ecdsa.PrivateKey, id types.CommandID, commands []types.Command) []byte {
	t.Helper()
	input, err := command.EncodeBatch(id, commands)
	if err != nil {
		t.Fatalf("failed to encode batch: %v", err)
	}
	digest := command.SigningDigest(command.BatchHash(input))
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("failed to sign batch: %v", err)
	}
	return sig
}

// SignBridge signs a bridge operation for the given actor key
func SignBridge(t *testing.T, key *ecdsa.PrivateKey, direction types.BridgeDirection, actor common.Address, amount *big.Int, chainID, nonce uint64) []byte {
	t.Helper()
	digest, err := command.BridgeDigest(direction, actor, amount, chainID, nonce)
	if err != nil {
		t.Fatalf("failed to compute bridge digest: %v", err)
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("failed to sign bridge operation: %v", err)
	}
	return sig
}

// RandomCommandID returns a unique command id for tests
func RandomCommandID() types.CommandID {
	var id types.CommandID
	a := uuid.New()
	b := uuid.New()
	copy(id[:16], a[:])
	copy(id[16:], b[:])
	return id
}
