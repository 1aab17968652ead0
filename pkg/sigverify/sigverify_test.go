package sigverify

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/gateway-go/pkg/types"
)

func TestECDSAVerifier_RecoverSigner(t *testing.T) {
	verifier := NewECDSAVerifier()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("batch digest"))

	t.Run("Recovers the signing address", func(t *testing.T) {
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)

		signer, err := verifier.RecoverSigner(digest, sig)
		require.NoError(t, err)
		require.Equal(t, expected, signer)
	})

	t.Run("Accepts 27/28 recovery ids", func(t *testing.T) {
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		sig[64] += 27

		signer, err := verifier.RecoverSigner(digest, sig)
		require.NoError(t, err)
		require.Equal(t, expected, signer)
	})

	t.Run("Different digest recovers a different address", func(t *testing.T) {
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)

		other := crypto.Keccak256Hash([]byte("other digest"))
		signer, err := verifier.RecoverSigner(other, sig)
		require.NoError(t, err)
		require.NotEqual(t, expected, signer)
	})

	t.Run("Rejects wrong-length signature", func(t *testing.T) {
		_, err := verifier.RecoverSigner(digest, []byte{1, 2, 3})
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Rejects malformed signature encoding", func(t *testing.T) {
		garbage := make([]byte, 65)
		for i := range garbage {
			garbage[i] = 0xff
		}
		_, err := verifier.RecoverSigner(digest, garbage)
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Does not mutate the caller's signature", func(t *testing.T) {
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		sig[64] += 27
		before := sig[64]

		_, err = verifier.RecoverSigner(digest, sig)
		require.NoError(t, err)
		require.Equal(t, before, sig[64])
	})
}

func TestFixedVerifier(t *testing.T) {
	signer := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	verifier := &Fixed{Signer: signer}

	got, err := verifier.RecoverSigner(common.Hash{}, []byte{1})
	require.NoError(t, err)
	require.Equal(t, signer, got)

	_, err = verifier.RecoverSigner(common.Hash{}, nil)
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
