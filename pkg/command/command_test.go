package command

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/gateway-go/pkg/types"
)

func testCommandID(b byte) types.CommandID {
	var id types.CommandID
	id[0] = b
	return id
}

func TestBatchCodec(t *testing.T) {
	payload := []byte("hello destination")
	approve := &ApproveContractCallParams{
		SourceChain:      "chain-a",
		SourceAddress:    "0xsource",
		ContractAddress:  common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		PayloadHash:      crypto.Keccak256Hash(payload),
		Payload:          payload,
		SourceTxHash:     crypto.Keccak256Hash([]byte("tx")),
		SourceEventIndex: 7,
	}
	approveParams, err := EncodeApproveContractCall(approve)
	require.NoError(t, err)

	mintParams, err := EncodeTokenCommand(&TokenParams{
		Account: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Amount:  big.NewInt(100),
		Symbol:  "WGAS",
	})
	require.NoError(t, err)

	id := testCommandID(0xaa)
	commands := []types.Command{
		{Type: types.CommandApproveContractCall, Params: approveParams},
		{Type: types.CommandMintToken, Params: mintParams},
	}

	t.Run("Round trip", func(t *testing.T) {
		input, err := EncodeBatch(id, commands)
		require.NoError(t, err)

		gotID, gotCommands, err := DecodeBatch(input)
		require.NoError(t, err)
		require.Equal(t, id, gotID)
		require.Len(t, gotCommands, 2)
		require.Equal(t, types.CommandApproveContractCall, gotCommands[0].Type)
		require.Equal(t, types.CommandMintToken, gotCommands[1].Type)

		decoded, err := DecodeApproveContractCall(gotCommands[0].Params)
		require.NoError(t, err)
		require.Equal(t, approve.SourceChain, decoded.SourceChain)
		require.Equal(t, approve.ContractAddress, decoded.ContractAddress)
		require.Equal(t, approve.PayloadHash, decoded.PayloadHash)
		require.Equal(t, payload, decoded.Payload)
		require.Equal(t, uint64(7), decoded.SourceEventIndex)
	})

	t.Run("Encode rejects unknown command type", func(t *testing.T) {
		_, err := EncodeBatch(id, []types.Command{{Type: types.CommandType(99)}})
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Decode rejects garbage input", func(t *testing.T) {
		_, _, err := DecodeBatch([]byte("not an abi encoding"))
		var validationErr *types.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("Batch hash is input-sensitive", func(t *testing.T) {
		input, err := EncodeBatch(id, commands)
		require.NoError(t, err)
		other, err := EncodeBatch(testCommandID(0xbb), commands)
		require.NoError(t, err)
		require.NotEqual(t, BatchHash(input), BatchHash(other))
	})
}

func TestApproveWithMintCodec(t *testing.T) {
	payload := []byte("pay")
	p := &ApproveContractCallWithMintParams{
		ApproveContractCallParams: ApproveContractCallParams{
			SourceChain:     "chain-b",
			SourceAddress:   "0xorigin",
			ContractAddress: common.HexToAddress("0x00000000000000000000000000000000000000c2"),
			PayloadHash:     crypto.Keccak256Hash(payload),
			Payload:         payload,
		},
		Symbol: "WGAS",
		Amount: big.NewInt(42),
	}
	params, err := EncodeApproveContractCallWithMint(p)
	require.NoError(t, err)

	decoded, err := DecodeApproveContractCallWithMint(params)
	require.NoError(t, err)
	require.Equal(t, "WGAS", decoded.Symbol)
	require.Equal(t, int64(42), decoded.Amount.Int64())
	require.Equal(t, p.ContractAddress, decoded.ContractAddress)

	// plain-approve decoding of mint params must not silently succeed with
	// shifted fields
	_, err = DecodeApproveContractCall([]byte("garbage"))
	require.Error(t, err)
}

func TestBridgeProvenanceCodec(t *testing.T) {
	blob, err := EncodeBridgeProvenance(&BridgeProvenance{ChainID: 5, Nonce: 9})
	require.NoError(t, err)

	prov, err := DecodeBridgeProvenance(blob)
	require.NoError(t, err)
	require.Equal(t, uint64(5), prov.ChainID)
	require.Equal(t, uint64(9), prov.Nonce)

	_, err = DecodeBridgeProvenance([]byte{1, 2})
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestBridgeDigest(t *testing.T) {
	actor := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	amount := big.NewInt(10)

	base, err := BridgeDigest(types.BridgeDirectionIn, actor, amount, 1, 0)
	require.NoError(t, err)

	// every bound field must change the digest
	otherDirection, err := BridgeDigest(types.BridgeDirectionOut, actor, amount, 1, 0)
	require.NoError(t, err)
	require.NotEqual(t, base, otherDirection)

	otherNonce, err := BridgeDigest(types.BridgeDirectionIn, actor, amount, 1, 1)
	require.NoError(t, err)
	require.NotEqual(t, base, otherNonce)

	otherChain, err := BridgeDigest(types.BridgeDirectionIn, actor, amount, 2, 0)
	require.NoError(t, err)
	require.NotEqual(t, base, otherChain)
}

func TestApprovalKey(t *testing.T) {
	id := testCommandID(0x01)
	contract := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	hash := crypto.Keccak256Hash([]byte("p"))

	base := ApprovalKey(id, "chain-a", "0xsrc", contract, hash)
	require.NotEqual(t, base, ApprovalKey(testCommandID(0x02), "chain-a", "0xsrc", contract, hash))
	require.NotEqual(t, base, ApprovalKey(id, "chain-b", "0xsrc", contract, hash))
	require.NotEqual(t, base, ApprovalKeyWithMint(id, "chain-a", "0xsrc", contract, hash, "WGAS", big.NewInt(1)))

	// mint key binds symbol and amount
	mintKey := ApprovalKeyWithMint(id, "chain-a", "0xsrc", contract, hash, "WGAS", big.NewInt(1))
	require.NotEqual(t, mintKey, ApprovalKeyWithMint(id, "chain-a", "0xsrc", contract, hash, "WGAS", big.NewInt(2)))
	require.NotEqual(t, mintKey, ApprovalKeyWithMint(id, "chain-a", "0xsrc", contract, hash, "OTHER", big.NewInt(1)))
}
