// Package command defines the canonical wire encoding for gateway command
// batches and the per-command parameter codecs. All encodings are standard
// ABI so batches produced by external relayer tooling decode unchanged.
package command

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/interop-labs/gateway-go/pkg/types"
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	typeBytes32  = mustNewType("bytes32")
	typeUint8Arr = mustNewType("uint8[]")
	typeBytesArr = mustNewType("bytes[]")
	typeString   = mustNewType("string")
	typeAddress  = mustNewType("address")
	typeBytes    = mustNewType("bytes")
	typeUint256  = mustNewType("uint256")
	typeUint64   = mustNewType("uint64")

	// batch: (bytes32 commandId, uint8[] commandTypes, bytes[] commandParams)
	batchArgs = abi.Arguments{
		{Type: typeBytes32},
		{Type: typeUint8Arr},
		{Type: typeBytesArr},
	}

	// approveContractCall:
	// (string sourceChain, string sourceAddress, address contractAddress,
	//  bytes32 payloadHash, bytes payload, bytes32 sourceTxHash,
	//  uint256 sourceEventIndex)
	approveArgs = abi.Arguments{
		{Type: typeString},
		{Type: typeString},
		{Type: typeAddress},
		{Type: typeBytes32},
		{Type: typeBytes},
		{Type: typeBytes32},
		{Type: typeUint256},
	}

	// approveContractCallWithMint: approveContractCall plus
	// (string symbol, uint256 amount)
	approveMintArgs = abi.Arguments{
		{Type: typeString},
		{Type: typeString},
		{Type: typeAddress},
		{Type: typeBytes32},
		{Type: typeBytes},
		{Type: typeBytes32},
		{Type: typeUint256},
		{Type: typeString},
		{Type: typeUint256},
	}

	// mintToken / burnToken: (address account, uint256 amount, string symbol)
	tokenArgs = abi.Arguments{
		{Type: typeAddress},
		{Type: typeUint256},
		{Type: typeString},
	}

	// bridge provenance: (uint64 chainId, uint64 nonce)
	provenanceArgs = abi.Arguments{
		{Type: typeUint64},
		{Type: typeUint64},
	}

	// bridge signing payload:
	// (string direction, address actor, uint256 amount, uint64 chainId, uint64 nonce)
	bridgeDigestArgs = abi.Arguments{
		{Type: typeString},
		{Type: typeAddress},
		{Type: typeUint256},
		{Type: typeUint64},
		{Type: typeUint64},
	}
)

// EncodeBatch produces the canonical encoding of a command batch. This is
// the exact byte string relayers sign over (after hashing, see BatchHash
// and SigningDigest).
func EncodeBatch(id types.CommandID, commands []types.Command) ([]byte, error) {
	tags := make([]uint8, len(commands))
	params := make([][]byte, len(commands))
	for i, cmd := range commands {
		if !cmd.Type.Valid() {
			return nil, types.Validationf("unknown command type %d at index %d", uint8(cmd.Type), i)
		}
		tags[i] = uint8(cmd.Type)
		params[i] = cmd.Params
	}
	return batchArgs.Pack([32]byte(id), tags, params)
}

// DecodeBatch parses a canonical batch encoding. Unknown command tags fail
// with a ValidationError so the closed command set is enforced at the wire.
func DecodeBatch(input []byte) (types.CommandID, []types.Command, error) {
	var id types.CommandID
	vals, err := batchArgs.Unpack(input)
	if err != nil {
		return id, nil, types.Validationf("malformed batch encoding: %v", err)
	}
	rawID := vals[0].([32]byte)
	tags := vals[1].([]uint8)
	params := vals[2].([][]byte)
	if len(tags) != len(params) {
		return id, nil, types.Validationf("batch has %d tags but %d param blobs", len(tags), len(params))
	}
	copy(id[:], rawID[:])

	commands := make([]types.Command, len(tags))
	for i, tag := range tags {
		t := types.CommandType(tag)
		if !t.Valid() {
			return id, nil, types.Validationf("unknown command type %d at index %d", tag, i)
		}
		commands[i] = types.Command{Type: t, Params: params[i]}
	}
	return id, commands, nil
}

// BatchHash is the canonical hash relayer signatures commit to
func BatchHash(input []byte) common.Hash {
	return crypto.Keccak256Hash(input)
}

// SigningDigest applies the Ethereum signed-message prefix to a batch hash.
// Signatures are always verified against this digest, never the raw hash.
func SigningDigest(hash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), hash.Bytes())
}

// ApproveContractCallParams are the decoded parameters of an
// approveContractCall command
type ApproveContractCallParams struct {
	SourceChain      string
	SourceAddress    string
	ContractAddress  common.Address
	PayloadHash      common.Hash
	Payload          []byte
	SourceTxHash     common.Hash
	SourceEventIndex uint64
}

// ApproveContractCallWithMintParams extend ApproveContractCallParams with
// the token minted to the destination contract before delivery
type ApproveContractCallWithMintParams struct {
	ApproveContractCallParams
	Symbol string
	Amount *big.Int
}

// TokenParams are the decoded parameters of a mintToken or burnToken command
type TokenParams struct {
	Account common.Address
	Amount  *big.Int
	Symbol  string
}

// EncodeApproveContractCall packs approveContractCall parameters
func EncodeApproveContractCall(p *ApproveContractCallParams) ([]byte, error) {
	return approveArgs.Pack(
		p.SourceChain,
		p.SourceAddress,
		p.ContractAddress,
		[32]byte(p.PayloadHash),
		p.Payload,
		[32]byte(p.SourceTxHash),
		new(big.Int).SetUint64(p.SourceEventIndex),
	)
}

// DecodeApproveContractCall unpacks approveContractCall parameters
func DecodeApproveContractCall(params []byte) (*ApproveContractCallParams, error) {
	vals, err := approveArgs.Unpack(params)
	if err != nil {
		return nil, types.Validationf("malformed approveContractCall params: %v", err)
	}
	return &ApproveContractCallParams{
		SourceChain:      vals[0].(string),
		SourceAddress:    vals[1].(string),
		ContractAddress:  vals[2].(common.Address),
		PayloadHash:      common.Hash(vals[3].([32]byte)),
		Payload:          vals[4].([]byte),
		SourceTxHash:     common.Hash(vals[5].([32]byte)),
		SourceEventIndex: vals[6].(*big.Int).Uint64(),
	}, nil
}

// EncodeApproveContractCallWithMint packs approveContractCallWithMint parameters
func EncodeApproveContractCallWithMint(p *ApproveContractCallWithMintParams) ([]byte, error) {
	return approveMintArgs.Pack(
		p.SourceChain,
		p.SourceAddress,
		p.ContractAddress,
		[32]byte(p.PayloadHash),
		p.Payload,
		[32]byte(p.SourceTxHash),
		new(big.Int).SetUint64(p.SourceEventIndex),
		p.Symbol,
		p.Amount,
	)
}

// DecodeApproveContractCallWithMint unpacks approveContractCallWithMint parameters
func DecodeApproveContractCallWithMint(params []byte) (*ApproveContractCallWithMintParams, error) {
	vals, err := approveMintArgs.Unpack(params)
	if err != nil {
		return nil, types.Validationf("malformed approveContractCallWithMint params: %v", err)
	}
	return &ApproveContractCallWithMintParams{
		ApproveContractCallParams: ApproveContractCallParams{
			SourceChain:      vals[0].(string),
			SourceAddress:    vals[1].(string),
			ContractAddress:  vals[2].(common.Address),
			PayloadHash:      common.Hash(vals[3].([32]byte)),
			Payload:          vals[4].([]byte),
			SourceTxHash:     common.Hash(vals[5].([32]byte)),
			SourceEventIndex: vals[6].(*big.Int).Uint64(),
		},
		Symbol: vals[7].(string),
		Amount: vals[8].(*big.Int),
	}, nil
}

// EncodeTokenCommand packs mintToken/burnToken parameters
func EncodeTokenCommand(p *TokenParams) ([]byte, error) {
	return tokenArgs.Pack(p.Account, p.Amount, p.Symbol)
}

// DecodeTokenCommand unpacks mintToken/burnToken parameters
func DecodeTokenCommand(params []byte) (*TokenParams, error) {
	vals, err := tokenArgs.Unpack(params)
	if err != nil {
		return nil, types.Validationf("malformed token command params: %v", err)
	}
	return &TokenParams{
		Account: vals[0].(common.Address),
		Amount:  vals[1].(*big.Int),
		Symbol:  vals[2].(string),
	}, nil
}

// BridgeProvenance is the decoded provenance blob of a bridge operation
type BridgeProvenance struct {
	ChainID uint64
	Nonce   uint64
}

// EncodeBridgeProvenance packs a bridge provenance blob
func EncodeBridgeProvenance(p *BridgeProvenance) ([]byte, error) {
	return provenanceArgs.Pack(p.ChainID, p.Nonce)
}

// DecodeBridgeProvenance unpacks a bridge provenance blob
func DecodeBridgeProvenance(provenance []byte) (*BridgeProvenance, error) {
	vals, err := provenanceArgs.Unpack(provenance)
	if err != nil {
		return nil, types.Validationf("malformed provenance: %v", err)
	}
	return &BridgeProvenance{
		ChainID: vals[0].(uint64),
		Nonce:   vals[1].(uint64),
	}, nil
}

// BridgeDigest computes the digest an actor signs to authorize one bridge
// operation. Binding the direction, actor, amount, chain id and nonce into
// the digest is what makes a signature single-use and single-chain.
func BridgeDigest(direction types.BridgeDirection, actor common.Address, amount *big.Int, chainID, nonce uint64) (common.Hash, error) {
	packed, err := bridgeDigestArgs.Pack(string(direction), actor, amount, chainID, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	return SigningDigest(crypto.Keccak256Hash(packed)), nil
}

// ApprovalKey derives the storage key for one contract-call approval. Two
// approvals in the same batch land on distinct keys as long as any of the
// call coordinates differ.
func ApprovalKey(id types.CommandID, sourceChain, sourceAddress string, contractAddress common.Address, payloadHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		id[:],
		[]byte(sourceChain),
		[]byte(sourceAddress),
		contractAddress.Bytes(),
		payloadHash.Bytes(),
	)
}

// ApprovalKeyWithMint derives the storage key for an approval carrying a
// token mint. The symbol and amount are part of the key so the mint variant
// of validation only matches approvals minted with those exact values.
func ApprovalKeyWithMint(id types.CommandID, sourceChain, sourceAddress string, contractAddress common.Address, payloadHash common.Hash, symbol string, amount *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		id[:],
		[]byte(sourceChain),
		[]byte(sourceAddress),
		contractAddress.Bytes(),
		payloadHash.Bytes(),
		[]byte(symbol),
		common.BigToHash(amount).Bytes(),
	)
}
