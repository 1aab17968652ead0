package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CommandID is the caller-supplied unique identifier for one command batch.
// Once a batch with a given CommandID has executed, no batch carrying the
// same CommandID will ever execute again.
type CommandID [32]byte

// Hex returns the 0x-prefixed hex encoding of the command ID
func (c CommandID) Hex() string {
	return hexutil.Encode(c[:])
}

// MarshalJSON encodes the command ID as a 0x-prefixed hex string
func (c CommandID) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", c.Hex())), nil
}

// UnmarshalJSON decodes a 0x-prefixed hex string into the command ID
func (c *CommandID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := CommandIDFromHex(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// CommandIDFromHex parses a 0x-prefixed 32-byte hex string into a CommandID
func CommandIDFromHex(s string) (CommandID, error) {
	var id CommandID
	b, err := hexutil.Decode(s)
	if err != nil {
		return id, fmt.Errorf("invalid command id %q: %w", s, err)
	}
	if len(b) != 32 {
		return id, fmt.Errorf("command id must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// CommandType tags one unit of work within a batch. The set is closed:
// decoding rejects any tag outside this enum.
type CommandType uint8

const (
	CommandApproveContractCall CommandType = iota
	CommandApproveContractCallWithMint
	CommandMintToken
	CommandBurnToken
)

func (t CommandType) String() string {
	switch t {
	case CommandApproveContractCall:
		return "approveContractCall"
	case CommandApproveContractCallWithMint:
		return "approveContractCallWithMint"
	case CommandMintToken:
		return "mintToken"
	case CommandBurnToken:
		return "burnToken"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a member of the closed command set
func (t CommandType) Valid() bool {
	return t <= CommandBurnToken
}

// Command is one tagged unit of work within a batch. Params carries the
// ABI-encoded, type-specific parameters.
type Command struct {
	Type   CommandType
	Params []byte
}

// ContractCallApproval is the persisted record binding a command to an
// approved cross-chain contract call. Written exactly once, at approval
// time, and never overwritten.
type ContractCallApproval struct {
	CommandID        CommandID      `json:"commandId"`
	SourceChain      string         `json:"sourceChain"`
	SourceAddress    string         `json:"sourceAddress"`
	ContractAddress  common.Address `json:"contractAddress"`
	PayloadHash      common.Hash    `json:"payloadHash"`
	Payload          []byte         `json:"payload"`
	SourceTxHash     common.Hash    `json:"sourceTxHash"`
	SourceEventIndex uint64         `json:"sourceEventIndex"`

	// Symbol and MintAmount are set only for approveContractCallWithMint
	// approvals.
	Symbol     string   `json:"symbol,omitempty"`
	MintAmount *big.Int `json:"mintAmount,omitempty"`
}

// BridgeDirection distinguishes the two independent nonce sequences each
// actor holds: one for bridging in (mint) and one for bridging out (burn).
type BridgeDirection string

const (
	BridgeDirectionIn  BridgeDirection = "in"
	BridgeDirectionOut BridgeDirection = "out"
)

// DeliveryOutcome records what happened to one command's downstream
// delivery. Err is set only when a delivery was attempted and absorbed at
// the isolation boundary; it never fails the enclosing batch.
type DeliveryOutcome struct {
	Index     int         `json:"index"`
	Type      CommandType `json:"-"`
	TypeName  string      `json:"type"`
	Attempted bool        `json:"attempted"`
	Delivered bool        `json:"delivered"`
	Err       string      `json:"error,omitempty"`
}

// ExecuteReceipt is the completion signal for a processed batch. It is
// produced once all commands have been dispatched, regardless of absorbed
// delivery failures.
type ExecuteReceipt struct {
	CommandID CommandID         `json:"commandId"`
	Outcomes  []DeliveryOutcome `json:"outcomes"`
}

// ZeroAmount reports whether amount is nil or non-positive
func ZeroAmount(amount *big.Int) bool {
	return amount == nil || amount.Sign() <= 0
}
