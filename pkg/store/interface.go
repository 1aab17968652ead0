package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// GatewayStore is the persistence boundary for all gateway state.
// All implementations must be safe for concurrent use; the engine
// additionally serializes its own state-mutating entry points, so stores
// never see interleaved mutations from a single engine.
//
// The store is deliberately dumb: protocol invariants (write-once
// approvals, append-only executed set, owner gating, nonce ordering) are
// enforced by the engine, which reads before it writes. Store errors mean
// storage failure, not protocol violation.
type GatewayStore interface {
	// Executed command set (append-only, no deletion path)

	// IsCommandExecuted reports whether a command id has ever executed.
	IsCommandExecuted(id types.CommandID) (bool, error)

	// MarkCommandExecuted records a command id as executed. Idempotent.
	MarkCommandExecuted(id types.CommandID) error

	// Contract-call approvals, keyed by the derived approval key

	// SaveApproval persists an approval record.
	SaveApproval(key common.Hash, approval *types.ContractCallApproval) error

	// GetApproval returns nil if no approval exists for the key.
	GetApproval(key common.Hash) (*types.ContractCallApproval, error)

	// Relayer set

	AddRelayer(addr common.Address) error
	RemoveRelayer(addr common.Address) error
	IsRelayer(addr common.Address) (bool, error)

	// Chain registry (bidirectional name <-> id)

	AddChain(name string, id uint64) error
	RemoveChain(name string, id uint64) error
	// GetChainID returns 0 when the name is not registered.
	GetChainID(name string) (uint64, error)
	// GetChainName returns "" when the id is not registered.
	GetChainName(id uint64) (string, error)

	// Supported token symbols

	AddToken(symbol string) error
	RemoveToken(symbol string) error
	IsTokenSupported(symbol string) (bool, error)

	// Bridged-token balances

	// GetBalance never returns nil; an absent balance is zero.
	GetBalance(account common.Address, symbol string) (*big.Int, error)
	SetBalance(account common.Address, symbol string, amount *big.Int) error

	// Bridge nonces, per actor and direction

	// GetNonce returns 0 for an actor that has never bridged.
	GetNonce(actor common.Address, direction types.BridgeDirection) (uint64, error)
	SetNonce(actor common.Address, direction types.BridgeDirection, nonce uint64) error

	// Lifecycle

	// Close cleanly shuts down the store. Idempotent.
	Close() error

	// HealthCheck verifies the store is operational.
	HealthCheck() error
}
