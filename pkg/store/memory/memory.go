// Package memory provides an in-memory GatewayStore for tests and local
// development. All data is lost when the process exits.
package memory

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// MemoryStore is an in-memory implementation of store.GatewayStore.
// Thread-safe via sync.RWMutex. Approval records are deep-copied on both
// write and read to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	executed  map[types.CommandID]bool
	approvals map[common.Hash]*types.ContractCallApproval
	relayers  map[common.Address]bool
	chainIDs  map[string]uint64
	chains    map[uint64]string
	tokens    map[string]bool
	balances  map[string]*big.Int
	nonces    map[string]uint64

	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executed:  make(map[types.CommandID]bool),
		approvals: make(map[common.Hash]*types.ContractCallApproval),
		relayers:  make(map[common.Address]bool),
		chainIDs:  make(map[string]uint64),
		chains:    make(map[uint64]string),
		tokens:    make(map[string]bool),
		balances:  make(map[string]*big.Int),
		nonces:    make(map[string]uint64),
	}
}

func balanceKey(account common.Address, symbol string) string {
	return account.Hex() + ":" + symbol
}

func nonceKey(actor common.Address, direction types.BridgeDirection) string {
	return actor.Hex() + ":" + string(direction)
}

// IsCommandExecuted reports whether a command id has executed
func (m *MemoryStore) IsCommandExecuted(id types.CommandID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("store is closed")
	}
	return m.executed[id], nil
}

// MarkCommandExecuted records a command id as executed
func (m *MemoryStore) MarkCommandExecuted(id types.CommandID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.executed[id] = true
	return nil
}

// SaveApproval persists an approval record
func (m *MemoryStore) SaveApproval(key common.Hash, approval *types.ContractCallApproval) error {
	if approval == nil {
		return fmt.Errorf("cannot save nil approval")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.approvals[key] = deepCopyApproval(approval)
	return nil
}

// GetApproval returns the approval for key, or nil if none exists
func (m *MemoryStore) GetApproval(key common.Hash) (*types.ContractCallApproval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}
	approval, ok := m.approvals[key]
	if !ok {
		return nil, nil
	}
	return deepCopyApproval(approval), nil
}

// AddRelayer adds an address to the relayer set
func (m *MemoryStore) AddRelayer(addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.relayers[addr] = true
	return nil
}

// RemoveRelayer removes an address from the relayer set
func (m *MemoryStore) RemoveRelayer(addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	delete(m.relayers, addr)
	return nil
}

// IsRelayer reports whether an address is in the relayer set
func (m *MemoryStore) IsRelayer(addr common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("store is closed")
	}
	return m.relayers[addr], nil
}

// AddChain registers a chain name <-> id pair
func (m *MemoryStore) AddChain(name string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.chainIDs[name] = id
	m.chains[id] = name
	return nil
}

// RemoveChain clears both directions of a chain mapping
func (m *MemoryStore) RemoveChain(name string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	delete(m.chainIDs, name)
	delete(m.chains, id)
	return nil
}

// GetChainID returns the numeric id for a chain name, 0 when unset
func (m *MemoryStore) GetChainID(name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, fmt.Errorf("store is closed")
	}
	return m.chainIDs[name], nil
}

// GetChainName returns the name for a chain id, "" when unset
func (m *MemoryStore) GetChainName(id uint64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", fmt.Errorf("store is closed")
	}
	return m.chains[id], nil
}

// AddToken adds a symbol to the supported set
func (m *MemoryStore) AddToken(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.tokens[symbol] = true
	return nil
}

// RemoveToken removes a symbol from the supported set
func (m *MemoryStore) RemoveToken(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	delete(m.tokens, symbol)
	return nil
}

// IsTokenSupported reports whether a symbol is supported
func (m *MemoryStore) IsTokenSupported(symbol string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("store is closed")
	}
	return m.tokens[symbol], nil
}

// GetBalance returns an account's balance, zero when absent
func (m *MemoryStore) GetBalance(account common.Address, symbol string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}
	bal, ok := m.balances[balanceKey(account, symbol)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

// SetBalance overwrites an account's balance
func (m *MemoryStore) SetBalance(account common.Address, symbol string, amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("cannot set nil balance")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.balances[balanceKey(account, symbol)] = new(big.Int).Set(amount)
	return nil
}

// GetNonce returns the current nonce for an actor and direction, 0 when unset
func (m *MemoryStore) GetNonce(actor common.Address, direction types.BridgeDirection) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, fmt.Errorf("store is closed")
	}
	return m.nonces[nonceKey(actor, direction)], nil
}

// SetNonce overwrites the nonce for an actor and direction
func (m *MemoryStore) SetNonce(actor common.Address, direction types.BridgeDirection, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	m.nonces[nonceKey(actor, direction)] = nonce
	return nil
}

// Close shuts down the store
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func deepCopyApproval(a *types.ContractCallApproval) *types.ContractCallApproval {
	if a == nil {
		return nil
	}
	payload := make([]byte, len(a.Payload))
	copy(payload, a.Payload)

	var amount *big.Int
	if a.MintAmount != nil {
		amount = new(big.Int).Set(a.MintAmount)
	}

	return &types.ContractCallApproval{
		CommandID:        a.CommandID,
		SourceChain:      a.SourceChain,
		SourceAddress:    a.SourceAddress,
		ContractAddress:  a.ContractAddress,
		PayloadHash:      a.PayloadHash,
		Payload:          payload,
		SourceTxHash:     a.SourceTxHash,
		SourceEventIndex: a.SourceEventIndex,
		Symbol:           a.Symbol,
		MintAmount:       amount,
	}
}
