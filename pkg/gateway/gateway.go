// Package gateway implements the cross-chain command gateway engine:
// signature-gated batch execution, exactly-once command semantics,
// approve-then-deliver contract calls with failure isolation, and
// nonce-guarded token bridging.
package gateway

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/sigverify"
	"github.com/interop-labs/gateway-go/pkg/store"
	"github.com/interop-labs/gateway-go/pkg/types"
)

// Config holds the gateway's fixed identity
type Config struct {
	// Owner is the only address allowed to mutate the relayer, chain and
	// token registries.
	Owner common.Address

	// ChainID is the local chain's numeric identity. Bridge operations
	// signed for any other chain id are rejected.
	ChainID uint64

	// BridgeSymbol is the symbol of the token moved by BridgeIn/BridgeOut.
	BridgeSymbol string
}

// Gateway is the engine instance owning all protocol state. Every
// state-mutating entry point is serialized by a single writer lock, so the
// store never observes interleaved mutations. Delivery callbacks run after
// the lock is released, which is what lets destination applications call
// back into the engine from inside a callback.
type Gateway struct {
	cfg      Config
	store    store.GatewayStore
	verifier sigverify.Verifier
	logger   *zap.Logger

	// apps maps destination contract addresses to in-process applications
	// that receive delivery callbacks.
	apps map[common.Address]DestinationApp

	mu sync.RWMutex
}

// New creates a gateway engine over the given store and verifier
func New(cfg Config, st store.GatewayStore, verifier sigverify.Verifier, logger *zap.Logger) (*Gateway, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address cannot be zero")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("chain id cannot be zero")
	}
	if cfg.BridgeSymbol == "" {
		return nil, fmt.Errorf("bridge symbol cannot be empty")
	}
	if st == nil || verifier == nil {
		return nil, fmt.Errorf("store and verifier are required")
	}
	return &Gateway{
		cfg:      cfg,
		store:    st,
		verifier: verifier,
		logger:   logger,
		apps:     make(map[common.Address]DestinationApp),
	}, nil
}

// Owner returns the configured owner address
func (g *Gateway) Owner() common.Address {
	return g.cfg.Owner
}

// ChainID returns the local chain id
func (g *Gateway) ChainID() uint64 {
	return g.cfg.ChainID
}

// BridgeSymbol returns the bridged token's symbol
func (g *Gateway) BridgeSymbol() string {
	return g.cfg.BridgeSymbol
}

// RegisterApp wires an in-process destination application to a contract
// address. Delivery callbacks are attempted only for registered addresses.
func (g *Gateway) RegisterApp(addr common.Address, app DestinationApp) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("app address cannot be zero")
	}
	if app == nil {
		return fmt.Errorf("app cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.apps[addr] = app
	return nil
}

func (g *Gateway) requireOwner(caller common.Address) error {
	if caller != g.cfg.Owner {
		return types.Authorizationf("caller %s is not the owner", caller.Hex())
	}
	return nil
}

// AddRelayer adds a relayer identity. Owner only.
func (g *Gateway) AddRelayer(caller, relayer common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if relayer == (common.Address{}) {
		return types.Validationf("relayer address cannot be zero")
	}
	exists, err := g.store.IsRelayer(relayer)
	if err != nil {
		return errors.Wrap(err, "failed to check relayer")
	}
	if exists {
		return types.Validationf("relayer %s already registered", relayer.Hex())
	}
	if err := g.store.AddRelayer(relayer); err != nil {
		return errors.Wrap(err, "failed to add relayer")
	}
	g.logger.Sugar().Infow("Relayer added", "relayer", relayer.Hex())
	return nil
}

// RemoveRelayer removes a relayer identity. Owner only.
func (g *Gateway) RemoveRelayer(caller, relayer common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if relayer == (common.Address{}) {
		return types.Validationf("relayer address cannot be zero")
	}
	exists, err := g.store.IsRelayer(relayer)
	if err != nil {
		return errors.Wrap(err, "failed to check relayer")
	}
	if !exists {
		return types.Validationf("relayer %s not registered", relayer.Hex())
	}
	if err := g.store.RemoveRelayer(relayer); err != nil {
		return errors.Wrap(err, "failed to remove relayer")
	}
	g.logger.Sugar().Infow("Relayer removed", "relayer", relayer.Hex())
	return nil
}

// IsRelayer reports whether an address is an active relayer
func (g *Gateway) IsRelayer(addr common.Address) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.IsRelayer(addr)
}

// AddChain registers a chain name <-> id pair. Owner only.
func (g *Gateway) AddChain(caller common.Address, name string, id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if name == "" {
		return types.Validationf("chain name cannot be empty")
	}
	if id == 0 {
		return types.Validationf("chain id cannot be zero")
	}
	existingID, err := g.store.GetChainID(name)
	if err != nil {
		return errors.Wrap(err, "failed to check chain name")
	}
	if existingID != 0 {
		return types.Validationf("chain %q already registered", name)
	}
	existingName, err := g.store.GetChainName(id)
	if err != nil {
		return errors.Wrap(err, "failed to check chain id")
	}
	if existingName != "" {
		return types.Validationf("chain id %d already registered as %q", id, existingName)
	}
	if err := g.store.AddChain(name, id); err != nil {
		return errors.Wrap(err, "failed to add chain")
	}
	g.logger.Sugar().Infow("Chain registered", "name", name, "id", id)
	return nil
}

// RemoveChain clears a chain mapping in both directions. Owner only.
func (g *Gateway) RemoveChain(caller common.Address, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if name == "" {
		return types.Validationf("chain name cannot be empty")
	}
	id, err := g.store.GetChainID(name)
	if err != nil {
		return errors.Wrap(err, "failed to look up chain")
	}
	if id == 0 {
		return types.Validationf("chain %q not registered", name)
	}
	if err := g.store.RemoveChain(name, id); err != nil {
		return errors.Wrap(err, "failed to remove chain")
	}
	g.logger.Sugar().Infow("Chain removed", "name", name, "id", id)
	return nil
}

// GetChainID returns the numeric id for a chain name, 0 when unset
func (g *Gateway) GetChainID(name string) (uint64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.GetChainID(name)
}

// GetChainName returns the name for a chain id, "" when unset
func (g *Gateway) GetChainName(id uint64) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.GetChainName(id)
}

// AddToken adds a supported token symbol. Owner only.
func (g *Gateway) AddToken(caller common.Address, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if symbol == "" {
		return types.Validationf("token symbol cannot be empty")
	}
	supported, err := g.store.IsTokenSupported(symbol)
	if err != nil {
		return errors.Wrap(err, "failed to check token")
	}
	if supported {
		return types.Validationf("token %q already supported", symbol)
	}
	if err := g.store.AddToken(symbol); err != nil {
		return errors.Wrap(err, "failed to add token")
	}
	g.logger.Sugar().Infow("Token added", "symbol", symbol)
	return nil
}

// RemoveToken removes a supported token symbol. Owner only.
func (g *Gateway) RemoveToken(caller common.Address, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireOwner(caller); err != nil {
		return err
	}
	supported, err := g.store.IsTokenSupported(symbol)
	if err != nil {
		return errors.Wrap(err, "failed to check token")
	}
	if !supported {
		return types.Validationf("token %q not supported", symbol)
	}
	if err := g.store.RemoveToken(symbol); err != nil {
		return errors.Wrap(err, "failed to remove token")
	}
	g.logger.Sugar().Infow("Token removed", "symbol", symbol)
	return nil
}

// IsTokenSupported reports whether a token symbol is supported
func (g *Gateway) IsTokenSupported(symbol string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.IsTokenSupported(symbol)
}

// IsCommandExecuted reports whether a command id has executed
func (g *Gateway) IsCommandExecuted(id types.CommandID) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.IsCommandExecuted(id)
}

// BalanceOf returns an account's bridged-token balance
func (g *Gateway) BalanceOf(account common.Address, symbol string) (*big.Int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.GetBalance(account, symbol)
}

// Nonce returns an actor's current bridge nonce for a direction
func (g *Gateway) Nonce(actor common.Address, direction types.BridgeDirection) (uint64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.GetNonce(actor, direction)
}

// ValidateContractCall reports whether an approved contract call exists for
// the given coordinates and its stored payload hash matches. Destination
// applications use this to self-verify before trusting a delivered payload.
func (g *Gateway) ValidateContractCall(id types.CommandID, sourceChain, sourceAddress string, contractAddress common.Address, payloadHash common.Hash) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	key := command.ApprovalKey(id, sourceChain, sourceAddress, contractAddress, payloadHash)
	return g.validateApproval(id, key, payloadHash)
}

// ValidateContractCallAndMint is the mint-carrying variant of
// ValidateContractCall: it matches only approvals that minted exactly the
// given symbol and amount.
func (g *Gateway) ValidateContractCallAndMint(id types.CommandID, sourceChain, sourceAddress string, contractAddress common.Address, payloadHash common.Hash, symbol string, amount *big.Int) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if types.ZeroAmount(amount) {
		return false, nil
	}
	key := command.ApprovalKeyWithMint(id, sourceChain, sourceAddress, contractAddress, payloadHash, symbol, amount)
	return g.validateApproval(id, key, payloadHash)
}

func (g *Gateway) validateApproval(id types.CommandID, key common.Hash, payloadHash common.Hash) (bool, error) {
	executed, err := g.store.IsCommandExecuted(id)
	if err != nil {
		return false, errors.Wrap(err, "failed to check executed set")
	}
	if !executed {
		return false, nil
	}
	approval, err := g.store.GetApproval(key)
	if err != nil {
		return false, errors.Wrap(err, "failed to read approval")
	}
	if approval == nil {
		return false, nil
	}
	return approval.PayloadHash == payloadHash, nil
}

// ApprovedPayload returns the persisted approval record for the given call
// coordinates, or nil if none exists. This is the manual-retry surface: a
// destination application whose delivery callback failed can re-fetch the
// payload from here.
func (g *Gateway) ApprovedPayload(id types.CommandID, sourceChain, sourceAddress string, contractAddress common.Address, payloadHash common.Hash) (*types.ContractCallApproval, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	key := command.ApprovalKey(id, sourceChain, sourceAddress, contractAddress, payloadHash)
	return g.store.GetApproval(key)
}
