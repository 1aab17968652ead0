package gateway

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/types"
)

// BridgeIn mints the bridged token to recipient. The provenance blob states
// the chain id and nonce the recipient signed over; the signature must
// recover to the recipient itself.
func (g *Gateway) BridgeIn(recipient common.Address, amount *big.Int, provenance, signature []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bridge(types.BridgeDirectionIn, recipient, amount, provenance, signature)
}

// BridgeOut burns the bridged token from owner, with the same provenance
// and signature discipline as BridgeIn. The nonce sequences of the two
// directions are independent.
func (g *Gateway) BridgeOut(owner common.Address, amount *big.Int, provenance, signature []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bridge(types.BridgeDirectionOut, owner, amount, provenance, signature)
}

// bridge runs the strict check-then-mutate sequence: nothing mutates until
// every validation has passed, and then the nonce advances by exactly one
// before the balance moves.
func (g *Gateway) bridge(direction types.BridgeDirection, actor common.Address, amount *big.Int, provenance, signature []byte) error {
	if actor == (common.Address{}) {
		return types.Validationf("actor address cannot be zero")
	}
	if types.ZeroAmount(amount) {
		return types.Validationf("amount must be positive")
	}
	supported, err := g.store.IsTokenSupported(g.cfg.BridgeSymbol)
	if err != nil {
		return errors.Wrap(err, "failed to check token support")
	}
	if !supported {
		return types.Validationf("unsupported token symbol %q", g.cfg.BridgeSymbol)
	}

	prov, err := command.DecodeBridgeProvenance(provenance)
	if err != nil {
		return err
	}

	digest, err := command.BridgeDigest(direction, actor, amount, prov.ChainID, prov.Nonce)
	if err != nil {
		return errors.Wrap(err, "failed to compute bridge digest")
	}
	signer, err := g.verifier.RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if signer != actor {
		return types.Validationf("signer %s does not match actor %s", signer.Hex(), actor.Hex())
	}

	if prov.ChainID != g.cfg.ChainID {
		return types.Validationf("provenance chain id %d does not match local chain %d", prov.ChainID, g.cfg.ChainID)
	}

	current, err := g.store.GetNonce(actor, direction)
	if err != nil {
		return errors.Wrap(err, "failed to read nonce")
	}
	if current != prov.Nonce {
		return types.Replayf("nonce mismatch for %s/%s: have %d, got %d", actor.Hex(), direction, current, prov.Nonce)
	}

	delta := amount
	if direction == types.BridgeDirectionOut {
		bal, err := g.store.GetBalance(actor, g.cfg.BridgeSymbol)
		if err != nil {
			return errors.Wrap(err, "failed to read balance")
		}
		if bal.Cmp(amount) < 0 {
			return types.Validationf("insufficient balance: have %s, need %s", bal.String(), amount.String())
		}
		delta = new(big.Int).Neg(amount)
	}

	// All checks passed; mutate. A storage fault between the two writes
	// leaves the nonce advanced without the balance move: the stores are
	// per-record, so the operation is not transactional across them.
	if err := g.store.SetNonce(actor, direction, current+1); err != nil {
		return errors.Wrap(err, "failed to advance nonce")
	}
	if err := g.adjustBalance(actor, g.cfg.BridgeSymbol, delta); err != nil {
		return err
	}

	g.logger.Sugar().Infow("Bridge operation completed",
		"direction", direction,
		"actor", actor.Hex(),
		"amount", amount.String(),
		"nonce", current,
	)
	return nil
}
