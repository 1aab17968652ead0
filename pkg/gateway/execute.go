package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/types"
)

// decodedCommand is one batch entry after parameter decoding. Exactly one
// of the payload pointers is set, selected by typ.
type decodedCommand struct {
	typ         types.CommandType
	approve     *command.ApproveContractCallParams
	approveMint *command.ApproveContractCallWithMintParams
	token       *command.TokenParams
}

// pendingDelivery is one approval's delivery callback, captured under the
// engine lock during commit and run after the lock is released.
type pendingDelivery struct {
	index int
	addr  common.Address
	app   DestinationApp
	call  func(DestinationApp) error
}

// Execute processes one signed command batch. The order of gates is fixed:
//
//  1. replay check on the command id
//  2. signer recovery over the canonical batch digest
//  3. relayer authorization of the recovered signer
//  4. decoding and validation of every command, including simulated
//     balance effects of earlier commands in the same batch
//  5. commit: mark executed, then write approvals and balances in list order
//  6. deliver: run the collected callbacks, outside the engine lock
//
// Any failure in steps 1-4 aborts with no state change. Step 5 storage
// failures are surfaced wrapped. Delivery callbacks run inside the
// execution isolator after the engine lock is released: a destination
// application may query the engine, or submit its own batch, from within
// its callback. Callback failures are absorbed into the receipt and never
// fail the batch.
func (g *Gateway) Execute(ctx context.Context, id types.CommandID, commands []types.Command, signature []byte) (*types.ExecuteReceipt, error) {
	receipt, pending, signer, err := g.commitBatch(ctx, id, commands, signature)
	if err != nil {
		return nil, err
	}

	// The id is already in the executed set, so a reentrant submission of
	// this batch from a callback observes ReplayError, and validation
	// queries see the approvals mid-delivery.
	for i := range pending {
		g.attemptDelivery(&receipt.Outcomes[pending[i].index], &pending[i])
	}

	g.logger.Sugar().Infow("Command batch executed",
		"command_id", id.Hex(),
		"commands", len(commands),
		"signer", signer.Hex(),
	)
	return receipt, nil
}

// commitBatch runs gates 1-5 under the engine lock and returns the
// deliveries to attempt once the lock is released.
func (g *Gateway) commitBatch(ctx context.Context, id types.CommandID, commands []types.Command, signature []byte) (*types.ExecuteReceipt, []pendingDelivery, common.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var none common.Address

	executed, err := g.store.IsCommandExecuted(id)
	if err != nil {
		return nil, nil, none, errors.Wrap(err, "failed to check executed set")
	}
	if executed {
		return nil, nil, none, types.Replayf("command %s already executed", id.Hex())
	}

	input, err := command.EncodeBatch(id, commands)
	if err != nil {
		return nil, nil, none, err
	}
	digest := command.SigningDigest(command.BatchHash(input))
	signer, err := g.verifier.RecoverSigner(digest, signature)
	if err != nil {
		return nil, nil, none, err
	}
	isRelayer, err := g.store.IsRelayer(signer)
	if err != nil {
		return nil, nil, none, errors.Wrap(err, "failed to check relayer set")
	}
	if !isRelayer {
		return nil, nil, none, types.Authorizationf("signer %s is not an active relayer", signer.Hex())
	}

	decoded, err := decodeCommands(commands)
	if err != nil {
		return nil, nil, none, err
	}
	if err := g.validateBatch(decoded); err != nil {
		return nil, nil, none, err
	}

	// All gates passed: consume the id before any command commits.
	if err := g.store.MarkCommandExecuted(id); err != nil {
		return nil, nil, none, errors.Wrap(err, "failed to mark command executed")
	}

	receipt := &types.ExecuteReceipt{CommandID: id}
	var pending []pendingDelivery
	for i, dc := range decoded {
		outcome, delivery, err := g.applyCommand(ctx, id, i, dc)
		if err != nil {
			return nil, nil, none, err
		}
		receipt.Outcomes = append(receipt.Outcomes, outcome)
		if delivery != nil {
			pending = append(pending, *delivery)
		}
	}
	return receipt, pending, signer, nil
}

func decodeCommands(commands []types.Command) ([]*decodedCommand, error) {
	decoded := make([]*decodedCommand, len(commands))
	for i, cmd := range commands {
		dc := &decodedCommand{typ: cmd.Type}
		var err error
		switch cmd.Type {
		case types.CommandApproveContractCall:
			dc.approve, err = command.DecodeApproveContractCall(cmd.Params)
		case types.CommandApproveContractCallWithMint:
			dc.approveMint, err = command.DecodeApproveContractCallWithMint(cmd.Params)
		case types.CommandMintToken, types.CommandBurnToken:
			dc.token, err = command.DecodeTokenCommand(cmd.Params)
		default:
			err = types.Validationf("unknown command type %d at index %d", uint8(cmd.Type), i)
		}
		if err != nil {
			return nil, err
		}
		decoded[i] = dc
	}
	return decoded, nil
}

// validateBatch checks every command before anything mutates. Balance
// effects of earlier commands are simulated so a burn can spend a mint from
// the same batch, and an overdraft anywhere fails the whole batch upfront.
func (g *Gateway) validateBatch(decoded []*decodedCommand) error {
	sim := make(map[string]*big.Int)
	balance := func(account common.Address, symbol string) (*big.Int, error) {
		k := account.Hex() + ":" + symbol
		if b, ok := sim[k]; ok {
			return b, nil
		}
		b, err := g.store.GetBalance(account, symbol)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read balance")
		}
		sim[k] = b
		return b, nil
	}

	for i, dc := range decoded {
		switch dc.typ {
		case types.CommandApproveContractCall:
			if err := validateApproveParams(i, dc.approve); err != nil {
				return err
			}

		case types.CommandApproveContractCallWithMint:
			p := dc.approveMint
			if err := validateApproveParams(i, &p.ApproveContractCallParams); err != nil {
				return err
			}
			if err := g.validateTokenAmount(i, p.ContractAddress, p.Amount, p.Symbol); err != nil {
				return err
			}
			bal, err := balance(p.ContractAddress, p.Symbol)
			if err != nil {
				return err
			}
			bal.Add(bal, p.Amount)

		case types.CommandMintToken:
			p := dc.token
			if err := g.validateTokenAmount(i, p.Account, p.Amount, p.Symbol); err != nil {
				return err
			}
			bal, err := balance(p.Account, p.Symbol)
			if err != nil {
				return err
			}
			bal.Add(bal, p.Amount)

		case types.CommandBurnToken:
			p := dc.token
			if err := g.validateTokenAmount(i, p.Account, p.Amount, p.Symbol); err != nil {
				return err
			}
			bal, err := balance(p.Account, p.Symbol)
			if err != nil {
				return err
			}
			if bal.Cmp(p.Amount) < 0 {
				return types.Validationf("insufficient balance for burn at index %d: have %s, need %s", i, bal.String(), p.Amount.String())
			}
			bal.Sub(bal, p.Amount)
		}
	}
	return nil
}

func validateApproveParams(index int, p *command.ApproveContractCallParams) error {
	if p.ContractAddress == (common.Address{}) {
		return types.Validationf("contract address is zero at index %d", index)
	}
	if p.SourceChain == "" || p.SourceAddress == "" {
		return types.Validationf("source chain and address are required at index %d", index)
	}
	if crypto.Keccak256Hash(p.Payload) != p.PayloadHash {
		return types.Validationf("payload hash mismatch at index %d", index)
	}
	return nil
}

func (g *Gateway) validateTokenAmount(index int, account common.Address, amount *big.Int, symbol string) error {
	if account == (common.Address{}) {
		return types.Validationf("account address is zero at index %d", index)
	}
	if types.ZeroAmount(amount) {
		return types.Validationf("amount must be positive at index %d", index)
	}
	supported, err := g.store.IsTokenSupported(symbol)
	if err != nil {
		return errors.Wrap(err, "failed to check token support")
	}
	if !supported {
		return types.Validationf("unsupported token symbol %q at index %d", symbol, index)
	}
	return nil
}

// applyCommand commits one validated command and, for approvals routed to a
// registered application, captures the delivery to run after the lock is
// released. Returned errors are storage faults only: protocol validation
// has already passed for the whole batch.
func (g *Gateway) applyCommand(ctx context.Context, id types.CommandID, index int, dc *decodedCommand) (types.DeliveryOutcome, *pendingDelivery, error) {
	outcome := types.DeliveryOutcome{
		Index:    index,
		Type:     dc.typ,
		TypeName: dc.typ.String(),
	}
	var delivery *pendingDelivery

	switch dc.typ {
	case types.CommandApproveContractCall:
		p := dc.approve
		key := command.ApprovalKey(id, p.SourceChain, p.SourceAddress, p.ContractAddress, p.PayloadHash)
		if err := g.store.SaveApproval(key, approvalRecord(id, p, "", nil)); err != nil {
			return outcome, nil, errors.Wrap(err, "failed to save approval")
		}
		if app, registered := g.apps[p.ContractAddress]; registered {
			delivery = &pendingDelivery{
				index: index,
				addr:  p.ContractAddress,
				app:   app,
				call: func(app DestinationApp) error {
					return app.Execute(ctx, id, p.SourceChain, p.SourceAddress, p.Payload)
				},
			}
		}

	case types.CommandApproveContractCallWithMint:
		p := dc.approveMint
		key := command.ApprovalKeyWithMint(id, p.SourceChain, p.SourceAddress, p.ContractAddress, p.PayloadHash, p.Symbol, p.Amount)
		if err := g.store.SaveApproval(key, approvalRecord(id, &p.ApproveContractCallParams, p.Symbol, p.Amount)); err != nil {
			return outcome, nil, errors.Wrap(err, "failed to save approval")
		}
		// Mint before the delivery attempt: a failed callback leaves the
		// minted balance at the destination for manual recovery or retry.
		if err := g.adjustBalance(p.ContractAddress, p.Symbol, p.Amount); err != nil {
			return outcome, nil, err
		}
		if app, registered := g.apps[p.ContractAddress]; registered {
			delivery = &pendingDelivery{
				index: index,
				addr:  p.ContractAddress,
				app:   app,
				call: func(app DestinationApp) error {
					return app.ExecuteWithToken(ctx, id, p.SourceChain, p.SourceAddress, p.Payload, p.Symbol, p.Amount)
				},
			}
		}

	case types.CommandMintToken:
		p := dc.token
		if err := g.adjustBalance(p.Account, p.Symbol, p.Amount); err != nil {
			return outcome, nil, err
		}

	case types.CommandBurnToken:
		p := dc.token
		if err := g.adjustBalance(p.Account, p.Symbol, new(big.Int).Neg(p.Amount)); err != nil {
			return outcome, nil, err
		}
	}
	return outcome, delivery, nil
}

func approvalRecord(id types.CommandID, p *command.ApproveContractCallParams, symbol string, amount *big.Int) *types.ContractCallApproval {
	return &types.ContractCallApproval{
		CommandID:        id,
		SourceChain:      p.SourceChain,
		SourceAddress:    p.SourceAddress,
		ContractAddress:  p.ContractAddress,
		PayloadHash:      p.PayloadHash,
		Payload:          p.Payload,
		SourceTxHash:     p.SourceTxHash,
		SourceEventIndex: p.SourceEventIndex,
		Symbol:           symbol,
		MintAmount:       amount,
	}
}

// adjustBalance applies a signed delta to an account's balance
func (g *Gateway) adjustBalance(account common.Address, symbol string, delta *big.Int) error {
	bal, err := g.store.GetBalance(account, symbol)
	if err != nil {
		return errors.Wrap(err, "failed to read balance")
	}
	bal.Add(bal, delta)
	if err := g.store.SetBalance(account, symbol, bal); err != nil {
		return errors.Wrap(err, "failed to write balance")
	}
	return nil
}
