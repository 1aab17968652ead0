package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/interop-labs/gateway-go/pkg/command"
	"github.com/interop-labs/gateway-go/pkg/types"
)

// writeError maps the engine's failure taxonomy onto HTTP statuses:
// authorization 401, replay 409, validation 400, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		authErr       *types.AuthorizationError
		replayErr     *types.ReplayError
		validationErr *types.ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.As(err, &replayErr):
		status = http.StatusConflict
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Request failed", "error", err)
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: fmt.Sprintf("failed to parse request: %v", err)})
		return false
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, types.Validationf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, types.Validationf("invalid amount %q", s)
	}
	return amount, nil
}

func parseHexBytes(name, s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, types.Validationf("invalid %s: %v", name, err)
	}
	return b, nil
}

// handleExecute processes a signed command batch submission
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req types.ExecuteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := parseHexBytes("input", req.Input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	signature, err := parseHexBytes("signature", req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, commands, err := command.DecodeBatch(input)
	if err != nil {
		s.writeError(w, err)
		return
	}

	receipt, err := s.gateway.Execute(r.Context(), id, commands, signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ExecuteResponse{Receipt: receipt})
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request, direction types.BridgeDirection) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req types.BridgeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	actor, err := parseAddress(req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	provenance, err := parseHexBytes("provenance", req.Provenance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	signature, err := parseHexBytes("signature", req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if direction == types.BridgeDirectionIn {
		err = s.gateway.BridgeIn(actor, amount, provenance, signature)
	} else {
		err = s.gateway.BridgeOut(actor, amount, provenance, signature)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBridgeIn(w http.ResponseWriter, r *http.Request) {
	s.handleBridge(w, r, types.BridgeDirectionIn)
}

func (s *Server) handleBridgeOut(w http.ResponseWriter, r *http.Request) {
	s.handleBridge(w, r, types.BridgeDirectionOut)
}

func (s *Server) parseValidateRequest(w http.ResponseWriter, r *http.Request) (*types.ValidateContractCallRequest, types.CommandID, common.Address, common.Hash, bool) {
	var req types.ValidateContractCallRequest
	if !decodeBody(w, r, &req) {
		return nil, types.CommandID{}, common.Address{}, common.Hash{}, false
	}
	id, err := types.CommandIDFromHex(req.CommandID)
	if err != nil {
		s.writeError(w, types.Validationf("%v", err))
		return nil, types.CommandID{}, common.Address{}, common.Hash{}, false
	}
	contract, err := parseAddress(req.ContractAddress)
	if err != nil {
		s.writeError(w, err)
		return nil, types.CommandID{}, common.Address{}, common.Hash{}, false
	}
	hashBytes, err := parseHexBytes("payloadHash", req.PayloadHash)
	if err != nil || len(hashBytes) != 32 {
		s.writeError(w, types.Validationf("payload hash must be 32 bytes"))
		return nil, types.CommandID{}, common.Address{}, common.Hash{}, false
	}
	return &req, id, contract, common.BytesToHash(hashBytes), true
}

func (s *Server) handleValidateContractCall(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	req, id, contract, payloadHash, ok := s.parseValidateRequest(w, r)
	if !ok {
		return
	}
	valid, err := s.gateway.ValidateContractCall(id, req.SourceChain, req.SourceAddress, contract, payloadHash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ValidateContractCallResponse{Valid: valid})
}

func (s *Server) handleValidateContractCallMint(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	req, id, contract, payloadHash, ok := s.parseValidateRequest(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	valid, err := s.gateway.ValidateContractCallAndMint(id, req.SourceChain, req.SourceAddress, contract, payloadHash, req.Symbol, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ValidateContractCallResponse{Valid: valid})
}

// handleRelayers adds (POST) or removes (DELETE) a relayer
func (s *Server) handleRelayers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	var req types.RelayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	relayer, err := parseAddress(req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.Method == http.MethodPost {
		err = s.gateway.AddRelayer(caller, relayer)
	} else {
		err = s.gateway.RemoveRelayer(caller, relayer)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChains adds (POST) or removes (DELETE) a chain registry entry
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	var req types.ChainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.Method == http.MethodPost {
		err = s.gateway.AddChain(caller, req.Name, req.ID)
	} else {
		err = s.gateway.RemoveChain(caller, req.Name)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTokens adds (POST) or removes (DELETE) a supported token symbol
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	var req types.TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.Method == http.MethodPost {
		err = s.gateway.AddToken(caller, req.Symbol)
	} else {
		err = s.gateway.RemoveToken(caller, req.Symbol)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChainID(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	name := r.URL.Query().Get("name")
	id, err := s.gateway.GetChainID(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ChainRequest{Name: name, ID: id})
}

func (s *Server) handleGetChainName(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.writeError(w, types.Validationf("invalid chain id: %v", err))
		return
	}
	name, err := s.gateway.GetChainName(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ChainRequest{Name: name, ID: id})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = s.gateway.BridgeSymbol()
	}
	balance, err := s.gateway.BalanceOf(account, symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.BalanceResponse{
		Account: account.Hex(),
		Symbol:  symbol,
		Balance: balance.String(),
	})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	actor, err := parseAddress(r.URL.Query().Get("actor"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	direction := types.BridgeDirection(r.URL.Query().Get("direction"))
	if direction != types.BridgeDirectionIn && direction != types.BridgeDirectionOut {
		s.writeError(w, types.Validationf("direction must be %q or %q", types.BridgeDirectionIn, types.BridgeDirectionOut))
		return
	}
	nonce, err := s.gateway.Nonce(actor, direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NonceResponse{
		Actor:     actor.Hex(),
		Direction: string(direction),
		Nonce:     nonce,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
