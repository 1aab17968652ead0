package types

// Request/response payloads for the gateway HTTP surface. Byte fields are
// 0x-prefixed hex strings; amounts are decimal strings.

// ExecuteRequest submits a signed command batch. Input is the canonical
// ABI batch encoding; the signature covers its keccak digest.
type ExecuteRequest struct {
	Input     string `json:"input"`
	Signature string `json:"signature"`
}

// ExecuteResponse returns the completion receipt for a processed batch
type ExecuteResponse struct {
	Receipt *ExecuteReceipt `json:"receipt"`
}

// BridgeRequest moves bridged tokens in (mint) or out (burn) for one actor.
// Provenance is the ABI encoding of (chainId uint64, nonce uint64).
type BridgeRequest struct {
	Actor      string `json:"actor"`
	Amount     string `json:"amount"`
	Provenance string `json:"provenance"`
	Signature  string `json:"signature"`
}

// ValidateContractCallRequest asks whether an approved call exists and its
// stored payload hash matches. Destination applications call this before
// trusting a delivered payload.
type ValidateContractCallRequest struct {
	CommandID       string `json:"commandId"`
	SourceChain     string `json:"sourceChain"`
	SourceAddress   string `json:"sourceAddress"`
	ContractAddress string `json:"contractAddress"`
	PayloadHash     string `json:"payloadHash"`
	Symbol          string `json:"symbol,omitempty"`
	Amount          string `json:"amount,omitempty"`
}

// ValidateContractCallResponse carries the validation verdict
type ValidateContractCallResponse struct {
	Valid bool `json:"valid"`
}

// RelayerRequest adds or removes a relayer identity. Caller must be the
// gateway owner.
type RelayerRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

// ChainRequest adds or removes a chain registry entry. Caller must be the
// gateway owner.
type ChainRequest struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	ID     uint64 `json:"id,omitempty"`
}

// TokenRequest adds or removes a supported token symbol. Caller must be the
// gateway owner.
type TokenRequest struct {
	Caller string `json:"caller"`
	Symbol string `json:"symbol"`
}

// BalanceResponse reports one account's bridged-token balance
type BalanceResponse struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// NonceResponse reports one actor's current bridge nonce for a direction
type NonceResponse struct {
	Actor     string `json:"actor"`
	Direction string `json:"direction"`
	Nonce     uint64 `json:"nonce"`
}

// ErrorResponse is the uniform error body returned by all handlers
type ErrorResponse struct {
	Error string `json:"error"`
}
