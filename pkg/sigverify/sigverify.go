// Package sigverify recovers signer identities from ECDSA signatures over
// canonical digests. Verification is stateless: authorization decisions
// belong to the caller, which keeps this package independently testable.
package sigverify

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// Verifier recovers the identity that produced a signature over a digest.
// It fails with a ValidationError on malformed signature encoding and never
// consults any authorization state.
type Verifier interface {
	RecoverSigner(digest common.Hash, signature []byte) (common.Address, error)
}

// ECDSAVerifier recovers secp256k1 signers the Ethereum way: 65-byte
// signatures with the recovery id in the last byte, 27/28 normalized to 0/1.
type ECDSAVerifier struct{}

// NewECDSAVerifier creates the production verifier
func NewECDSAVerifier() *ECDSAVerifier {
	return &ECDSAVerifier{}
}

// RecoverSigner returns the address that signed digest
func (v *ECDSAVerifier) RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, types.Validationf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, types.Validationf("signature recovery failed: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Fixed is a deterministic Verifier for tests: it reports every
// syntactically plausible signature as signed by Signer.
type Fixed struct {
	Signer common.Address
}

// RecoverSigner returns the fixed signer, rejecting empty signatures so
// malformed-encoding paths remain testable
func (f *Fixed) RecoverSigner(_ common.Hash, signature []byte) (common.Address, error) {
	if len(signature) == 0 {
		return common.Address{}, types.Validationf("empty signature")
	}
	return f.Signer, nil
}
