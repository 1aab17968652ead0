package types

import "fmt"

// The engine's failure taxonomy. AuthorizationError, ReplayError and
// ValidationError abort the enclosing call with no state change retained.
// DeliveryError is produced only inside the execution isolator and is
// absorbed there, never propagated to the caller of Execute.

// AuthorizationError means the caller or recovered signer is not permitted
// to perform the operation.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// ReplayError means a command id or nonce has already been consumed.
type ReplayError struct {
	Reason string
}

func (e *ReplayError) Error() string {
	return "replay rejected: " + e.Reason
}

// ValidationError means the operation carried malformed or invalid content:
// hash mismatch, zero amount, zero address, unsupported symbol or chain,
// undecodable parameters.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// DeliveryError wraps a destination application callback failure. It exists
// so the isolation boundary has a concrete type to absorb and log.
type DeliveryError struct {
	Reason string
}

func (e *DeliveryError) Error() string {
	return "delivery failed: " + e.Reason
}

// Authorizationf builds an AuthorizationError from a format string
func Authorizationf(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// Replayf builds a ReplayError from a format string
func Replayf(format string, args ...interface{}) *ReplayError {
	return &ReplayError{Reason: fmt.Sprintf(format, args...)}
}

// Validationf builds a ValidationError from a format string
func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Deliveryf builds a DeliveryError from a format string
func Deliveryf(format string, args ...interface{}) *DeliveryError {
	return &DeliveryError{Reason: fmt.Sprintf(format, args...)}
}
