// Package errs defines clipcore's structured error taxonomy (spec §7) shared
// across the crypto, transport, handshake, and sync packages.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies an error kind from the error handling taxonomy (§7).
type Code string

const (
	CodeQRMalformed        Code = "QR_MALFORMED"
	CodeUnreachable        Code = "UNREACHABLE"
	CodeCertUntrusted      Code = "CERT_UNTRUSTED"
	CodeWrapFail           Code = "WRAP_FAIL"
	CodeUnwrapFail         Code = "UNWRAP_FAIL"
	CodeHandshakeRejected  Code = "HANDSHAKE_REJECTED"
	CodeDecryptAuth        Code = "DECRYPT_AUTH"
	CodeSendFail           Code = "SEND_FAIL"
	CodeStoreDecrypt       Code = "STORE_DECRYPT"
	CodeTransientNet       Code = "TRANSIENT_NET"
	CodeContentUnsupported Code = "CONTENT_UNSUPPORTED"
	CodePolicyViolation    Code = "POLICY_VIOLATION"
)

// CoreError is a structured error carrying a taxonomy code and optional
// details, propagated per the policy table in spec §7.
type CoreError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches a key/value detail and returns the receiver for chaining.
func (e *CoreError) WithDetails(key string, value interface{}) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new CoreError.
func New(code Code, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is a *CoreError with the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}
