// Package fault defines the error taxonomy shared by the codecs, the state
// reader, the planner and the reconciler.
//
// Every error raised by omniwire that an operator may need to act on is a
// *fault.Error carrying a Code. Callers classify errors with the IsXxx
// helpers, which see through wrapping.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes an Error.
type Code string

const (
	// CodeNotFoundOnChain indicates a ledger read found no value.
	// Recovered by substituting a declared default where one exists.
	CodeNotFoundOnChain Code = "NOT_FOUND_ON_CHAIN"

	// CodeNoDefault indicates a NotFound read for a field that has no
	// safe default. Fatal to the read.
	CodeNoDefault Code = "NO_DEFAULT"

	// CodeInvalidWireFormat indicates a packet or adapter-params decode
	// failed on length or tag. Fatal to that single decode.
	CodeInvalidWireFormat Code = "INVALID_WIRE_FORMAT"

	// CodeAddressWidthMismatch indicates an address whose byte length does
	// not match the destination chain's declared width.
	CodeAddressWidthMismatch Code = "ADDRESS_WIDTH_MISMATCH"

	// CodeConfigurationInvariantViolation indicates a required configuration
	// field is empty or malformed. Raised before any network call.
	CodeConfigurationInvariantViolation Code = "CONFIGURATION_INVARIANT_VIOLATION"

	// CodeTransactionRejected indicates a submitted write failed on-chain
	// or at the transport. Never retried.
	CodeTransactionRejected Code = "TRANSACTION_REJECTED"
)

// Error is a classified omniwire error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed, e.g. "packet.decode".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NotFoundOnChain error.
func IsNotFound(err error) bool { return is(err, CodeNotFoundOnChain) }

// IsNoDefault reports whether err is a NotFound on a field without default.
func IsNoDefault(err error) bool { return is(err, CodeNoDefault) }

// IsInvalidWireFormat reports whether err is a decode failure.
func IsInvalidWireFormat(err error) bool { return is(err, CodeInvalidWireFormat) }

// IsAddressWidthMismatch reports whether err is an address width failure.
func IsAddressWidthMismatch(err error) bool { return is(err, CodeAddressWidthMismatch) }

// IsConfigurationInvariantViolation reports whether err is a build-time
// configuration failure.
func IsConfigurationInvariantViolation(err error) bool {
	return is(err, CodeConfigurationInvariantViolation)
}

// IsTransactionRejected reports whether err is a failed write.
func IsTransactionRejected(err error) bool { return is(err, CodeTransactionRejected) }

// NotFound creates a NotFoundOnChain error for the named on-chain location.
func NotFound(op, location string) *Error {
	return &Error{
		Code:    CodeNotFoundOnChain,
		Op:      op,
		Message: fmt.Sprintf("%s not found on chain", location),
	}
}

// NoDefault wraps a NotFound for a field that must exist.
func NoDefault(field string, cause error) *Error {
	return &Error{
		Code:    CodeNoDefault,
		Op:      "state.read",
		Message: fmt.Sprintf("field %q has no default", field),
		Err:     cause,
	}
}

// InvalidWireFormat wraps a decode failure.
func InvalidWireFormat(op string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidWireFormat,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// AddressWidthMismatch reports an address of the wrong byte length.
func AddressWidthMismatch(op string, got, want int) *Error {
	return &Error{
		Code:    CodeAddressWidthMismatch,
		Op:      op,
		Message: fmt.Sprintf("address is %d bytes, chain expects %d", got, want),
	}
}

// InvariantViolation reports an empty or malformed required field.
func InvariantViolation(op, field, reason string) *Error {
	return &Error{
		Code:    CodeConfigurationInvariantViolation,
		Op:      op,
		Message: fmt.Sprintf("%s: %s", field, reason),
	}
}

// TransactionRejected wraps a failed write.
func TransactionRejected(op string, cause error) *Error {
	return &Error{
		Code:    CodeTransactionRejected,
		Op:      op,
		Message: "transaction rejected",
		Err:     cause,
	}
}
