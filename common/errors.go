package common

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Client state errors
	ErrNotConnected     = errors.New("client not connected")
	ErrAlreadyConnected = errors.New("client already connected")

	// Communication errors
	ErrTimeout         = errors.New("timeout")
	ErrContextCanceled = errors.New("context canceled")

	// Transaction errors
	ErrTransactionTimeout = errors.New("transaction timeout")
	ErrTransportClosing   = errors.New("transport closing")

	ErrNoResponse = errors.New("no response from server")
)

// Error kinds produced by the codec, framer, store and dispatcher.
// These are deliberately distinct from Go's error-wrapping idioms elsewhere:
// each kind corresponds 1:1 to an entry in the exception-code mapping table
// below, so the dispatcher never has to pattern-match on error strings.
var (
	// Frame-level faults. ErrBadProtocol and ErrBadLength never become Modbus
	// exceptions, since the transaction id on such a frame cannot be trusted;
	// the connection closes. ErrTruncated, when reported for a short PDU body,
	// maps to exception 0x03 (see ExceptionCodeFor).
	ErrTruncated    = errors.New("modbus: truncated frame")
	ErrBadProtocol  = errors.New("modbus: non-zero protocol identifier")
	ErrBadLength    = errors.New("modbus: length field out of range")

	// PDU-level faults, convertible to exception responses.
	ErrUnknownFunction         = errors.New("modbus: unknown function code")
	ErrByteCountMismatch       = errors.New("modbus: byte count does not match quantity")
	ErrInvalidCoilValue        = errors.New("modbus: coil value must be 0x0000 or 0xFF00")
	ErrAddressOutOfRange       = errors.New("modbus: address + quantity exceeds space size")
	ErrQuantityOutOfRange      = errors.New("modbus: quantity outside protocol range")
	ErrReadOnlySpace           = errors.New("modbus: address space is read-only")
	ErrStoreInternal           = errors.New("modbus: internal store failure")
	ErrTransportError          = errors.New("modbus: transport error")
	ErrUnexpectedTransactionID = errors.New("modbus: response transaction id has no outstanding request")
)

// ModbusError represents an error from a Modbus exception response
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
// "When a Client sends a request to a Server device, it expects a normal response.
// One of four possible events can occur from the Master's perspective:
// ..."
// "If the Server returns an Exception Response, the Exception Code field contains
// the reason why the Server is unable to process the requested function."
type ModbusError struct {
	FunctionCode  FunctionCode  // Function code of the request (exception bit set when built from a received exception response)
	ExceptionCode ExceptionCode // Exception code indicating the error reason
}

// Error implements the error interface
func (e *ModbusError) Error() string {
	return fmt.Sprintf("modbus: exception response: function: %s, exception code: %#x (%s)",
		e.FunctionCode, e.ExceptionCode, GetExceptionString(e.ExceptionCode))
}

// IsModbusError checks if an error is a ModbusError
func IsModbusError(err error) bool {
	_, ok := err.(*ModbusError)
	return ok
}

// IsExceptionError checks if an error is a specific Modbus exception
func IsExceptionError(err error, exceptionCode ExceptionCode) bool {
	if modbusErr, ok := err.(*ModbusError); ok {
		return modbusErr.ExceptionCode == exceptionCode
	}
	return false
}

// IsFunctionNotSupportedError checks if an error is due to a function not being supported
func IsFunctionNotSupportedError(err error) bool {
	return IsExceptionError(err, ExceptionFunctionCodeNotSupported)
}

// NewModbusError creates a new ModbusError
func NewModbusError(functionCode FunctionCode, exceptionCode ExceptionCode) *ModbusError {
	return &ModbusError{
		FunctionCode:  functionCode,
		ExceptionCode: exceptionCode,
	}
}

// GetExceptionString returns a human-readable description of an exception code
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
func GetExceptionString(exceptionCode ExceptionCode) string {
	switch exceptionCode {
	case ExceptionFunctionCodeNotSupported:
		return "function code not supported"
	case ExceptionDataAddressNotAvailable:
		return "data address not available"
	case ExceptionInvalidDataValue:
		return "invalid data value"
	case ExceptionServerDeviceFailure:
		return "server device failure"
	default:
		return fmt.Sprintf("unknown exception code: %#x", exceptionCode)
	}
}

// ExceptionCodeFor maps a dispatcher-level error kind to the Modbus exception
// code the server must reply with. Ref: spec Section 7 (Error Handling Design).
// Returns false for frame-level faults, which have no exception mapping at
// all — the caller must close the connection instead of replying.
func ExceptionCodeFor(err error) (ExceptionCode, bool) {
	switch {
	case errors.Is(err, ErrUnknownFunction), errors.Is(err, ErrReadOnlySpace):
		return ExceptionFunctionCodeNotSupported, true
	case errors.Is(err, ErrAddressOutOfRange):
		return ExceptionDataAddressNotAvailable, true
	case errors.Is(err, ErrQuantityOutOfRange),
		errors.Is(err, ErrInvalidCoilValue),
		errors.Is(err, ErrByteCountMismatch),
		errors.Is(err, ErrTruncated):
		return ExceptionInvalidDataValue, true
	case errors.Is(err, ErrStoreInternal):
		return ExceptionServerDeviceFailure, true
	case errors.Is(err, ErrBadProtocol), errors.Is(err, ErrBadLength):
		return 0, false
	default:
		// Any unexpected codec outcome on a fully-framed PDU is treated as an
		// internal server failure rather than silently dropped.
		return ExceptionServerDeviceFailure, true
	}
}
