package modbus

import "errors"

var (
	// ErrInvalidPDU indicates that a PDU is structurally malformed and cannot be
	// converted to a request or response. It has no wire representation.
	ErrInvalidPDU = errors.New("invalid PDU")

	// ErrEmptyPDU indicates a PDU without function code.
	ErrEmptyPDU = errors.New("empty PDU")

	// ErrPDUTooLong indicates that an encoded PDU would exceed MaxPDULen bytes.
	ErrPDUTooLong = errors.New("PDU exceeds 253 bytes")

	// ErrUnknownVariant indicates a request or response value that is not one of
	// the variants declared in this package, e.g. a nil interface value.
	ErrUnknownVariant = errors.New("unknown message variant")

	// ErrFunctionMismatch indicates that a decoded response does not belong to
	// the expected function.
	ErrFunctionMismatch = errors.New("function code mismatch")
)

// ClassifyError maps err to the fault taxonomy.
//
// If err is, or wraps, an ExceptionCode, ClassifyError returns that exception
// code and true: the failure is a protocol exception and must be answered with an
// exception response. Every other error, including nil, yields false: the failure
// has no wire representation and is fatal for the request.
func ClassifyError(err error) (ExceptionCode, bool) {
	if err == nil {
		return 0, false
	}

	var ec ExceptionCode
	if errors.As(err, &ec) {
		return ec, true
	}

	return 0, false
}

// IsException reports whether err is a protocol exception.
func IsException(err error) bool {
	_, ok := ClassifyError(err)
	return ok
}
