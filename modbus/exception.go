package modbus

import "fmt"

// ExceptionCode describes a Modbus exception code.
//
// ExceptionCode implements error. It is the protocol exception of the fault
// taxonomy: a failure which is answered with an exception response instead of
// terminating the connection. It deliberately carries no function code; the
// function code of an exception response is always taken from the request.
type ExceptionCode uint8

// Exception code constants.
const (
	ExceptionIllegalFunction                    ExceptionCode = 0x01
	ExceptionIllegalDataAddress                 ExceptionCode = 0x02
	ExceptionIllegalDataValue                   ExceptionCode = 0x03
	ExceptionServerDeviceFailure                ExceptionCode = 0x04
	ExceptionAcknowledge                        ExceptionCode = 0x05
	ExceptionServerDeviceBusy                   ExceptionCode = 0x06
	ExceptionMemoryParityError                  ExceptionCode = 0x08
	ExceptionGatewayPathUnavailable             ExceptionCode = 0x0A
	ExceptionGatewayTargetDeviceFailedToRespond ExceptionCode = 0x0B
)

var exceptionStrings = map[ExceptionCode]string{
	ExceptionIllegalFunction:                    "illegal function",
	ExceptionIllegalDataAddress:                 "illegal data address",
	ExceptionIllegalDataValue:                   "illegal data value",
	ExceptionServerDeviceFailure:                "server device failure",
	ExceptionAcknowledge:                        "acknowledge",
	ExceptionServerDeviceBusy:                   "server device busy",
	ExceptionMemoryParityError:                  "memory parity error",
	ExceptionGatewayPathUnavailable:             "gateway path unavailable",
	ExceptionGatewayTargetDeviceFailedToRespond: "gateway target failed to respond",
}

// Error implements error.
func (ec ExceptionCode) Error() string {
	return "modbus exception: " + ec.String()
}

// String returns the textual description of the exception code.
func (ec ExceptionCode) String() string {
	if s, ok := exceptionStrings[ec]; ok {
		return s
	}

	return fmt.Sprintf("unknown exception 0x%02X", uint8(ec))
}

// IsKnown reports whether ec is defined by the Modbus application protocol.
func (ec ExceptionCode) IsKnown() bool {
	_, ok := exceptionStrings[ec]
	return ok
}

// ExceptionResponse is the response sent in place of a regular response when a
// request fails with a protocol exception.
//
// ExceptionResponse also implements error, so that DecodeResponse can return a
// received exception response to its caller. errors.As with an ExceptionCode
// target unwraps it to its exception code.
type ExceptionResponse struct {
	// Function is the function code of the failed request, without the
	// exception bit.
	Function FunctionCode
	// Exception is the exception code.
	Exception ExceptionCode
}

// PDU encodes the exception response: the function code with the exception bit
// set, followed by the exception code.
func (r ExceptionResponse) PDU() PDU {
	return PDU{byte(r.Function.AsError()), byte(r.Exception)}
}

// Error implements error.
func (r ExceptionResponse) Error() string {
	return fmt.Sprintf("modbus exception response for %s: %s", r.Function, r.Exception)
}

// Unwrap returns the exception code.
func (r ExceptionResponse) Unwrap() error {
	return r.Exception
}
