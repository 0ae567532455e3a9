// Package modbus provides the Modbus application-layer message model used by the
// go-modbus server: function codes, exception codes, the closed set of request and
// response variants, and the conversions between these variants and Modbus PDUs.
//
// Function Codes:
// FunctionCode identifies a Modbus operation. A function code with the 0x80 bit set
// denotes an exception response for the operation in the lower seven bits.
//
// Requests and Responses:
// Request and Response are sealed interfaces; only the variants declared in this
// package implement them. Each Response variant is the success case of exactly one
// Request variant:
//   - ReadCoils / ReadCoilsResponse
//   - ReadDiscreteInputs / ReadDiscreteInputsResponse
//   - ReadHoldingRegisters / ReadHoldingRegistersResponse
//   - ReadInputRegisters / ReadInputRegistersResponse
//   - WriteSingleCoil / WriteSingleCoilResponse
//   - WriteSingleRegister / WriteSingleRegisterResponse
//   - WriteMultipleCoils / WriteMultipleCoilsResponse
//   - WriteMultipleRegisters / WriteMultipleRegistersResponse
//   - MaskWriteRegister / MaskWriteRegisterResponse
//   - ReadWriteMultipleRegisters / ReadWriteMultipleRegistersResponse
//   - CustomRequest / CustomResponse for every other function code
//
// Faults:
// ExceptionCode implements error and is the only error kind with a wire
// representation. ClassifyError separates exception codes from every other
// error, which has to be treated as fatal for the request.
//
// Conversions:
//   - DecodeRequest / EncodeRequest: PDU <-> Request
//   - EncodeResponse / DecodeResponse: Response <-> PDU
//   - ExceptionResponse.PDU: exception response -> PDU
//   - FunctionCodeOf: Request -> FunctionCode
package modbus
