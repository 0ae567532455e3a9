package modbus

// Response is a Modbus response. Each variant is the success case of exactly one
// Request variant.
type Response interface {
	// FunctionCode returns the function code of the response.
	FunctionCode() FunctionCode

	isResponse()
}

// ReadCoilsResponse answers ReadCoils.
type ReadCoilsResponse struct {
	Values []bool
}

// ReadDiscreteInputsResponse answers ReadDiscreteInputs.
type ReadDiscreteInputsResponse struct {
	Values []bool
}

// ReadHoldingRegistersResponse answers ReadHoldingRegisters.
type ReadHoldingRegistersResponse struct {
	Values []uint16
}

// ReadInputRegistersResponse answers ReadInputRegisters.
type ReadInputRegistersResponse struct {
	Values []uint16
}

// WriteSingleCoilResponse answers WriteSingleCoil by echoing the request.
type WriteSingleCoilResponse struct {
	Address uint16
	Value   bool
}

// WriteSingleRegisterResponse answers WriteSingleRegister by echoing the request.
type WriteSingleRegisterResponse struct {
	Address uint16
	Value   uint16
}

// WriteMultipleCoilsResponse answers WriteMultipleCoils.
type WriteMultipleCoilsResponse struct {
	Address  uint16
	Quantity uint16
}

// WriteMultipleRegistersResponse answers WriteMultipleRegisters.
type WriteMultipleRegistersResponse struct {
	Address  uint16
	Quantity uint16
}

// MaskWriteRegisterResponse answers MaskWriteRegister by echoing the request.
type MaskWriteRegisterResponse struct {
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// ReadWriteMultipleRegistersResponse answers ReadWriteMultipleRegisters with the
// registers read after the write.
type ReadWriteMultipleRegistersResponse struct {
	Values []uint16
}

// CustomResponse answers CustomRequest. Data is the PDU data without the
// function code.
type CustomResponse struct {
	Function FunctionCode
	Data     []byte
}

func (ReadCoilsResponse) isResponse()                  {}
func (ReadDiscreteInputsResponse) isResponse()         {}
func (ReadHoldingRegistersResponse) isResponse()       {}
func (ReadInputRegistersResponse) isResponse()         {}
func (WriteSingleCoilResponse) isResponse()            {}
func (WriteSingleRegisterResponse) isResponse()        {}
func (WriteMultipleCoilsResponse) isResponse()         {}
func (WriteMultipleRegistersResponse) isResponse()     {}
func (MaskWriteRegisterResponse) isResponse()          {}
func (ReadWriteMultipleRegistersResponse) isResponse() {}
func (CustomResponse) isResponse()                     {}

func (ReadCoilsResponse) FunctionCode() FunctionCode { return FunctionReadCoils }
func (ReadDiscreteInputsResponse) FunctionCode() FunctionCode {
	return FunctionReadDiscreteInputs
}
func (ReadHoldingRegistersResponse) FunctionCode() FunctionCode {
	return FunctionReadHoldingRegisters
}
func (ReadInputRegistersResponse) FunctionCode() FunctionCode {
	return FunctionReadInputRegisters
}
func (WriteSingleCoilResponse) FunctionCode() FunctionCode { return FunctionWriteSingleCoil }
func (WriteSingleRegisterResponse) FunctionCode() FunctionCode {
	return FunctionWriteSingleRegister
}
func (WriteMultipleCoilsResponse) FunctionCode() FunctionCode {
	return FunctionWriteMultipleCoils
}
func (WriteMultipleRegistersResponse) FunctionCode() FunctionCode {
	return FunctionWriteMultipleRegisters
}
func (MaskWriteRegisterResponse) FunctionCode() FunctionCode { return FunctionMaskWriteRegister }
func (ReadWriteMultipleRegistersResponse) FunctionCode() FunctionCode {
	return FunctionReadWriteMultipleRegisters
}

// FunctionCode returns r.Function.
func (r CustomResponse) FunctionCode() FunctionCode { return r.Function }
