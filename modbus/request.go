package modbus

// Request is a Modbus request. The set of variants is closed; every
// implementation is declared in this package.
type Request interface {
	// FunctionCode returns the function code of the request.
	FunctionCode() FunctionCode
	// Validate checks the request against the quantity and address limits of
	// the Modbus application protocol. It returns ExceptionIllegalDataValue or
	// ExceptionIllegalDataAddress on violation.
	Validate() error

	isRequest()
}

// ReadCoils requests Quantity coils starting at Address.
type ReadCoils struct {
	Address  uint16
	Quantity uint16
}

// ReadDiscreteInputs requests Quantity discrete inputs starting at Address.
type ReadDiscreteInputs struct {
	Address  uint16
	Quantity uint16
}

// ReadHoldingRegisters requests Quantity holding registers starting at Address.
type ReadHoldingRegisters struct {
	Address  uint16
	Quantity uint16
}

// ReadInputRegisters requests Quantity input registers starting at Address.
type ReadInputRegisters struct {
	Address  uint16
	Quantity uint16
}

// WriteSingleCoil sets the coil at Address to Value.
type WriteSingleCoil struct {
	Address uint16
	Value   bool
}

// WriteSingleRegister sets the holding register at Address to Value.
type WriteSingleRegister struct {
	Address uint16
	Value   uint16
}

// WriteMultipleCoils sets len(Values) coils starting at Address.
type WriteMultipleCoils struct {
	Address uint16
	Values  []bool
}

// WriteMultipleRegisters sets len(Values) holding registers starting at Address.
type WriteMultipleRegisters struct {
	Address uint16
	Values  []uint16
}

// MaskWriteRegister modifies the holding register at Address to
// (current AND AndMask) OR (OrMask AND NOT AndMask).
type MaskWriteRegister struct {
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// ReadWriteMultipleRegisters writes Values starting at WriteAddress, then reads
// ReadQuantity holding registers starting at ReadAddress, as one operation.
type ReadWriteMultipleRegisters struct {
	ReadAddress  uint16
	ReadQuantity uint16
	WriteAddress uint16
	Values       []uint16
}

// CustomRequest carries any function without a dedicated variant. Data is the
// PDU data without the function code.
type CustomRequest struct {
	Function FunctionCode
	Data     []byte
}

func (ReadCoils) isRequest()                  {}
func (ReadDiscreteInputs) isRequest()         {}
func (ReadHoldingRegisters) isRequest()       {}
func (ReadInputRegisters) isRequest()         {}
func (WriteSingleCoil) isRequest()            {}
func (WriteSingleRegister) isRequest()        {}
func (WriteMultipleCoils) isRequest()         {}
func (WriteMultipleRegisters) isRequest()     {}
func (MaskWriteRegister) isRequest()          {}
func (ReadWriteMultipleRegisters) isRequest() {}
func (CustomRequest) isRequest()              {}

func (ReadCoils) FunctionCode() FunctionCode            { return FunctionReadCoils }
func (ReadDiscreteInputs) FunctionCode() FunctionCode   { return FunctionReadDiscreteInputs }
func (ReadHoldingRegisters) FunctionCode() FunctionCode { return FunctionReadHoldingRegisters }
func (ReadInputRegisters) FunctionCode() FunctionCode   { return FunctionReadInputRegisters }
func (WriteSingleCoil) FunctionCode() FunctionCode      { return FunctionWriteSingleCoil }
func (WriteSingleRegister) FunctionCode() FunctionCode  { return FunctionWriteSingleRegister }
func (WriteMultipleCoils) FunctionCode() FunctionCode   { return FunctionWriteMultipleCoils }
func (WriteMultipleRegisters) FunctionCode() FunctionCode {
	return FunctionWriteMultipleRegisters
}
func (MaskWriteRegister) FunctionCode() FunctionCode { return FunctionMaskWriteRegister }
func (ReadWriteMultipleRegisters) FunctionCode() FunctionCode {
	return FunctionReadWriteMultipleRegisters
}

// FunctionCode returns r.Function.
func (r CustomRequest) FunctionCode() FunctionCode { return r.Function }

// FunctionCodeOf returns the function code of req, or zero if req is nil.
// The adapter uses it to label exception responses before the request is handed
// to the service.
func FunctionCodeOf(req Request) FunctionCode {
	if req == nil {
		return 0
	}

	return req.FunctionCode()
}

// validateRange checks a quantity against [1, maxQuantity] and the address span
// against the 16-bit address space.
func validateRange(addr uint16, quantity int, maxQuantity int) error {
	if quantity <= 0 || quantity > maxQuantity {
		return ExceptionIllegalDataValue
	}
	if int(addr)+quantity > 1<<16 {
		return ExceptionIllegalDataAddress
	}

	return nil
}

// Validate implements Request.
func (r ReadCoils) Validate() error {
	return validateRange(r.Address, int(r.Quantity), MaxReadBits)
}

// Validate implements Request.
func (r ReadDiscreteInputs) Validate() error {
	return validateRange(r.Address, int(r.Quantity), MaxReadBits)
}

// Validate implements Request.
func (r ReadHoldingRegisters) Validate() error {
	return validateRange(r.Address, int(r.Quantity), MaxReadWords)
}

// Validate implements Request.
func (r ReadInputRegisters) Validate() error {
	return validateRange(r.Address, int(r.Quantity), MaxReadWords)
}

// Validate implements Request. A single write is always within limits.
func (WriteSingleCoil) Validate() error { return nil }

// Validate implements Request. A single write is always within limits.
func (WriteSingleRegister) Validate() error { return nil }

// Validate implements Request.
func (r WriteMultipleCoils) Validate() error {
	return validateRange(r.Address, len(r.Values), MaxWriteBits)
}

// Validate implements Request.
func (r WriteMultipleRegisters) Validate() error {
	return validateRange(r.Address, len(r.Values), MaxWriteWords)
}

// Validate implements Request.
func (MaskWriteRegister) Validate() error { return nil }

// Validate implements Request.
func (r ReadWriteMultipleRegisters) Validate() error {
	if err := validateRange(r.ReadAddress, int(r.ReadQuantity), MaxReadWords); err != nil {
		return err
	}

	return validateRange(r.WriteAddress, len(r.Values), MaxReadWriteWords)
}

// Validate implements Request. Custom requests are validated by whoever
// implements the function.
func (CustomRequest) Validate() error { return nil }
