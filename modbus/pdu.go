package modbus

const (
	// MinPDULen is the minimum PDU length in bytes (function code only).
	MinPDULen = 1

	// MaxPDULen is the maximum PDU length in bytes.
	MaxPDULen = 253
)

// Quantity limits of the Modbus application protocol.
const (
	// MaxReadBits is the maximum number of coils or discrete inputs in a single
	// read request.
	MaxReadBits = 2000

	// MaxWriteBits is the maximum number of coils in a single WriteMultipleCoils
	// request.
	MaxWriteBits = 1968

	// MaxReadWords is the maximum number of registers in a single read request.
	MaxReadWords = 125

	// MaxWriteWords is the maximum number of registers in a single
	// WriteMultipleRegisters request.
	MaxWriteWords = 123

	// MaxReadWriteWords is the maximum number of registers written by a single
	// ReadWriteMultipleRegisters request.
	MaxReadWriteWords = 121
)

// Coil values on the wire.
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// PDU is a Modbus protocol data unit: the function code followed by the function
// specific data. It is the opaque payload carried by an envelope.
type PDU []byte

// Function returns the function code of the PDU, or zero for an empty PDU.
func (p PDU) Function() FunctionCode {
	if len(p) == 0 {
		return 0
	}

	return FunctionCode(p[0])
}

// Data returns the PDU data without the function code.
func (p PDU) Data() []byte {
	if len(p) < 1 {
		return nil
	}

	return p[1:]
}

// IsException reports whether the PDU is an exception response.
func (p PDU) IsException() bool {
	return len(p) > 0 && p.Function().IsError()
}

// Clone returns a copy of the PDU which does not share memory with p.
func (p PDU) Clone() PDU {
	if p == nil {
		return nil
	}
	clone := make(PDU, len(p))
	copy(clone, p)

	return clone
}
