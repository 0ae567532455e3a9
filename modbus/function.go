package modbus

import (
	"fmt"
	"sort"
)

// FunctionCode describes a Modbus function code.
type FunctionCode uint8

// Function code constants.
const (
	FunctionReadCoils                  FunctionCode = 0x01
	FunctionReadDiscreteInputs         FunctionCode = 0x02
	FunctionReadHoldingRegisters       FunctionCode = 0x03
	FunctionReadInputRegisters         FunctionCode = 0x04
	FunctionWriteSingleCoil            FunctionCode = 0x05
	FunctionWriteSingleRegister        FunctionCode = 0x06
	FunctionReadExceptionStatus        FunctionCode = 0x07
	FunctionDiagnostic                 FunctionCode = 0x08
	FunctionGetComEventCounter         FunctionCode = 0x0B
	FunctionGetComEventLog             FunctionCode = 0x0C
	FunctionWriteMultipleCoils         FunctionCode = 0x0F
	FunctionWriteMultipleRegisters     FunctionCode = 0x10
	FunctionReportServerID             FunctionCode = 0x11
	FunctionReadFileRecord             FunctionCode = 0x14
	FunctionWriteFileRecord            FunctionCode = 0x15
	FunctionMaskWriteRegister          FunctionCode = 0x16
	FunctionReadWriteMultipleRegisters FunctionCode = 0x17
	FunctionReadFIFOQueue              FunctionCode = 0x18
	FunctionReadDeviceID               FunctionCode = 0x2B
)

// Ranges of user defined function codes.
const (
	FunctionUserDefined1Start FunctionCode = 65
	FunctionUserDefined1End   FunctionCode = 72
	FunctionUserDefined2Start FunctionCode = 100
	FunctionUserDefined2End   FunctionCode = 110
)

// FunctionError is the bit of a function code that marks an exception response.
const FunctionError FunctionCode = 0x80

// reservedFunctionCodes must be sorted in increasing order.
var reservedFunctionCodes = [...]FunctionCode{
	9, 10, 13, 14, 41, 42, 90, 91, 125, 126, 127,
}

var functionNames = map[FunctionCode]string{
	FunctionReadCoils:                  "ReadCoils",
	FunctionReadDiscreteInputs:         "ReadDiscreteInputs",
	FunctionReadHoldingRegisters:       "ReadHoldingRegisters",
	FunctionReadInputRegisters:         "ReadInputRegisters",
	FunctionWriteSingleCoil:            "WriteSingleCoil",
	FunctionWriteSingleRegister:        "WriteSingleRegister",
	FunctionReadExceptionStatus:        "ReadExceptionStatus",
	FunctionDiagnostic:                 "Diagnostic",
	FunctionGetComEventCounter:         "GetComEventCounter",
	FunctionGetComEventLog:             "GetComEventLog",
	FunctionWriteMultipleCoils:         "WriteMultipleCoils",
	FunctionWriteMultipleRegisters:     "WriteMultipleRegisters",
	FunctionReportServerID:             "ReportServerID",
	FunctionReadFileRecord:             "ReadFileRecord",
	FunctionWriteFileRecord:            "WriteFileRecord",
	FunctionMaskWriteRegister:          "MaskWriteRegister",
	FunctionReadWriteMultipleRegisters: "ReadWriteMultipleRegisters",
	FunctionReadFIFOQueue:              "ReadFIFOQueue",
	FunctionReadDeviceID:               "ReadDeviceID",
}

// String returns the name of the function, or its hexadecimal value if the
// function code has no well-known name.
func (fc FunctionCode) String() string {
	if name, ok := functionNames[fc&^FunctionError]; ok {
		if fc.IsError() {
			return name + "(exception)"
		}

		return name
	}

	return fmt.Sprintf("0x%02X", uint8(fc))
}

// IsReserved reports whether fc is reserved by the Modbus application protocol.
func (fc FunctionCode) IsReserved() bool {
	fc &^= FunctionError
	idx := sort.Search(len(reservedFunctionCodes), func(i int) bool {
		return fc <= reservedFunctionCodes[i]
	})

	return idx < len(reservedFunctionCodes) && fc == reservedFunctionCodes[idx]
}

// IsUserDefined reports whether fc lies in one of the user defined ranges.
func (fc FunctionCode) IsUserDefined() bool {
	fc &^= FunctionError

	return (fc >= FunctionUserDefined1Start && fc <= FunctionUserDefined1End) ||
		(fc >= FunctionUserDefined2Start && fc <= FunctionUserDefined2End)
}

// IsError reports whether fc is the function code of an exception response.
func (fc FunctionCode) IsError() bool {
	return fc&FunctionError != 0
}

// AsError returns fc with the exception response bit set.
func (fc FunctionCode) AsError() FunctionCode {
	return fc | FunctionError
}
