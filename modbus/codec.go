package modbus

import (
	"encoding/binary"
	"fmt"
)

// invalidPDU returns an ErrInvalidPDU error describing a malformed PDU of function fc.
func invalidPDU(fc FunctionCode, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPDU, fc, fmt.Sprintf(format, args...))
}

// checkPDULen validates the overall PDU length.
func checkPDULen(pdu PDU) error {
	if len(pdu) < MinPDULen {
		return fmt.Errorf("%w: %w", ErrInvalidPDU, ErrEmptyPDU)
	}
	if len(pdu) > MaxPDULen {
		return fmt.Errorf("%w: %w", ErrInvalidPDU, ErrPDUTooLong)
	}

	return nil
}

// decodeAddrQty decodes the common 4-byte data layout: 2 bytes address followed
// by 2 bytes quantity or value.
func decodeAddrQty(fc FunctionCode, data []byte) (uint16, uint16, error) {
	if len(data) != 4 {
		return 0, 0, invalidPDU(fc, "data length %d, expected 4", len(data))
	}

	return binary.BigEndian.Uint16(data[0:2]), binary.BigEndian.Uint16(data[2:4]), nil
}

func decodeCoilValue(fc FunctionCode, v uint16) (bool, error) {
	switch v {
	case coilOn:
		return true, nil
	case coilOff:
		return false, nil
	default:
		return false, invalidPDU(fc, "coil value 0x%04X", v)
	}
}

func encodeCoilValue(v bool) uint16 {
	if v {
		return coilOn
	}

	return coilOff
}

func decodeWords(data []byte) []uint16 {
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[2*i:])
	}

	return words
}

func appendWords(dst []byte, words []uint16) []byte {
	for _, w := range words {
		dst = binary.BigEndian.AppendUint16(dst, w)
	}

	return dst
}

// appendByteCount appends n as the one byte count field, failing if it does not
// fit into a byte.
func appendByteCount(dst []byte, fc FunctionCode, n int) ([]byte, error) {
	if n > 0xFF {
		return nil, fmt.Errorf("%w: %s: byte count %d", ErrPDUTooLong, fc, n)
	}

	return append(dst, byte(n)), nil
}

// DecodeRequest converts a request PDU into its Request variant.
//
// Function codes without a dedicated variant decode to CustomRequest. Structural
// errors (wrong data length, inconsistent byte counts, invalid coil values) wrap
// ErrInvalidPDU. DecodeRequest does not apply quantity limits; see
// Request.Validate.
func DecodeRequest(pdu PDU) (Request, error) {
	if err := checkPDULen(pdu); err != nil {
		return nil, err
	}

	fc := pdu.Function()
	data := pdu.Data()

	if fc.IsError() {
		return nil, invalidPDU(fc, "exception bit set in request")
	}

	switch fc {
	case FunctionReadCoils:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return ReadCoils{Address: addr, Quantity: qty}, nil

	case FunctionReadDiscreteInputs:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return ReadDiscreteInputs{Address: addr, Quantity: qty}, nil

	case FunctionReadHoldingRegisters:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return ReadHoldingRegisters{Address: addr, Quantity: qty}, nil

	case FunctionReadInputRegisters:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return ReadInputRegisters{Address: addr, Quantity: qty}, nil

	case FunctionWriteSingleCoil:
		addr, raw, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}
		value, err := decodeCoilValue(fc, raw)
		if err != nil {
			return nil, err
		}

		return WriteSingleCoil{Address: addr, Value: value}, nil

	case FunctionWriteSingleRegister:
		addr, value, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return WriteSingleRegister{Address: addr, Value: value}, nil

	case FunctionWriteMultipleCoils:
		if len(data) < 5 {
			return nil, invalidPDU(fc, "data length %d, expected at least 5", len(data))
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		qty := int(binary.BigEndian.Uint16(data[2:4]))
		n := int(data[4])
		if n != len(data)-5 || n != (qty+7)/8 {
			return nil, invalidPDU(fc, "byte count %d does not match quantity %d and data length %d", n, qty, len(data)-5)
		}
		if rem := qty % 8; rem != 0 && data[len(data)-1]>>rem != 0 {
			return nil, invalidPDU(fc, "non-zero padding bits")
		}

		return WriteMultipleCoils{Address: addr, Values: unpackBits(data[5:], qty)}, nil

	case FunctionWriteMultipleRegisters:
		if len(data) < 5 {
			return nil, invalidPDU(fc, "data length %d, expected at least 5", len(data))
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		qty := int(binary.BigEndian.Uint16(data[2:4]))
		n := int(data[4])
		if n != len(data)-5 || n != 2*qty {
			return nil, invalidPDU(fc, "byte count %d does not match quantity %d and data length %d", n, qty, len(data)-5)
		}

		return WriteMultipleRegisters{Address: addr, Values: decodeWords(data[5:])}, nil

	case FunctionMaskWriteRegister:
		if len(data) != 6 {
			return nil, invalidPDU(fc, "data length %d, expected 6", len(data))
		}

		return MaskWriteRegister{
			Address: binary.BigEndian.Uint16(data[0:2]),
			AndMask: binary.BigEndian.Uint16(data[2:4]),
			OrMask:  binary.BigEndian.Uint16(data[4:6]),
		}, nil

	case FunctionReadWriteMultipleRegisters:
		if len(data) < 9 {
			return nil, invalidPDU(fc, "data length %d, expected at least 9", len(data))
		}
		writeQty := int(binary.BigEndian.Uint16(data[6:8]))
		n := int(data[8])
		if n != len(data)-9 || n != 2*writeQty {
			return nil, invalidPDU(fc, "byte count %d does not match quantity %d and data length %d", n, writeQty, len(data)-9)
		}

		return ReadWriteMultipleRegisters{
			ReadAddress:  binary.BigEndian.Uint16(data[0:2]),
			ReadQuantity: binary.BigEndian.Uint16(data[2:4]),
			WriteAddress: binary.BigEndian.Uint16(data[4:6]),
			Values:       decodeWords(data[9:]),
		}, nil

	default:
		return CustomRequest{Function: fc, Data: PDU(data).Clone()}, nil
	}
}

// EncodeRequest converts req into a request PDU.
func EncodeRequest(req Request) (PDU, error) {
	var (
		pdu PDU
		err error
	)

	switch r := req.(type) {
	case ReadCoils:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case ReadDiscreteInputs:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case ReadHoldingRegisters:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case ReadInputRegisters:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case WriteSingleCoil:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, encodeCoilValue(r.Value)})
	case WriteSingleRegister:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Value})
	case WriteMultipleCoils:
		packed := packBits(r.Values)
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, uint16(len(r.Values))}) //nolint:gosec
		if pdu, err = appendByteCount(pdu, r.FunctionCode(), len(packed)); err == nil {
			pdu = append(pdu, packed...)
		}
	case WriteMultipleRegisters:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, uint16(len(r.Values))}) //nolint:gosec
		if pdu, err = appendByteCount(pdu, r.FunctionCode(), 2*len(r.Values)); err == nil {
			pdu = appendWords(pdu, r.Values)
		}
	case MaskWriteRegister:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.AndMask, r.OrMask})
	case ReadWriteMultipleRegisters:
		pdu = appendWords(PDU{byte(r.FunctionCode())},
			[]uint16{r.ReadAddress, r.ReadQuantity, r.WriteAddress, uint16(len(r.Values))}) //nolint:gosec
		if pdu, err = appendByteCount(pdu, r.FunctionCode(), 2*len(r.Values)); err == nil {
			pdu = appendWords(pdu, r.Values)
		}
	case CustomRequest:
		if r.Function.IsError() {
			return nil, invalidPDU(r.Function, "exception bit set in request")
		}
		pdu = append(PDU{byte(r.Function)}, r.Data...)
	default:
		return nil, fmt.Errorf("%w: request %T", ErrUnknownVariant, req)
	}

	if err != nil {
		return nil, err
	}
	if err := checkPDULen(pdu); err != nil {
		return nil, err
	}

	return pdu, nil
}

// EncodeResponse converts rsp into a response PDU.
//
// It fails with ErrPDUTooLong if the response does not fit into a PDU, and with
// ErrUnknownVariant for a nil response.
func EncodeResponse(rsp Response) (PDU, error) {
	var (
		pdu PDU
		err error
	)

	switch r := rsp.(type) {
	case ReadCoilsResponse:
		pdu, err = appendBits(PDU{byte(r.FunctionCode())}, r.FunctionCode(), r.Values)
	case ReadDiscreteInputsResponse:
		pdu, err = appendBits(PDU{byte(r.FunctionCode())}, r.FunctionCode(), r.Values)
	case ReadHoldingRegistersResponse:
		pdu, err = appendRegisters(PDU{byte(r.FunctionCode())}, r.FunctionCode(), r.Values)
	case ReadInputRegistersResponse:
		pdu, err = appendRegisters(PDU{byte(r.FunctionCode())}, r.FunctionCode(), r.Values)
	case WriteSingleCoilResponse:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, encodeCoilValue(r.Value)})
	case WriteSingleRegisterResponse:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Value})
	case WriteMultipleCoilsResponse:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case WriteMultipleRegistersResponse:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.Quantity})
	case MaskWriteRegisterResponse:
		pdu = appendWords(PDU{byte(r.FunctionCode())}, []uint16{r.Address, r.AndMask, r.OrMask})
	case ReadWriteMultipleRegistersResponse:
		pdu, err = appendRegisters(PDU{byte(r.FunctionCode())}, r.FunctionCode(), r.Values)
	case CustomResponse:
		if r.Function.IsError() {
			return nil, invalidPDU(r.Function, "exception bit set in response")
		}
		pdu = append(PDU{byte(r.Function)}, r.Data...)
	default:
		return nil, fmt.Errorf("%w: response %T", ErrUnknownVariant, rsp)
	}

	if err != nil {
		return nil, err
	}
	if err := checkPDULen(pdu); err != nil {
		return nil, err
	}

	return pdu, nil
}

func appendBits(dst PDU, fc FunctionCode, values []bool) (PDU, error) {
	packed := packBits(values)
	dst, err := appendByteCount(dst, fc, len(packed))
	if err != nil {
		return nil, err
	}

	return append(dst, packed...), nil
}

func appendRegisters(dst PDU, fc FunctionCode, values []uint16) (PDU, error) {
	dst, err := appendByteCount(dst, fc, 2*len(values))
	if err != nil {
		return nil, err
	}

	return appendWords(dst, values), nil
}

// decodeByteCounted returns the payload following a one byte count field.
func decodeByteCounted(fc FunctionCode, data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, invalidPDU(fc, "missing byte count")
	}
	n := int(data[0])
	if n != len(data)-1 {
		return nil, invalidPDU(fc, "byte count %d does not match data length %d", n, len(data)-1)
	}

	return data[1:], nil
}

func decodeRegisters(fc FunctionCode, data []byte) ([]uint16, error) {
	payload, err := decodeByteCounted(fc, data)
	if err != nil {
		return nil, err
	}
	if len(payload)%2 != 0 {
		return nil, invalidPDU(fc, "odd register byte count %d", len(payload))
	}

	return decodeWords(payload), nil
}

// DecodeResponse converts a response PDU into its Response variant.
//
// An exception PDU yields a nil Response and an ExceptionResponse error. Coil and
// discrete input values are returned padded to a multiple of eight; use
// DecodeResponseFor to trim them to the requested quantity.
func DecodeResponse(pdu PDU) (Response, error) {
	if err := checkPDULen(pdu); err != nil {
		return nil, err
	}

	fc := pdu.Function()
	data := pdu.Data()

	if fc.IsError() {
		if len(data) != 1 {
			return nil, invalidPDU(fc, "exception data length %d, expected 1", len(data))
		}

		return nil, ExceptionResponse{Function: fc &^ FunctionError, Exception: ExceptionCode(data[0])}
	}

	switch fc {
	case FunctionReadCoils, FunctionReadDiscreteInputs:
		payload, err := decodeByteCounted(fc, data)
		if err != nil {
			return nil, err
		}
		values := unpackBits(payload, 8*len(payload))
		if fc == FunctionReadCoils {
			return ReadCoilsResponse{Values: values}, nil
		}

		return ReadDiscreteInputsResponse{Values: values}, nil

	case FunctionReadHoldingRegisters, FunctionReadInputRegisters, FunctionReadWriteMultipleRegisters:
		values, err := decodeRegisters(fc, data)
		if err != nil {
			return nil, err
		}
		switch fc { //nolint:exhaustive
		case FunctionReadHoldingRegisters:
			return ReadHoldingRegistersResponse{Values: values}, nil
		case FunctionReadInputRegisters:
			return ReadInputRegistersResponse{Values: values}, nil
		default:
			return ReadWriteMultipleRegistersResponse{Values: values}, nil
		}

	case FunctionWriteSingleCoil:
		addr, raw, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}
		value, err := decodeCoilValue(fc, raw)
		if err != nil {
			return nil, err
		}

		return WriteSingleCoilResponse{Address: addr, Value: value}, nil

	case FunctionWriteSingleRegister:
		addr, value, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return WriteSingleRegisterResponse{Address: addr, Value: value}, nil

	case FunctionWriteMultipleCoils:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return WriteMultipleCoilsResponse{Address: addr, Quantity: qty}, nil

	case FunctionWriteMultipleRegisters:
		addr, qty, err := decodeAddrQty(fc, data)
		if err != nil {
			return nil, err
		}

		return WriteMultipleRegistersResponse{Address: addr, Quantity: qty}, nil

	case FunctionMaskWriteRegister:
		if len(data) != 6 {
			return nil, invalidPDU(fc, "data length %d, expected 6", len(data))
		}

		return MaskWriteRegisterResponse{
			Address: binary.BigEndian.Uint16(data[0:2]),
			AndMask: binary.BigEndian.Uint16(data[2:4]),
			OrMask:  binary.BigEndian.Uint16(data[4:6]),
		}, nil

	default:
		return CustomResponse{Function: fc, Data: PDU(data).Clone()}, nil
	}
}

// DecodeResponseFor decodes pdu as the response to req.
//
// In addition to DecodeResponse, it verifies that the response belongs to the
// function of req and trims coil and discrete input values to the requested
// quantity.
func DecodeResponseFor(req Request, pdu PDU) (Response, error) {
	fc := FunctionCodeOf(req)
	if got := pdu.Function() &^ FunctionError; len(pdu) > 0 && got != fc {
		return nil, fmt.Errorf("%w: request %s, response %s", ErrFunctionMismatch, fc, got)
	}

	rsp, err := DecodeResponse(pdu)
	if err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case ReadCoils:
		values := rsp.(ReadCoilsResponse).Values //nolint:forcetypeassert
		if len(values) < int(r.Quantity) {
			return nil, invalidPDU(fc, "%d values for quantity %d", len(values), r.Quantity)
		}

		return ReadCoilsResponse{Values: values[:r.Quantity]}, nil

	case ReadDiscreteInputs:
		values := rsp.(ReadDiscreteInputsResponse).Values //nolint:forcetypeassert
		if len(values) < int(r.Quantity) {
			return nil, invalidPDU(fc, "%d values for quantity %d", len(values), r.Quantity)
		}

		return ReadDiscreteInputsResponse{Values: values[:r.Quantity]}, nil
	}

	return rsp, nil
}
