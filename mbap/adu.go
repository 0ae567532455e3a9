package mbap

import (
	"fmt"

	"github.com/arloliu/go-modbus/modbus"
)

const (
	// HeaderLen is the length of the MBAP header in bytes.
	HeaderLen = 7

	// MaxFrameLen is the maximum length of a complete MBAP frame in bytes.
	MaxFrameLen = HeaderLen + modbus.MaxPDULen

	// ProtocolID is the only protocol identifier defined for Modbus.
	ProtocolID uint16 = 0
)

// Header carries the envelope fields a response must echo from its request.
// Two headers are equal when both fields are equal.
type Header struct {
	// TransactionID is the correlation token chosen by the client.
	TransactionID uint16
	// UnitID is the address of the target device behind the endpoint.
	UnitID uint8
}

func (h Header) String() string {
	return fmt.Sprintf("tid=%d unit=%d", h.TransactionID, h.UnitID)
}

// RequestADU is an inbound request envelope.
type RequestADU struct {
	Header Header
	PDU    modbus.PDU
	// Disconnect asks the transport to close the connection after the response
	// to this request has been written.
	Disconnect bool
}

// ResponseADU is an outbound response envelope.
type ResponseADU struct {
	Header Header
	PDU    modbus.PDU
}
