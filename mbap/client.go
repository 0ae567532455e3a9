package mbap

import (
	"net"
	"time"
)

// WriteRequest writes req to conn. A positive timeout bounds the write.
// The Disconnect hint is not part of the wire format and is ignored.
func WriteRequest(conn net.Conn, req RequestADU, timeout time.Duration) error {
	return writeFrame(conn, req.Header, req.PDU, timeout)
}

// ReadResponse reads one response frame from conn. A positive timeout bounds the whole read.
func ReadResponse(conn net.Conn, timeout time.Duration) (ResponseADU, error) {
	var hdr [HeaderLen]byte
	h, pdu, err := readFrame(conn, hdr[:], timeout, timeout)
	if err != nil {
		return ResponseADU{}, err
	}

	return ResponseADU{Header: h, PDU: pdu}, nil
}
