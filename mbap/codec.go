package mbap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arloliu/go-modbus/modbus"
)

// decodeHeader validates hdr and returns the envelope header and the PDU length.
func decodeHeader(hdr []byte) (Header, int, error) {
	h := Header{
		TransactionID: binary.BigEndian.Uint16(hdr[0:2]),
		UnitID:        hdr[6],
	}

	if pid := binary.BigEndian.Uint16(hdr[2:4]); pid != ProtocolID {
		return h, 0, fmt.Errorf("%w: %d", ErrInvalidProtocolID, pid)
	}

	length := int(binary.BigEndian.Uint16(hdr[4:6]))
	if length < 1+modbus.MinPDULen || length > 1+modbus.MaxPDULen {
		return h, 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	return h, length - 1, nil
}

// appendFrame appends the MBAP frame of h and pdu to dst.
func appendFrame(dst []byte, h Header, pdu modbus.PDU) ([]byte, error) {
	if len(pdu) < modbus.MinPDULen || len(pdu) > modbus.MaxPDULen {
		return nil, fmt.Errorf("%w: PDU length %d", ErrInvalidLength, len(pdu))
	}

	dst = binary.BigEndian.AppendUint16(dst, h.TransactionID)
	dst = binary.BigEndian.AppendUint16(dst, ProtocolID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(pdu)+1)) //nolint:gosec // bounded by MaxPDULen
	dst = append(dst, h.UnitID)
	dst = append(dst, pdu...)

	return dst, nil
}

// EncodeFrame returns the MBAP frame of h and pdu.
func EncodeFrame(h Header, pdu modbus.PDU) ([]byte, error) {
	return appendFrame(make([]byte, 0, HeaderLen+len(pdu)), h, pdu)
}

// writeFrame writes one frame to conn. A positive timeout bounds the write.
func writeFrame(conn net.Conn, h Header, pdu modbus.PDU, timeout time.Duration) error {
	var buf [MaxFrameLen]byte
	frame, err := appendFrame(buf[:0], h, pdu)
	if err != nil {
		return err
	}

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// readFrame reads one frame from conn into hdr and a fresh PDU buffer.
//
// idleTimeout bounds the wait for the header (0 waits forever), frameTimeout bounds the
// read of the PDU body once the header has arrived.
func readFrame(conn net.Conn, hdr []byte, idleTimeout, frameTimeout time.Duration) (Header, modbus.PDU, error) {
	var deadline time.Time
	if idleTimeout > 0 {
		deadline = time.Now().Add(idleTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return Header{}, nil, fmt.Errorf("set idle deadline: %w", err)
	}

	if _, err := io.ReadFull(conn, hdr); err != nil {
		if isTimeout(err) {
			return Header{}, nil, fmt.Errorf("read MBAP header: %w: %w", ErrIdleTimeout, err)
		}

		return Header{}, nil, fmt.Errorf("read MBAP header: %w", err)
	}

	h, pduLen, err := decodeHeader(hdr)
	if err != nil {
		return h, nil, err
	}

	if frameTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(frameTimeout)); err != nil {
			return h, nil, fmt.Errorf("set frame deadline: %w", err)
		}
	}

	pdu := make(modbus.PDU, pduLen)
	if _, err := io.ReadFull(conn, pdu); err != nil {
		return h, nil, fmt.Errorf("read PDU: %w", err)
	}

	return h, pdu, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
