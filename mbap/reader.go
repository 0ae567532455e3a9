package mbap

import (
	"net"
	"time"
)

// ReaderConfig holds the limits applied by a Reader.
type ReaderConfig struct {
	// IdleTimeout bounds the wait for the next request header. Zero means no limit.
	IdleTimeout time.Duration
	// FrameTimeout bounds the read of a PDU once its header has arrived. Zero means no limit.
	FrameTimeout time.Duration
	// MaxRequests is the number of requests served on one connection before the
	// Disconnect hint is raised. Zero means unlimited.
	MaxRequests int
}

// Reader reads request frames from a connection.
//
// Reader is NOT goroutine-safe. Only one ReadRequest call may be active at a time,
// consistent with the one-request-at-a-time serving of a connection.
type Reader struct {
	conn  net.Conn
	cfg   ReaderConfig
	count int
	hdr   [HeaderLen]byte
}

// NewReader creates a Reader for conn.
func NewReader(conn net.Conn, cfg ReaderConfig) *Reader {
	return &Reader{conn: conn, cfg: cfg}
}

// ReadRequest reads the next request frame.
//
// Errors are fatal for the connection: an invalid header, a truncated PDU, a timeout
// or a closed connection. io.EOF is returned wrapped when the peer closed the
// connection between frames.
func (r *Reader) ReadRequest() (RequestADU, error) {
	h, pdu, err := readFrame(r.conn, r.hdr[:], r.cfg.IdleTimeout, r.cfg.FrameTimeout)
	if err != nil {
		return RequestADU{}, err
	}

	r.count++
	adu := RequestADU{Header: h, PDU: pdu}
	if r.cfg.MaxRequests > 0 && r.count >= r.cfg.MaxRequests {
		adu.Disconnect = true
	}

	return adu, nil
}

// Count returns the number of requests read so far.
func (r *Reader) Count() int {
	return r.count
}

// WriteResponse writes rsp to conn. A positive timeout bounds the write.
func WriteResponse(conn net.Conn, rsp ResponseADU, timeout time.Duration) error {
	return writeFrame(conn, rsp.Header, rsp.PDU, timeout)
}
