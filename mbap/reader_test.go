package mbap

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/stretchr/testify/require"
)

// buildFrame builds a raw MBAP frame without validating its fields.
func buildFrame(tid, pid, length uint16, unit uint8, pdu []byte) []byte {
	frame := []byte{
		byte(tid >> 8), byte(tid),
		byte(pid >> 8), byte(pid),
		byte(length >> 8), byte(length),
		unit,
	}

	return append(frame, pdu...)
}

// feed writes data to the server end of a pipe in the background, then closes it when
// closeAfter is set.
func feed(conn net.Conn, data []byte, closeAfter bool) {
	go func() {
		if len(data) > 0 {
			_, _ = conn.Write(data)
		}
		if closeAfter {
			_ = conn.Close()
		}
	}()
}

func TestReader_ReadRequest(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	pdu := []byte{0x04, 0x00, 0x00, 0x00, 0x01}
	feed(client, buildFrame(9, 0, 6, 7, pdu), false)

	r := NewReader(server, ReaderConfig{FrameTimeout: time.Second})
	adu, err := r.ReadRequest()
	require.NoError(err)
	require.Equal(Header{TransactionID: 9, UnitID: 7}, adu.Header)
	require.Equal(modbus.PDU(pdu), adu.PDU)
	require.False(adu.Disconnect)
	require.Equal(1, r.Count())
}

func TestReader_InvalidHeader(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{name: "protocol id", frame: buildFrame(1, 1, 2, 1, []byte{0x03}), wantErr: ErrInvalidProtocolID},
		{name: "length zero", frame: buildFrame(1, 0, 0, 1, nil), wantErr: ErrInvalidLength},
		{name: "length one", frame: buildFrame(1, 0, 1, 1, nil), wantErr: ErrInvalidLength},
		{name: "length too big", frame: buildFrame(1, 0, 255, 1, nil), wantErr: ErrInvalidLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			feed(client, tt.frame, false)

			r := NewReader(server, ReaderConfig{FrameTimeout: time.Second})
			_, err := r.ReadRequest()
			require.ErrorIs(err, tt.wantErr)
			require.Zero(r.Count())
		})
	}
}

func TestReader_ConnectionErrors(t *testing.T) {
	t.Run("peer closed between frames", func(t *testing.T) {
		require := require.New(t)

		client, server := net.Pipe()
		defer server.Close()

		feed(client, nil, true)

		_, err := NewReader(server, ReaderConfig{}).ReadRequest()
		require.ErrorIs(err, io.EOF)
	})

	t.Run("truncated PDU", func(t *testing.T) {
		require := require.New(t)

		client, server := net.Pipe()
		defer server.Close()

		feed(client, buildFrame(1, 0, 6, 1, []byte{0x03, 0x00}), true)

		_, err := NewReader(server, ReaderConfig{FrameTimeout: time.Second}).ReadRequest()
		require.ErrorIs(err, io.ErrUnexpectedEOF)
	})

	t.Run("idle timeout", func(t *testing.T) {
		require := require.New(t)

		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		_, err := NewReader(server, ReaderConfig{IdleTimeout: 20 * time.Millisecond}).ReadRequest()
		require.ErrorIs(err, ErrIdleTimeout)
	})

	t.Run("frame timeout", func(t *testing.T) {
		require := require.New(t)

		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		feed(client, buildFrame(1, 0, 6, 1, nil), false)

		_, err := NewReader(server, ReaderConfig{FrameTimeout: 20 * time.Millisecond}).ReadRequest()
		require.Error(err)
		require.False(errors.Is(err, ErrIdleTimeout))

		var netErr net.Error
		require.ErrorAs(err, &netErr)
		require.True(netErr.Timeout())
	})
}

func TestReader_MaxRequests(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	frame := buildFrame(1, 0, 2, 1, []byte{0x2B})
	feed(client, append(append([]byte{}, frame...), frame...), false)

	r := NewReader(server, ReaderConfig{MaxRequests: 2})

	adu, err := r.ReadRequest()
	require.NoError(err)
	require.False(adu.Disconnect)

	adu, err = r.ReadRequest()
	require.NoError(err)
	require.True(adu.Disconnect)
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	req := RequestADU{
		Header:     Header{TransactionID: 0xBEEF, UnitID: 0xFF},
		PDU:        modbus.PDU{0x03, 0x00, 0x10, 0x00, 0x02},
		Disconnect: true,
	}
	rsp := ResponseADU{
		Header: req.Header,
		PDU:    modbus.PDU{0x03, 0x04, 0x00, 0x01, 0x00, 0x02},
	}

	errCh := make(chan error, 1)
	go func() {
		if err := WriteRequest(client, req, time.Second); err != nil {
			errCh <- err
			return
		}
		got, err := ReadResponse(client, time.Second)
		if err == nil && (got.Header != rsp.Header || string(got.PDU) != string(rsp.PDU)) {
			err = errors.New("response mismatch")
		}
		errCh <- err
	}()

	got, err := NewReader(server, ReaderConfig{}).ReadRequest()
	require.NoError(err)
	require.Equal(req.Header, got.Header)
	require.Equal(req.PDU, got.PDU)
	require.False(got.Disconnect)

	require.NoError(WriteResponse(server, rsp, time.Second))
	require.NoError(<-errCh)
}

func TestEncodeFrame(t *testing.T) {
	require := require.New(t)

	frame, err := EncodeFrame(Header{TransactionID: 9, UnitID: 7}, modbus.PDU{0x04, 0x02, 0x00, 0x33})
	require.NoError(err)
	require.Equal([]byte{0x00, 0x09, 0x00, 0x00, 0x00, 0x05, 0x07, 0x04, 0x02, 0x00, 0x33}, frame)

	_, err = EncodeFrame(Header{}, nil)
	require.ErrorIs(err, ErrInvalidLength)

	_, err = EncodeFrame(Header{}, make(modbus.PDU, modbus.MaxPDULen+1))
	require.ErrorIs(err, ErrInvalidLength)
}
