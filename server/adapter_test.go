package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/arloliu/go-modbus/mbap"
	"github.com/arloliu/go-modbus/modbus"
	"github.com/stretchr/testify/require"
)

// recordingService returns a fixed outcome and records the requests it receives.
type recordingService struct {
	rsp   modbus.Response
	err   error
	calls []modbus.Request
}

func (s *recordingService) Call(_ context.Context, req modbus.Request) (modbus.Response, error) {
	s.calls = append(s.calls, req)
	return s.rsp, s.err
}

func TestAdapter_Handle(t *testing.T) {
	hdr := mbap.Header{TransactionID: 9, UnitID: 7}
	readInput := modbus.PDU{0x04, 0x00, 0x00, 0x00, 0x01}

	tests := []struct {
		name     string
		pdu      modbus.PDU
		rsp      modbus.Response
		err      error
		expected modbus.PDU
	}{
		{
			name:     "success",
			pdu:      readInput,
			rsp:      modbus.ReadInputRegistersResponse{Values: []uint16{0x33}},
			expected: modbus.PDU{0x04, 0x02, 0x00, 0x33},
		},
		{
			name:     "protocol exception",
			pdu:      readInput,
			err:      modbus.ExceptionIllegalDataAddress,
			expected: modbus.PDU{0x84, 0x02},
		},
		{
			name:     "wrapped protocol exception",
			pdu:      readInput,
			err:      fmt.Errorf("device queue full: %w", modbus.ExceptionServerDeviceBusy),
			expected: modbus.PDU{0x84, 0x06},
		},
		{
			name:     "exception labeled with request function",
			pdu:      modbus.PDU{0x06, 0x00, 0x01, 0x12, 0x34},
			err:      modbus.ExceptionResponse{Function: modbus.FunctionReadCoils, Exception: modbus.ExceptionIllegalFunction},
			expected: modbus.PDU{0x86, 0x01},
		},
		{
			name:     "custom function",
			pdu:      modbus.PDU{0x42, 0x01, 0x02},
			err:      modbus.ExceptionIllegalFunction,
			expected: modbus.PDU{0xC2, 0x01},
		},
		{
			name:     "custom response",
			pdu:      modbus.PDU{0x42, 0x01, 0x02},
			rsp:      modbus.CustomResponse{Function: 0x42, Data: []byte{0xAA}},
			expected: modbus.PDU{0x42, 0xAA},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			svc := &recordingService{rsp: tt.rsp, err: tt.err}
			adapter := NewAdapter(svc)

			rsp, err := adapter.Handle(context.Background(), mbap.RequestADU{Header: hdr, PDU: tt.pdu})
			require.NoError(err)
			require.Equal(hdr, rsp.Header)
			require.Equal(tt.expected, rsp.PDU)
			require.Len(svc.calls, 1)
		})
	}
}

func TestAdapter_RequestPassedToService(t *testing.T) {
	require := require.New(t)

	svc := &recordingService{rsp: modbus.ReadInputRegistersResponse{Values: []uint16{0x33}}}
	adapter := NewAdapter(svc)

	_, err := adapter.Handle(context.Background(), mbap.RequestADU{
		Header: mbap.Header{TransactionID: 9, UnitID: 7},
		PDU:    modbus.PDU{0x04, 0x00, 0x00, 0x00, 0x01},
	})
	require.NoError(err)
	require.Equal([]modbus.Request{modbus.ReadInputRegisters{Address: 0, Quantity: 1}}, svc.calls)
}

func TestAdapter_DisconnectIgnored(t *testing.T) {
	require := require.New(t)

	adapter := NewAdapter(&recordingService{rsp: modbus.ReadInputRegistersResponse{Values: []uint16{0x33}}})
	req := mbap.RequestADU{
		Header: mbap.Header{TransactionID: 9, UnitID: 7},
		PDU:    modbus.PDU{0x04, 0x00, 0x00, 0x00, 0x01},
	}

	expected, err := adapter.Handle(context.Background(), req)
	require.NoError(err)

	req.Disconnect = true
	rsp, err := adapter.Handle(context.Background(), req)
	require.NoError(err)
	require.Equal(expected, rsp)
}

func TestAdapter_Fatal(t *testing.T) {
	hdr := mbap.Header{TransactionID: 1, UnitID: 1}
	readInput := modbus.PDU{0x04, 0x00, 0x00, 0x00, 0x01}
	ioErr := errors.New("backend unreachable")

	t.Run("service error", func(t *testing.T) {
		require := require.New(t)

		rsp, err := NewAdapter(&recordingService{err: ioErr}).
			Handle(context.Background(), mbap.RequestADU{Header: hdr, PDU: readInput})
		require.ErrorIs(err, ioErr)
		require.Equal(mbap.ResponseADU{}, rsp)
	})

	t.Run("undecodable request", func(t *testing.T) {
		require := require.New(t)

		svc := &recordingService{rsp: modbus.ReadInputRegistersResponse{Values: []uint16{1}}}
		rsp, err := NewAdapter(svc).Handle(context.Background(), mbap.RequestADU{Header: hdr, PDU: modbus.PDU{0x04, 0x00}})
		require.ErrorIs(err, ErrDecodeRequest)
		require.ErrorIs(err, modbus.ErrInvalidPDU)
		require.Equal(mbap.ResponseADU{}, rsp)
		require.Empty(svc.calls)
	})

	t.Run("nil response", func(t *testing.T) {
		require := require.New(t)

		_, err := NewAdapter(&recordingService{}).
			Handle(context.Background(), mbap.RequestADU{Header: hdr, PDU: readInput})
		require.ErrorIs(err, ErrNilResponse)
	})

	t.Run("unencodable response", func(t *testing.T) {
		require := require.New(t)

		svc := &recordingService{rsp: modbus.ReadInputRegistersResponse{Values: make([]uint16, 200)}}
		_, err := NewAdapter(svc).Handle(context.Background(), mbap.RequestADU{Header: hdr, PDU: readInput})
		require.ErrorIs(err, ErrEncodeResponse)
	})

	t.Run("canceled context", func(t *testing.T) {
		require := require.New(t)

		ctx, cancel := context.WithCancel(context.Background())
		svc := ServiceFunc(func(_ context.Context, _ modbus.Request) (modbus.Response, error) {
			cancel()
			return modbus.ReadInputRegistersResponse{Values: []uint16{1}}, nil
		})

		rsp, err := NewAdapter(svc).Handle(ctx, mbap.RequestADU{Header: hdr, PDU: readInput})
		require.ErrorIs(err, context.Canceled)
		require.Equal(mbap.ResponseADU{}, rsp)
	})
}
