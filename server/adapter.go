package server

import (
	"context"
	"fmt"

	"github.com/arloliu/go-modbus/mbap"
	"github.com/arloliu/go-modbus/modbus"
)

// Adapter bridges a Service to MBAP envelopes.
//
// An Adapter holds no mutable state; it is safe for concurrent use when the wrapped
// Service is.
type Adapter struct {
	service Service
}

// NewAdapter returns an Adapter wrapping service.
func NewAdapter(service Service) *Adapter {
	return &Adapter{service: service}
}

// Handle processes one request envelope.
//
// The function code used to label an exception response is taken from the decoded
// request before the service is called. The response carries the header of req
// unchanged. The Disconnect hint of req is left to the transport.
//
// A non-nil error is fatal: no response must be written and the connection should be
// closed. This covers undecodable requests, service errors that are not protocol
// exceptions, unencodable responses and cancellation of ctx.
func (a *Adapter) Handle(ctx context.Context, req mbap.RequestADU) (mbap.ResponseADU, error) {
	hdr := req.Header

	request, err := modbus.DecodeRequest(req.PDU)
	if err != nil {
		return mbap.ResponseADU{}, fmt.Errorf("%w: %w", ErrDecodeRequest, err)
	}

	fc := modbus.FunctionCodeOf(request)

	rsp, err := a.service.Call(ctx, request)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return mbap.ResponseADU{}, fmt.Errorf("%s %s: %w", hdr, fc, ctxErr)
	}

	if err != nil {
		code, ok := modbus.ClassifyError(err)
		if !ok {
			return mbap.ResponseADU{}, fmt.Errorf("%s %s: %w", hdr, fc, err)
		}

		exc := modbus.ExceptionResponse{Function: fc, Exception: code}

		return mbap.ResponseADU{Header: hdr, PDU: exc.PDU()}, nil
	}

	if rsp == nil {
		return mbap.ResponseADU{}, fmt.Errorf("%s %s: %w", hdr, fc, ErrNilResponse)
	}

	pdu, err := modbus.EncodeResponse(rsp)
	if err != nil {
		return mbap.ResponseADU{}, fmt.Errorf("%w: %s %s: %w", ErrEncodeResponse, hdr, fc, err)
	}

	return mbap.ResponseADU{Header: hdr, PDU: pdu}, nil
}
