package modbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       ExceptionCode
		isProtocol bool
	}{
		{"nil", nil, 0, false},
		{"exception code", ExceptionIllegalDataAddress, ExceptionIllegalDataAddress, true},
		{"wrapped exception", fmt.Errorf("read register: %w", ExceptionServerDeviceBusy), ExceptionServerDeviceBusy, true},
		{"exception response", ExceptionResponse{Function: FunctionReadCoils, Exception: ExceptionIllegalFunction}, ExceptionIllegalFunction, true},
		{"joined", errors.Join(io.ErrUnexpectedEOF, ExceptionIllegalDataValue), ExceptionIllegalDataValue, true},
		{"io error", io.ErrUnexpectedEOF, 0, false},
		{"context", context.Canceled, 0, false},
		{"invalid PDU", ErrInvalidPDU, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			code, ok := ClassifyError(tt.err)
			require.Equal(tt.isProtocol, ok)
			require.Equal(tt.code, code)
			require.Equal(tt.isProtocol, IsException(tt.err))
		})
	}
}
