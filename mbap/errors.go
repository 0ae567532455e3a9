package mbap

import "errors"

var (
	// ErrInvalidProtocolID indicates a frame whose protocol identifier is not zero.
	ErrInvalidProtocolID = errors.New("invalid MBAP protocol identifier")

	// ErrInvalidLength indicates a frame whose length field is outside [2, 254].
	ErrInvalidLength = errors.New("invalid MBAP length")

	// ErrIdleTimeout indicates that no frame started within the idle timeout.
	ErrIdleTimeout = errors.New("idle timeout")
)
