package server

import "errors"

var (
	// ErrDecodeRequest indicates a request PDU that could not be decoded.
	ErrDecodeRequest = errors.New("decode request")

	// ErrEncodeResponse indicates a service response that could not be encoded.
	ErrEncodeResponse = errors.New("encode response")

	// ErrNilResponse indicates that a service returned neither a response nor an error.
	ErrNilResponse = errors.New("service returned nil response")

	// ErrFactoryPanic indicates that the service factory panicked while a connection was set up.
	ErrFactoryPanic = errors.New("service factory panic")

	// ErrServerConfigNil indicates that a nil ServerConfig was provided.
	ErrServerConfigNil = errors.New("server config is nil")

	// ErrFactoryNil indicates that a nil ServiceFactory was provided.
	ErrFactoryNil = errors.New("service factory is nil")

	// ErrServerClosed is returned by Serve and Listen after Close.
	ErrServerClosed = errors.New("server closed")

	// ErrServerRunning is returned by Serve when the server is already serving.
	ErrServerRunning = errors.New("server already serving")
)
