package server

import (
	"context"

	"github.com/arloliu/go-modbus/modbus"
)

// Service handles decoded Modbus requests.
//
// Call returns a response on success. A returned error that is, or wraps, a
// modbus.ExceptionCode is answered with an exception response; any other error closes
// the connection without a response.
type Service interface {
	Call(ctx context.Context, req modbus.Request) (modbus.Response, error)
}

// ServiceFunc adapts an ordinary function to the Service interface.
type ServiceFunc func(ctx context.Context, req modbus.Request) (modbus.Response, error)

// Call calls f(ctx, req).
func (f ServiceFunc) Call(ctx context.Context, req modbus.Request) (modbus.Response, error) {
	return f(ctx, req)
}

// ServiceFactory creates the Service of each accepted connection.
//
// NewService is called from the accept loops, possibly concurrently when more than one
// accept loop is configured.
type ServiceFactory interface {
	NewService() (Service, error)
}

// FactoryFunc adapts an ordinary function to the ServiceFactory interface.
type FactoryFunc func() (Service, error)

// NewService calls f().
func (f FactoryFunc) NewService() (Service, error) {
	return f()
}
