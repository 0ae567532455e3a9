package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// ErrServicePanic wraps the value of a panic raised by a Service.
var ErrServicePanic = errors.New("service panic")

// Recover converts a panic of the wrapped Service into an ErrServicePanic error, which is
// fatal for the connection.
func Recover() Middleware {
	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (rsp modbus.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					rsp, err = nil, panicError(req, r)
				}
			}()

			return next.Call(ctx, req)
		})
	}
}

func panicError(req modbus.Request, r any) error {
	return fmt.Errorf("%w: %s: %v", ErrServicePanic, modbus.FunctionCodeOf(req), r)
}
