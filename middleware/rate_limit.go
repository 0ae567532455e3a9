package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// RateLimit admits at most r requests per second with bursts of burst requests, using a
// token bucket shared by every Service it wraps. Requests over the limit are answered
// with ExceptionServerDeviceBusy.
func RateLimit(r rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(r, burst)

	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (modbus.Response, error) {
			if !limiter.Allow() {
				return nil, modbus.ExceptionServerDeviceBusy
			}

			return next.Call(ctx, req)
		})
	}
}
