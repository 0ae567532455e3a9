package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/go-modbus/internal/pool"
	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

type callResult struct {
	rsp modbus.Response
	err error
}

// Timeout bounds each call to d. A call that does not finish in time is answered with
// ExceptionServerDeviceBusy.
//
// After the deadline the wrapped Service sees a cancelled context and Timeout waits up to
// another d for it to return, so calls of one connection do not overlap unless the
// Service ignores its context. A panic of the wrapped Service is returned as
// ErrServicePanic, since it happens outside the caller's goroutine.
//
// Cancellation of the parent context is returned as is, which makes it fatal.
func Timeout(d time.Duration) Middleware {
	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (modbus.Response, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan callResult, 1)
			go func() {
				var res callResult
				defer func() {
					if r := recover(); r != nil {
						res = callResult{err: panicError(req, r)}
					}
					done <- res
				}()

				res.rsp, res.err = next.Call(tctx, req)
			}()

			select {
			case res := <-done:
				return res.rsp, res.err
			case <-tctx.Done():
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			timer := pool.GetTimer(d)
			defer pool.PutTimer(timer)

			select {
			case res := <-done:
				if errors.Is(res.err, ErrServicePanic) {
					return nil, res.err
				}
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			return nil, modbus.ExceptionServerDeviceBusy
		})
	}
}
