package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/go-modbus/internal/pool"
	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// maxBackoff caps the delay between two attempts.
const maxBackoff = 10 * time.Second

// backoff returns baseDelay doubled attempt times, capped at maxBackoff.
func backoff(baseDelay time.Duration, attempt int) time.Duration {
	if baseDelay <= 0 {
		return 0
	}

	delay := baseDelay
	for i := 0; i < attempt; i++ {
		if delay >= maxBackoff/2 {
			return maxBackoff
		}
		delay *= 2
	}

	return min(delay, maxBackoff)
}

// Retry calls the wrapped Service again when it answers with ExceptionServerDeviceBusy,
// up to maxRetries times with exponential backoff starting at baseDelay and capped at
// ten seconds.
//
// Other outcomes are returned immediately. Cancellation of ctx during a backoff is fatal.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (modbus.Response, error) {
			rsp, err := next.Call(ctx, req)
			for i := 0; i < maxRetries && errors.Is(err, modbus.ExceptionServerDeviceBusy); i++ {
				if sleepErr := pool.Sleep(ctx, backoff(baseDelay, i)); sleepErr != nil {
					return nil, sleepErr
				}
				rsp, err = next.Call(ctx, req)
			}

			return rsp, err
		})
	}
}
