package middleware

import (
	"context"
	"time"

	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// Logging logs every call with its function code, duration and outcome.
// Successful calls are logged at debug level, exceptions at info level and fatal errors
// at warn level.
func Logging(l logger.Logger) Middleware {
	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (modbus.Response, error) {
			start := time.Now()
			rsp, err := next.Call(ctx, req)
			duration := time.Since(start)

			fc := modbus.FunctionCodeOf(req)
			switch outcome(err) {
			case "ok":
				if l.Level() == logger.DebugLevel {
					l.Debug("request served", "function", fc, "duration", duration)
				}
			case "exception":
				l.Info("request answered with exception", "function", fc, "duration", duration, "error", err)
			default:
				l.Warn("request failed", "function", fc, "duration", duration, "error", err)
			}

			return rsp, err
		})
	}
}
