// Package middleware provides decorators for server.Service.
//
// A Middleware wraps a Service and returns a Service with the same contract: protocol
// exceptions travel as modbus.ExceptionCode errors, everything else is fatal.
//
//	mw := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.Logging(l),
//	    middleware.RateLimit(100, 10),
//	    middleware.Timeout(time.Second),
//	)
//	factory := middleware.Factory(datastore.NewFactory(store), mw)
package middleware

import (
	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// Middleware decorates a Service.
type Middleware func(next server.Service) server.Service

// Chain composes middlewares into one. The first middleware is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next server.Service) server.Service {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

// Factory returns a ServiceFactory that decorates every Service created by f with mw.
//
// Middlewares holding state, such as RateLimit, share that state across all connections.
func Factory(f server.ServiceFactory, mw Middleware) server.ServiceFactory {
	return server.FactoryFunc(func() (server.Service, error) {
		svc, err := f.NewService()
		if err != nil {
			return nil, err
		}

		return mw(svc), nil
	})
}

// outcome labels the result of a call for logs and metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if modbus.IsException(err) {
		return "exception"
	}

	return "fatal"
}
