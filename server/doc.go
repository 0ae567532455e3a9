// Package server runs a Modbus/TCP endpoint on top of a user supplied Service.
//
// A Service handles one decoded request at a time and returns either a response, a
// protocol exception (modbus.ExceptionCode) or any other error. The Adapter bridges a
// Service to the wire: it decodes the request PDU, calls the service and encodes the
// outcome, echoing the MBAP header of the request.
//
// Errors are classified in two kinds:
//
//   - Protocol exceptions are reported to the client as an exception response and the
//     connection stays open.
//   - Every other error is fatal: no response is written and only the affected
//     connection is closed.
//
// Server accepts connections, asks a ServiceFactory for a fresh Service per connection and
// serves each connection in its own goroutine:
//
//	cfg, err := server.NewServerConfig("0.0.0.0:502", server.WithThreads(2))
//	if err != nil {
//	    // handle error
//	}
//
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    // handle error
//	}
//
//	err = srv.Serve(ctx, server.FactoryFunc(func() (server.Service, error) {
//	    return myService, nil
//	}))
package server
