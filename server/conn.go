package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/mbap"
)

// serverConn serves the requests of one accepted connection.
type serverConn struct {
	id        uint64
	conn      net.Conn
	adapter   *Adapter
	srv       *Server
	logger    logger.Logger
	closeOnce sync.Once
}

func newServerConn(id uint64, conn net.Conn, adapter *Adapter, srv *Server) *serverConn {
	return &serverConn{
		id:      id,
		conn:    conn,
		adapter: adapter,
		srv:     srv,
		logger:  srv.logger.With("remote_address", conn.RemoteAddr(), "conn_id", id),
	}
}

// serve reads, handles and answers requests until the connection fails, a fatal error
// occurs, the peer asks to disconnect or the server shuts down.
func (c *serverConn) serve(ctx context.Context) {
	cfg := c.srv.cfg
	metrics := &c.srv.metrics

	reader := mbap.NewReader(c.conn, mbap.ReaderConfig{
		IdleTimeout:  cfg.idleTimeout,
		FrameTimeout: cfg.frameTimeout,
		MaxRequests:  cfg.maxRequestsPerConn,
	})

	for {
		req, err := reader.ReadRequest()
		if err != nil {
			c.logReadError(err)
			return
		}

		metrics.incRequestCount()

		if c.srv.shutdown.Load() {
			req.Disconnect = true
		}

		if c.logger.Level() == logger.DebugLevel {
			c.logger.Debug("request received", "method", "serve", "header", req.Header, "pdu", req.PDU)
		}

		rsp, err := c.adapter.Handle(ctx, req)
		if err != nil {
			metrics.incFatalErrCount()
			if ctx.Err() != nil {
				c.logger.Debug("request canceled", "method", "serve", "header", req.Header, "error", err)
			} else {
				c.logger.Error("fatal error, closing connection", "method", "serve", "header", req.Header, "error", err)
			}

			return
		}

		if err := mbap.WriteResponse(c.conn, rsp, cfg.writeTimeout); err != nil {
			metrics.incFatalErrCount()
			c.logger.Warn("failed to write response", "method", "serve", "header", rsp.Header, "error", err)

			return
		}

		metrics.incResponseCount(rsp.PDU.IsException())

		if req.Disconnect {
			c.logger.Debug("disconnect requested", "method", "serve", "request_count", reader.Count())
			return
		}
	}
}

func (c *serverConn) logReadError(err error) {
	switch {
	case c.srv.shutdown.Load(), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.logger.Debug("connection closed", "method", "serve", "error", err)
	case errors.Is(err, mbap.ErrIdleTimeout):
		c.logger.Info("connection idle timeout", "method", "serve", "idle_timeout", c.srv.cfg.idleTimeout)
	default:
		c.srv.metrics.incFatalErrCount()
		c.logger.Warn("failed to read request, closing connection", "method", "serve", "error", err)
	}
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
