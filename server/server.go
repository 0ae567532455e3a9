package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-modbus/internal/pool"
	"github.com/arloliu/go-modbus/internal/task"
	"github.com/arloliu/go-modbus/logger"
)

// acceptRetryDelay is the pause of an accept loop after an unexpected accept error.
const acceptRetryDelay = 50 * time.Millisecond

// Server is a Modbus/TCP server.
//
// Each accepted connection gets its own Service from the ServiceFactory and is served by a
// dedicated goroutine, one request at a time. A fatal error on one connection closes that
// connection only.
type Server struct {
	cfg     *ServerConfig
	logger  logger.Logger
	metrics ServerMetrics

	listenerMu sync.Mutex
	listener   net.Listener

	factory   ServiceFactory
	acceptMgr *task.Manager
	connMgr   *task.Manager

	conns     *xsync.MapOf[uint64, *serverConn]
	connID    atomic.Uint64
	connCount atomic.Int64

	serving   atomic.Bool
	shutdown  atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewServer creates a server from cfg. The server does not listen until Listen or Serve
// is called.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, ErrServerConfigNil
	}

	l := cfg.logger.With("address", cfg.address)

	return &Server{
		cfg:       cfg,
		logger:    l,
		acceptMgr: task.NewManager(context.Background(), l),
		connMgr:   task.NewManager(context.Background(), l),
		conns:     xsync.NewMapOf[uint64, *serverConn](),
		done:      make(chan struct{}),
	}, nil
}

// Listen binds the listening socket. It is called by Serve when needed, and can be called
// beforehand to detect bind failures or to learn the bound address.
func (s *Server) Listen() error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}

	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener != nil {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.cfg.address)
	if err != nil {
		s.logger.Error("failed to listen", "error", err)
		return fmt.Errorf("listen %s: %w", s.cfg.address, err)
	}
	s.listener = listener

	s.logger.Debug("listen success", "local_address", listener.Addr())

	return nil
}

// Addr returns the bound address, or nil when the server is not listening.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Metrics returns the metrics of the server.
func (s *Server) Metrics() *ServerMetrics {
	return &s.metrics
}

// ConnCount returns the number of connections being served.
func (s *Server) ConnCount() int {
	return s.conns.Size()
}

// Serve listens if needed, then accepts and serves connections with services created by
// factory. It blocks until ctx is done or Close is called, and returns nil after a
// graceful shutdown.
//
// A failing factory closes only the connection it was called for.
func (s *Server) Serve(ctx context.Context, factory ServiceFactory) error {
	if factory == nil {
		return ErrFactoryNil
	}

	if s.shutdown.Load() {
		return ErrServerClosed
	}

	if !s.serving.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	if err := s.Listen(); err != nil {
		s.serving.Store(false)
		return err
	}

	s.factory = factory

	for i := 0; i < s.cfg.threads; i++ {
		if err := s.acceptMgr.Start(fmt.Sprintf("accept-%d", i), s.acceptConn); err != nil {
			_ = s.Close()
			return err
		}
	}

	s.logger.Info("server started", "local_address", s.Addr(), "threads", s.cfg.threads)

	select {
	case <-ctx.Done():
		s.logger.Debug("serve canceled by context", "error", ctx.Err())
	case <-s.done:
	}

	return s.Close()
}

// Close stops accepting connections, closes the live connections and waits, at most the
// configured close timeout, for their handlers to terminate.
//
// Close is idempotent; every call returns the result of the first one.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debug("closing server")

		s.shutdown.Store(true)

		s.closeErr = s.closeListener()

		s.acceptMgr.Stop()
		s.acceptMgr.Wait()

		s.conns.Range(func(_ uint64, c *serverConn) bool {
			c.close()
			return true
		})

		s.connMgr.Stop()
		if !s.connMgr.WaitTimeout(s.cfg.closeTimeout) {
			s.logger.Warn("connection handlers still running after close timeout", "conn_count", s.ConnCount())
		}

		close(s.done)

		s.logger.Info("server closed")
	})

	return s.closeErr
}

func (s *Server) acceptConn() bool {
	tcpListener := s.getTCPListener()
	// listener already closed, skip
	if tcpListener == nil {
		return false
	}

	conn, err := tcpListener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return !s.shutdown.Load()
		}

		if s.shutdown.Load() {
			return false
		}

		s.logger.Error("failed to accept connection", "method", "acceptConn", "error", err)
		_ = pool.Sleep(s.acceptMgr.Context(), acceptRetryDelay)

		return true
	}

	s.serveConn(conn)

	return true
}

func (s *Server) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr()

	count := s.connCount.Add(1)
	if maxConns := s.cfg.maxConnections; maxConns > 0 && count > int64(maxConns) {
		s.connCount.Add(-1)
		s.metrics.incConnRejectedCount()
		s.logger.Warn("connection limit reached", "method", "serveConn", "remote_address", remote, "max_connections", maxConns)
		_ = conn.Close()

		return
	}

	service, err := s.newService()
	if err != nil {
		s.connCount.Add(-1)
		s.metrics.incFactoryErrCount()
		s.logger.Error("failed to create service", "method", "serveConn", "remote_address", remote, "error", err)
		_ = conn.Close()

		return
	}

	id := s.connID.Add(1)
	c := newServerConn(id, conn, NewAdapter(service), s)
	s.conns.Store(id, c)

	s.metrics.incConnAcceptedCount()
	s.metrics.incConnActiveGauge()

	s.logger.Debug("connection accepted", "method", "serveConn", "remote_address", remote, "conn_id", id)

	_ = s.connMgr.Go(fmt.Sprintf("conn-%d", id), c.serve, func() {
		c.close()
		s.conns.Delete(id)
		s.connCount.Add(-1)
		s.metrics.decConnActiveGauge()
	})
}

// newService calls the factory. A nil service or a panic is reported as an error so that
// only the connection being set up is affected.
func (s *Server) newService() (service Service, err error) {
	defer func() {
		if r := recover(); r != nil {
			service = nil
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, r)
		}
	}()

	service, err = s.factory.NewService()
	if err == nil && service == nil {
		err = errors.New("factory returned nil service")
	}

	return service, err
}

func (s *Server) getTCPListener() *net.TCPListener {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}

	tcpListener, ok := s.listener.(*net.TCPListener)
	if !ok {
		s.logger.Error("failed to convert listener to TCPListener", "type", reflect.TypeOf(s.listener))
		return nil
	}

	err := tcpListener.SetDeadline(time.Now().Add(s.cfg.acceptTimeout))
	if err != nil {
		s.logger.Error("failed to set deadline for tcp listener", "error", err)
		return nil
	}

	return tcpListener
}

func (s *Server) closeListener() error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil

		return err
	}

	return nil
}
