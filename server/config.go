package server

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/arloliu/go-modbus/logger"
)

const (
	// MinThreads and MaxThreads bound the number of accept loops.
	MinThreads = 1
	MaxThreads = 1024
)

// ServerConfig represents the configuration of a Modbus/TCP server.
//
// A ServerConfig is immutable once NewServerConfig returns.
type ServerConfig struct {
	// address is the listening address in host:port form.
	address string

	// threads is the number of independent accept loops sharing the listener.
	// Defaults to 1.
	threads int

	// idleTimeout bounds the wait for the next request on a connection.
	// Defaults to 0, no limit.
	idleTimeout time.Duration

	// frameTimeout bounds the read of a request PDU once its header has arrived.
	// Defaults to 5 seconds.
	frameTimeout time.Duration

	// writeTimeout bounds the write of a response.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// acceptTimeout defines the timeout of each accept iteration, so that accept loops
	// observe shutdown. Defaults to 1 second.
	acceptTimeout time.Duration

	// closeTimeout bounds the wait for connection handlers on Close.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// maxConnections is the number of concurrently served connections; further
	// connections are closed right after accept. Defaults to 0, unlimited.
	maxConnections int

	// maxRequestsPerConn is the number of requests served on a connection before it
	// is closed. Defaults to 0, unlimited.
	maxRequestsPerConn int

	logger logger.Logger
}

// NewServerConfig creates a server configuration listening on address, then applies opts.
//
// address must be in host:port form with a port in [0, 65535]. An empty host listens on
// all interfaces and port 0 picks a free port.
//
// Returns the configuration and the first validation error, if any.
func NewServerConfig(address string, opts ...ServerOption) (*ServerConfig, error) {
	cfg := &ServerConfig{
		threads:       1,
		idleTimeout:   0,
		frameTimeout:  5 * time.Second,
		writeTimeout:  5 * time.Second,
		acceptTimeout: 1 * time.Second,
		closeTimeout:  3 * time.Second,
		logger:        logger.GetLogger(),
	}

	if err := withAddress(address).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Address returns the listen address in host:port form.
func (cfg *ServerConfig) Address() string { return cfg.address }

// Threads returns the number of accept loops sharing the listener.
func (cfg *ServerConfig) Threads() int { return cfg.threads }

// IdleTimeout returns how long a connection may wait for the next request. Zero means no limit.
func (cfg *ServerConfig) IdleTimeout() time.Duration { return cfg.idleTimeout }

// FrameTimeout returns the time allowed to receive the rest of a frame once its header arrived.
func (cfg *ServerConfig) FrameTimeout() time.Duration { return cfg.frameTimeout }

// WriteTimeout returns the time allowed to write one response frame.
func (cfg *ServerConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// AcceptTimeout returns the listener deadline between two shutdown checks of an accept loop.
func (cfg *ServerConfig) AcceptTimeout() time.Duration { return cfg.acceptTimeout }

// CloseTimeout returns how long Close waits for connection handlers to terminate.
func (cfg *ServerConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// MaxConnections returns the limit of concurrently served connections. Zero means unlimited.
func (cfg *ServerConfig) MaxConnections() int { return cfg.maxConnections }

// MaxRequestsPerConn returns the number of requests after which a connection is closed.
// Zero means unlimited.
func (cfg *ServerConfig) MaxRequestsPerConn() int { return cfg.maxRequestsPerConn }

// Logger returns the logger of the server and its connections.
func (cfg *ServerConfig) Logger() logger.Logger { return cfg.logger }

// ServerOption represents a functional option for configuring a ServerConfig.
type ServerOption interface {
	apply(*ServerConfig) error
}

type serverOptFunc struct {
	name      string
	applyFunc func(*ServerConfig) error
}

func (o *serverOptFunc) apply(cfg *ServerConfig) error {
	if cfg == nil {
		return ErrServerConfigNil
	}

	return o.applyFunc(cfg)
}

func newServerOptFunc(name string, f func(*ServerConfig) error) *serverOptFunc {
	return &serverOptFunc{name: name, applyFunc: f}
}

// withAddress validates and sets the listening address.
func withAddress(address string) ServerOption {
	return newServerOptFunc("withAddress", func(cfg *ServerConfig) error {
		if address == "" {
			return errors.New("address is required")
		}

		_, portStr, err := net.SplitHostPort(address)
		if err != nil {
			return errors.New("address must be in host:port form")
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			return errors.New("port is out of range [0, 65535]")
		}
		cfg.address = address

		return nil
	})
}

// WithThreads sets the number of accept loops sharing the listener.
// An error is returned if n is outside [1, 1024].
//
// The default value is 1.
func WithThreads(n int) ServerOption {
	return newServerOptFunc("WithThreads", func(cfg *ServerConfig) error {
		if n < MinThreads || n > MaxThreads {
			return errors.New("threads out of range [1, 1024]")
		}
		cfg.threads = n

		return nil
	})
}

// WithIdleTimeout sets how long a connection may stay silent between requests before it
// is closed. Zero disables the limit. An error is returned for a negative value.
//
// The default value is 0.
func WithIdleTimeout(val time.Duration) ServerOption {
	return newServerOptFunc("WithIdleTimeout", func(cfg *ServerConfig) error {
		if val < 0 {
			return errors.New("idle timeout must not be negative")
		}
		cfg.idleTimeout = val

		return nil
	})
}

// WithFrameTimeout sets the inter-character timeout: how long the body of a request may
// take to arrive after its header. An error is returned if the value is outside
// [10ms, 120s].
//
// The default value is 5 seconds.
func WithFrameTimeout(val time.Duration) ServerOption {
	return newServerOptFunc("WithFrameTimeout", func(cfg *ServerConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("frame timeout out of range [0.01, 120]")
		}
		cfg.frameTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the timeout of a response write. An error is returned if the
// value is outside [10ms, 120s].
//
// The default value is 5 seconds.
func WithWriteTimeout(val time.Duration) ServerOption {
	return newServerOptFunc("WithWriteTimeout", func(cfg *ServerConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("write timeout out of range [0.01, 120]")
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for connection handlers to terminate.
// An error is returned if the value is outside [10ms, 30s].
//
// The default value is 3 seconds.
func WithCloseTimeout(val time.Duration) ServerOption {
	return newServerOptFunc("WithCloseTimeout", func(cfg *ServerConfig) error {
		if val < 10*time.Millisecond || val > 30*time.Second {
			return errors.New("close timeout out of range [0.01, 30]")
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithAcceptTimeout sets the timeout of each accept iteration. It bounds how long an
// accept loop takes to observe shutdown. An error is returned if the value is outside
// [10ms, 2s].
//
// The default value is 1 second.
func WithAcceptTimeout(val time.Duration) ServerOption {
	return newServerOptFunc("WithAcceptTimeout", func(cfg *ServerConfig) error {
		if val < 10*time.Millisecond || val > 2*time.Second {
			return errors.New("accept timeout out of range [0.01, 2]")
		}
		cfg.acceptTimeout = val

		return nil
	})
}

// WithMaxConnections limits the number of concurrently served connections. Connections
// accepted beyond the limit are closed immediately. Zero means unlimited. An error is
// returned for a negative value.
//
// The default value is 0.
func WithMaxConnections(n int) ServerOption {
	return newServerOptFunc("WithMaxConnections", func(cfg *ServerConfig) error {
		if n < 0 {
			return errors.New("max connections must not be negative")
		}
		cfg.maxConnections = n

		return nil
	})
}

// WithMaxRequestsPerConn closes a connection after the response to its n-th request.
// Zero means unlimited. An error is returned for a negative value.
//
// The default value is 0.
func WithMaxRequestsPerConn(n int) ServerOption {
	return newServerOptFunc("WithMaxRequestsPerConn", func(cfg *ServerConfig) error {
		if n < 0 {
			return errors.New("max requests per connection must not be negative")
		}
		cfg.maxRequestsPerConn = n

		return nil
	})
}

// WithLogger sets the logger of the server. A nil logger is rejected.
//
// The default value is logger.GetLogger().
func WithLogger(l logger.Logger) ServerOption {
	return newServerOptFunc("WithLogger", func(cfg *ServerConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
