package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/mbap"
	"github.com/arloliu/go-modbus/modbus"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 2 * time.Second

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

// echoService answers ReadInputRegisters with the requested address as register values,
// and fails with the configured error for any other request.
func echoService(otherErr error) Service {
	return ServiceFunc(func(_ context.Context, req modbus.Request) (modbus.Response, error) {
		r, ok := req.(modbus.ReadInputRegisters)
		if !ok {
			return nil, otherErr
		}

		values := make([]uint16, r.Quantity)
		for i := range values {
			values[i] = r.Address + uint16(i) //nolint:gosec // test data
		}

		return modbus.ReadInputRegistersResponse{Values: values}, nil
	})
}

func staticFactory(svc Service) ServiceFactory {
	return FactoryFunc(func() (Service, error) { return svc, nil })
}

// startServer starts a server on a free loopback port and returns it with its address.
// The server is closed when the test ends.
func startServer(t *testing.T, factory ServiceFactory, opts ...ServerOption) (*Server, string) {
	t.Helper()
	require := require.New(t)

	opts = append([]ServerOption{WithAcceptTimeout(50 * time.Millisecond)}, opts...)
	cfg, err := NewServerConfig("127.0.0.1:0", opts...)
	require.NoError(err)

	srv, err := NewServer(cfg)
	require.NoError(err)
	require.NoError(srv.Listen())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background(), factory)
	}()

	t.Cleanup(func() {
		require.NoError(srv.Close())
		select {
		case err := <-serveErr:
			require.NoError(err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})

	return srv, srv.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// roundTrip sends one request and waits for its response.
func roundTrip(conn net.Conn, tid uint16, pdu modbus.PDU) (mbap.ResponseADU, error) {
	req := mbap.RequestADU{Header: mbap.Header{TransactionID: tid, UnitID: 1}, PDU: pdu}
	if err := mbap.WriteRequest(conn, req, ioTimeout); err != nil {
		return mbap.ResponseADU{}, err
	}

	return mbap.ReadResponse(conn, ioTimeout)
}

var readInputPDU = modbus.PDU{0x04, 0x00, 0x10, 0x00, 0x02}

func requireReadInputOK(t *testing.T, conn net.Conn, tid uint16) {
	t.Helper()
	require := require.New(t)

	rsp, err := roundTrip(conn, tid, readInputPDU)
	require.NoError(err)
	require.Equal(mbap.Header{TransactionID: tid, UnitID: 1}, rsp.Header)
	require.Equal(modbus.PDU{0x04, 0x04, 0x00, 0x10, 0x00, 0x11}, rsp.PDU)
}

func requireClosedByServer(t *testing.T, conn net.Conn) {
	t.Helper()

	_, err := mbap.ReadResponse(conn, ioTimeout)
	require.Error(t, err)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatalf("connection was not closed by server: %v", err)
	}
}

func TestServer_Serve(t *testing.T) {
	require := require.New(t)

	srv, addr := startServer(t, staticFactory(echoService(modbus.ExceptionIllegalFunction)))
	conn := dial(t, addr)

	requireReadInputOK(t, conn, 9)

	// an exception keeps the connection open
	rsp, err := roundTrip(conn, 10, modbus.PDU{0x06, 0x00, 0x01, 0x00, 0x02})
	require.NoError(err)
	require.Equal(uint16(10), rsp.Header.TransactionID)
	require.Equal(modbus.PDU{0x86, 0x01}, rsp.PDU)

	requireReadInputOK(t, conn, 11)

	m := srv.Metrics()
	require.Equal(uint64(3), m.RequestCount.Load())
	require.Equal(uint64(3), m.ResponseCount.Load())
	require.Equal(uint64(1), m.ExceptionCount.Load())
	require.Equal(uint64(1), m.ConnAcceptedCount.Load())
	require.Equal(int64(1), m.ConnActiveGauge.Load())
	require.Equal(1, srv.ConnCount())
}

func TestServer_FatalErrorClosesOnlyThatConnection(t *testing.T) {
	require := require.New(t)

	srv, addr := startServer(t, staticFactory(echoService(errors.New("backend unreachable"))))

	healthy := dial(t, addr)
	requireReadInputOK(t, healthy, 1)

	broken := dial(t, addr)
	req := mbap.RequestADU{Header: mbap.Header{TransactionID: 2, UnitID: 1}, PDU: modbus.PDU{0x06, 0x00, 0x01, 0x00, 0x02}}
	require.NoError(mbap.WriteRequest(broken, req, ioTimeout))
	requireClosedByServer(t, broken)

	requireReadInputOK(t, healthy, 3)

	require.Eventually(func() bool {
		return srv.Metrics().FatalErrCount.Load() == 1 && srv.ConnCount() == 1
	}, ioTimeout, 10*time.Millisecond)
}

func TestServer_MalformedFrameClosesConnection(t *testing.T) {
	_, addr := startServer(t, staticFactory(echoService(nil)))

	conn := dial(t, addr)
	// protocol identifier 1
	_, err := conn.Write([]byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x02, 0x01, 0x04})
	require.NoError(t, err)
	requireClosedByServer(t, conn)

	requireReadInputOK(t, dial(t, addr), 1)
}

func TestServer_FactoryError(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	factory := FactoryFunc(func() (Service, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("no backend session")
		}

		return echoService(nil), nil
	})

	srv, addr := startServer(t, factory)

	rejected := dial(t, addr)
	requireClosedByServer(t, rejected)

	requireReadInputOK(t, dial(t, addr), 1)
	require.Equal(uint64(1), srv.Metrics().FactoryErrCount.Load())
	require.Equal(uint64(1), srv.Metrics().ConnAcceptedCount.Load())
}

func TestServer_FactoryPanic(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	factory := FactoryFunc(func() (Service, error) {
		if calls.Add(1) == 1 {
			panic("session table corrupted")
		}

		return echoService(nil), nil
	})

	// a single accept loop must survive the panic
	srv, addr := startServer(t, factory, WithThreads(1))

	rejected := dial(t, addr)
	requireClosedByServer(t, rejected)

	requireReadInputOK(t, dial(t, addr), 1)
	require.Equal(int32(2), calls.Load())
	require.Equal(uint64(1), srv.Metrics().FactoryErrCount.Load())
	require.Equal(uint64(1), srv.Metrics().ConnAcceptedCount.Load())
	require.Equal(1, srv.ConnCount())
}

func TestServer_ServicePanicClosesConnection(t *testing.T) {
	svc := ServiceFunc(func(_ context.Context, req modbus.Request) (modbus.Response, error) {
		if _, ok := req.(modbus.ReadCoils); ok {
			panic("corrupted state")
		}

		return echoService(nil).Call(context.Background(), req)
	})

	srv, addr := startServer(t, staticFactory(svc))

	conn := dial(t, addr)
	require.NoError(t, mbap.WriteRequest(conn, mbap.RequestADU{PDU: modbus.PDU{0x01, 0x00, 0x00, 0x00, 0x01}}, ioTimeout))
	requireClosedByServer(t, conn)

	requireReadInputOK(t, dial(t, addr), 1)
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, ioTimeout, 10*time.Millisecond)
}

func TestServer_MaxConnections(t *testing.T) {
	require := require.New(t)

	srv, addr := startServer(t, staticFactory(echoService(nil)), WithMaxConnections(1))

	first := dial(t, addr)
	requireReadInputOK(t, first, 1)

	second := dial(t, addr)
	requireClosedByServer(t, second)
	require.Equal(uint64(1), srv.Metrics().ConnRejectedCount.Load())

	requireReadInputOK(t, first, 2)

	// the slot is released when the first connection goes away
	_ = first.Close()
	require.Eventually(func() bool { return srv.ConnCount() == 0 }, ioTimeout, 10*time.Millisecond)
	requireReadInputOK(t, dial(t, addr), 3)
}

func TestServer_MaxRequestsPerConn(t *testing.T) {
	_, addr := startServer(t, staticFactory(echoService(nil)), WithMaxRequestsPerConn(2))

	conn := dial(t, addr)
	requireReadInputOK(t, conn, 1)
	requireReadInputOK(t, conn, 2)
	requireClosedByServer(t, conn)
}

func TestServer_IdleTimeout(t *testing.T) {
	srv, addr := startServer(t, staticFactory(echoService(nil)), WithIdleTimeout(50*time.Millisecond))

	conn := dial(t, addr)
	requireReadInputOK(t, conn, 1)
	requireClosedByServer(t, conn)
	require.Zero(t, srv.Metrics().FatalErrCount.Load())
}

func TestServer_Threads(t *testing.T) {
	_, addr := startServer(t, staticFactory(echoService(nil)), WithThreads(4))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := net.DialTimeout("tcp", addr, ioTimeout)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			for j := 0; j < 10; j++ {
				tid := uint16(i*10 + j) //nolint:gosec // test data
				rsp, err := roundTrip(conn, tid, readInputPDU)
				if err != nil {
					errs <- err
					return
				}
				if rsp.Header.TransactionID != tid {
					errs <- fmt.Errorf("got transaction %d, want %d", rsp.Header.TransactionID, tid)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Run("context cancel stops serve", func(t *testing.T) {
		require := require.New(t)

		cfg, err := NewServerConfig("127.0.0.1:0", WithAcceptTimeout(50*time.Millisecond))
		require.NoError(err)
		srv, err := NewServer(cfg)
		require.NoError(err)

		ctx, cancel := context.WithCancel(context.Background())
		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.Serve(ctx, staticFactory(echoService(nil)))
		}()

		require.Eventually(func() bool { return srv.Addr() != nil }, ioTimeout, 10*time.Millisecond)
		conn := dial(t, srv.Addr().String())
		requireReadInputOK(t, conn, 1)

		cancel()
		select {
		case err := <-serveErr:
			require.NoError(err)
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after cancel")
		}

		requireClosedByServer(t, conn)
		require.Nil(srv.Addr())
		require.Zero(srv.ConnCount())
	})

	t.Run("serve twice", func(t *testing.T) {
		srv, _ := startServer(t, staticFactory(echoService(nil)))

		err := srv.Serve(context.Background(), staticFactory(echoService(nil)))
		require.ErrorIs(t, err, ErrServerRunning)
	})

	t.Run("serve after close", func(t *testing.T) {
		require := require.New(t)

		cfg, err := NewServerConfig("127.0.0.1:0")
		require.NoError(err)
		srv, err := NewServer(cfg)
		require.NoError(err)

		require.NoError(srv.Close())
		require.NoError(srv.Close())
		require.ErrorIs(srv.Serve(context.Background(), staticFactory(echoService(nil))), ErrServerClosed)
		require.ErrorIs(srv.Listen(), ErrServerClosed)
	})

	t.Run("nil factory", func(t *testing.T) {
		cfg, err := NewServerConfig("127.0.0.1:0")
		require.NoError(t, err)
		srv, err := NewServer(cfg)
		require.NoError(t, err)

		require.ErrorIs(t, srv.Serve(context.Background(), nil), ErrFactoryNil)
	})

	t.Run("bind failure", func(t *testing.T) {
		require := require.New(t)

		_, addr := startServer(t, staticFactory(echoService(nil)))

		cfg, err := NewServerConfig(addr)
		require.NoError(err)
		srv, err := NewServer(cfg)
		require.NoError(err)

		err = srv.Serve(context.Background(), staticFactory(echoService(nil)))
		require.Error(err)
		require.Contains(err.Error(), "listen")

		// a failed bind does not leave the server marked as serving
		err = srv.Serve(context.Background(), staticFactory(echoService(nil)))
		require.Error(err)
		require.NotErrorIs(err, ErrServerRunning)
		require.Contains(err.Error(), "listen")
	})
}
