// Command mbtcpd serves a Modbus register table over Modbus/TCP.
//
// Usage:
//
//	mbtcpd [-config mbtcpd.toml] [-address host:port] [-threads n] [-log-level level] [-admin host:port]
//
// Flags given on the command line override the config file. When an admin address is
// configured, an HTTP server exposes /health, /stats, /metrics and /tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-modbus/datastore"
	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/middleware"
	"github.com/arloliu/go-modbus/server"
)

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := resolveConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mbtcpd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "mbtcpd: %v\n", err)
		os.Exit(1)
	}
}

// daemon is the assembled process: register table, Modbus server and admin surface.
type daemon struct {
	cfg     daemonConfig
	log     logger.Logger
	store   *datastore.Store
	srv     *server.Server
	factory server.ServiceFactory
	admin   *admin
}

func newDaemon(cfg daemonConfig) (*daemon, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	l := logger.With("component", "mbtcpd")

	store, err := datastore.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	srvCfg, err := cfg.serverConfig(l)
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	srv, err := server.NewServer(srvCfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := server.RegisterMetrics(reg, srv.Metrics(), nil); err != nil {
		return nil, fmt.Errorf("register server metrics: %w", err)
	}
	metricsMw, err := middleware.Metrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register service metrics: %w", err)
	}

	sessions := datastore.NewFactory(store)
	mw := middleware.Chain(cfg.middlewares(l, metricsMw)...)

	return &daemon{
		cfg:     cfg,
		log:     l,
		store:   store,
		srv:     srv,
		factory: middleware.Factory(sessions, mw),
		admin:   newAdmin(store, srv, reg),
	}, nil
}

// run serves Modbus/TCP and, when configured, the admin HTTP surface until ctx is done
// or one of them fails.
func (d *daemon) run(ctx context.Context) error {
	// bind first so that a busy port is reported before anything starts
	if err := d.srv.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.srv.Serve(ctx, d.factory)
	})

	if d.cfg.AdminAddress != "" {
		g.Go(func() error {
			return d.admin.serve(ctx, d.cfg.AdminAddress, d.log)
		})
	}

	err := g.Wait()
	d.log.Info("mbtcpd stopped", "error", err)

	return err
}

func run(ctx context.Context, cfg daemonConfig) error {
	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	return d.run(ctx)
}
