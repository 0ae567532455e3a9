package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/arloliu/go-modbus/datastore"
	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/middleware"
	"github.com/arloliu/go-modbus/server"
)

// daemonConfig is the effective configuration of mbtcpd.
type daemonConfig struct {
	Address            string
	Threads            int
	IdleTimeout        time.Duration
	FrameTimeout       time.Duration
	WriteTimeout       time.Duration
	CloseTimeout       time.Duration
	MaxConnections     int
	MaxRequestsPerConn int

	LogLevel     string
	AdminAddress string

	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	Store datastore.Config
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		Address:      "0.0.0.0:502",
		Threads:      1,
		FrameTimeout: 5 * time.Second,
		WriteTimeout: 5 * time.Second,
		CloseTimeout: 3 * time.Second,
		LogLevel:     "info",
		Store: datastore.Config{
			Coils:            10000,
			DiscreteInputs:   10000,
			HoldingRegisters: 10000,
			InputRegisters:   10000,
		},
	}
}

type storeFileConfig struct {
	Coils            int `toml:"coils"`
	DiscreteInputs   int `toml:"discrete_inputs"`
	HoldingRegisters int `toml:"holding_registers"`
	InputRegisters   int `toml:"input_registers"`
	BlockSize        int `toml:"block_size"`
}

type fileConfig struct {
	Address            string          `toml:"address"`
	Threads            int             `toml:"threads"`
	IdleTimeout        string          `toml:"idle_timeout"`
	FrameTimeout       string          `toml:"frame_timeout"`
	WriteTimeout       string          `toml:"write_timeout"`
	CloseTimeout       string          `toml:"close_timeout"`
	MaxConnections     int             `toml:"max_connections"`
	MaxRequestsPerConn int             `toml:"max_requests_per_conn"`
	LogLevel           string          `toml:"log_level"`
	AdminAddress       string          `toml:"admin_address"`
	RequestTimeout     string          `toml:"request_timeout"`
	RateLimit          float64         `toml:"rate_limit"`
	RateBurst          int             `toml:"rate_burst"`
	Store              storeFileConfig `toml:"store"`
}

// loadConfig overlays the keys defined in the TOML file at path on the defaults.
func loadConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemonConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("threads") {
		cfg.Threads = raw.Threads
	}
	if meta.IsDefined("max_connections") {
		cfg.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("max_requests_per_conn") {
		cfg.MaxRequestsPerConn = raw.MaxRequestsPerConn
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("admin_address") {
		cfg.AdminAddress = strings.TrimSpace(raw.AdminAddress)
	}
	if meta.IsDefined("rate_limit") {
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
		{"frame_timeout", raw.FrameTimeout, &cfg.FrameTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"close_timeout", raw.CloseTimeout, &cfg.CloseTimeout},
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("store", "coils") {
		cfg.Store.Coils = raw.Store.Coils
	}
	if meta.IsDefined("store", "discrete_inputs") {
		cfg.Store.DiscreteInputs = raw.Store.DiscreteInputs
	}
	if meta.IsDefined("store", "holding_registers") {
		cfg.Store.HoldingRegisters = raw.Store.HoldingRegisters
	}
	if meta.IsDefined("store", "input_registers") {
		cfg.Store.InputRegisters = raw.Store.InputRegisters
	}
	if meta.IsDefined("store", "block_size") {
		cfg.Store.BlockSize = raw.Store.BlockSize
	}

	return cfg, nil
}

// cliFlags holds the command line. Flags that were set explicitly override the file.
type cliFlags struct {
	configPath   string
	address      string
	threads      int
	logLevel     string
	adminAddress string
	set          map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (cliFlags, error) {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "path to a TOML config file")
	fs.StringVar(&f.address, "address", "", "Modbus/TCP listen address (host:port)")
	fs.IntVar(&f.threads, "threads", 0, "number of accept loops")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug|info|warn|error")
	fs.StringVar(&f.adminAddress, "admin", "", "admin HTTP listen address, empty disables it")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	return f, nil
}

// resolveConfig loads the config file, if any, and applies the explicit flags.
func resolveConfig(f cliFlags) (daemonConfig, error) {
	cfg := defaultDaemonConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = loadConfig(f.configPath); err != nil {
			return daemonConfig{}, err
		}
	}

	if f.set["address"] {
		cfg.Address = f.address
	}
	if f.set["threads"] {
		cfg.Threads = f.threads
	}
	if f.set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.set["admin"] {
		cfg.AdminAddress = f.adminAddress
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return daemonConfig{}, err
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return daemonConfig{}, errors.New("rate_limit and rate_burst must not be negative")
	}
	if cfg.RequestTimeout < 0 {
		return daemonConfig{}, errors.New("request_timeout must not be negative")
	}

	return cfg, nil
}

// serverConfig builds the server configuration.
func (cfg daemonConfig) serverConfig(l logger.Logger) (*server.ServerConfig, error) {
	opts := []server.ServerOption{
		server.WithThreads(cfg.Threads),
		server.WithIdleTimeout(cfg.IdleTimeout),
		server.WithFrameTimeout(cfg.FrameTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithCloseTimeout(cfg.CloseTimeout),
		server.WithMaxConnections(cfg.MaxConnections),
		server.WithMaxRequestsPerConn(cfg.MaxRequestsPerConn),
		server.WithLogger(l),
	}

	return server.NewServerConfig(cfg.Address, opts...)
}

// middlewares returns the service decorators enabled by cfg, outermost first.
func (cfg daemonConfig) middlewares(l logger.Logger, metrics middleware.Middleware) []middleware.Middleware {
	mws := []middleware.Middleware{middleware.Recover(), middleware.Logging(l)}
	if metrics != nil {
		mws = append(mws, metrics)
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		mws = append(mws, middleware.RateLimit(rate.Limit(cfg.RateLimit), burst))
	}
	if cfg.RequestTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.RequestTimeout))
	}

	return mws
}
