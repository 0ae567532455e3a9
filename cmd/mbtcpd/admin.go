package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-modbus/datastore"
	"github.com/arloliu/go-modbus/logger"
	"github.com/arloliu/go-modbus/server"
)

// admin is the HTTP surface of mbtcpd: health, prometheus metrics and access to the
// register table for the application side.
type admin struct {
	store    *datastore.Store
	srv      *server.Server
	gatherer prometheus.Gatherer
	started  time.Time
	router   *gin.Engine
}

var tablesByName = map[string]datastore.Table{
	"coils":             datastore.Coils,
	"discrete-inputs":   datastore.DiscreteInputs,
	"holding-registers": datastore.HoldingRegisters,
	"input-registers":   datastore.InputRegisters,
}

type tableValues struct {
	Address uint16 `json:"address"`
	Values  []any  `json:"values"`
}

type tableWrite struct {
	Bits      []bool   `json:"bits"`
	Registers []uint16 `json:"registers"`
}

func newAdmin(store *datastore.Store, srv *server.Server, gatherer prometheus.Gatherer) *admin {
	gin.SetMode(gin.ReleaseMode)

	a := &admin{
		store:    store,
		srv:      srv,
		gatherer: gatherer,
		started:  time.Now(),
		router:   gin.New(),
	}
	a.router.Use(gin.Recovery())
	a.registerRoutes()

	return a
}

func (a *admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      time.Since(a.started).String(),
			"connections": a.srv.ConnCount(),
		})
	})

	a.router.GET("/stats", func(c *gin.Context) {
		m := a.srv.Metrics()
		c.JSON(http.StatusOK, gin.H{
			"conn_accepted":  m.ConnAcceptedCount.Load(),
			"conn_rejected":  m.ConnRejectedCount.Load(),
			"factory_errors": m.FactoryErrCount.Load(),
			"conn_active":    m.ConnActiveGauge.Load(),
			"requests":       m.RequestCount.Load(),
			"responses":      m.ResponseCount.Load(),
			"exceptions":     m.ExceptionCount.Load(),
			"fatal_errors":   m.FatalErrCount.Load(),
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	a.router.GET("/tables/:table", a.readTable)
	a.router.PUT("/tables/:table/:address", a.writeTable)
}

// readTable serves GET /tables/:table?address=N&count=M.
func (a *admin) readTable(c *gin.Context) {
	table, ok := tablesByName[c.Param("table")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}

	addr, err := strconv.ParseUint(c.DefaultQuery("address", "0"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
		return
	}

	out := tableValues{Address: uint16(addr)}
	switch table {
	case datastore.Coils, datastore.DiscreteInputs:
		var bits []bool
		if table == datastore.Coils {
			bits, err = a.store.Coils(uint16(addr), count)
		} else {
			bits, err = a.store.DiscreteInputs(uint16(addr), count)
		}
		for _, b := range bits {
			out.Values = append(out.Values, b)
		}
	default:
		var regs []uint16
		if table == datastore.HoldingRegisters {
			regs, err = a.store.HoldingRegisters(uint16(addr), count)
		} else {
			regs, err = a.store.InputRegisters(uint16(addr), count)
		}
		for _, r := range regs {
			out.Values = append(out.Values, r)
		}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, out)
}

// writeTable serves PUT /tables/:table/:address with a tableWrite body.
func (a *admin) writeTable(c *gin.Context) {
	table, ok := tablesByName[c.Param("table")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}

	addr64, err := strconv.ParseUint(c.Param("address"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	addr := uint16(addr64)

	var body tableWrite
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch table {
	case datastore.Coils:
		err = a.store.SetCoils(addr, body.Bits...)
	case datastore.DiscreteInputs:
		err = a.store.SetDiscreteInputs(addr, body.Bits...)
	case datastore.HoldingRegisters:
		err = a.store.SetHoldingRegisters(addr, body.Registers...)
	default:
		err = a.store.SetInputRegisters(addr, body.Registers...)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// serve runs the admin HTTP server on address until ctx is done.
func (a *admin) serve(ctx context.Context, address string, l logger.Logger) error {
	httpSrv := &http.Server{
		Addr:              address,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("admin listening", "address", address)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
