package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/qamd/pkg/config"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/storage"
)

// QAMDaemon serves the codec engine over HTTP
type QAMDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	engine    *engine.Engine
	jobStore  *storage.JobStore
	router    *gin.Engine
	webServer *http.Server
}

// NewQAMDaemon creates a new daemon instance
func NewQAMDaemon(cfg *config.Config) (*QAMDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	jobStore, err := storage.NewJobStore(cfg.Storage.DatabasePath, cfg.Storage.MaxJobs)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	daemon := &QAMDaemon{
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
		jobStore: jobStore,
		engine:   engine.NewEngine(cfg, logging.GetGlobalLogger(), jobStore),
	}

	daemon.setupWebServer()

	return daemon, nil
}

// Start starts the web server
func (d *QAMDaemon) Start() error {
	logging.Info(logging.ComponentMain, "Starting qamd daemon...")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Info(logging.ComponentAPI, fmt.Sprintf("Starting web server on %s", d.webServer.Addr))
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(logging.ComponentAPI, fmt.Sprintf("Web server error: %v", err))
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *QAMDaemon) Stop() error {
	logging.Info(logging.ComponentMain, "Stopping daemon...")

	// Websocket handlers watch this context
	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warn(logging.ComponentAPI, fmt.Sprintf("Web server shutdown error: %v", err))
		}
	}

	d.wg.Wait()

	if err := d.jobStore.Close(); err != nil {
		return fmt.Errorf("failed to close job store: %w", err)
	}

	logging.Info(logging.ComponentMain, "Daemon stopped")
	return nil
}

// setupWebServer initializes the router and http server
func (d *QAMDaemon) setupWebServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.POST("/modulate", d.handleModulate)
		api.POST("/demodulate", d.handleDemodulate)
		api.POST("/parameters", d.handleParameters)
		api.POST("/spectrum", d.handleSpectrum)
		api.GET("/constellation", d.handleConstellation)
		api.GET("/modes", d.handleGetModes)
		api.GET("/jobs", d.handleGetJobs)
		api.GET("/jobs/:id", d.handleGetJob)
		api.GET("/stats", d.handleGetStats)
	}

	router.GET("/ws", d.handleEventsWebSocket)

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}
}

// requestLogger logs each request through the component logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug(logging.ComponentAPI, "request", logging.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
	}
}
