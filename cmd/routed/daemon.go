package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/audioroute/pkg/client"
	"github.com/dougsko/audioroute/pkg/config"
	"github.com/dougsko/audioroute/pkg/engine"
	"github.com/dougsko/audioroute/pkg/logging"
)

// RouteDaemon runs the core engine and the HTTP front end. HTTP and
// WebSocket requests reach the engine through its Unix socket.
type RouteDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	webServer    *http.Server

	socketPath string
}

// NewRouteDaemon creates a new daemon instance
func NewRouteDaemon(cfg *config.Config) (*RouteDaemon, error) {
	socketPath := cfg.API.UnixSocket

	coreEngine, err := engine.NewCoreEngine(cfg, socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create core engine: %w", err)
	}

	return newRouteDaemon(cfg, coreEngine), nil
}

func newRouteDaemon(cfg *config.Config, coreEngine *engine.CoreEngine) *RouteDaemon {
	ctx, cancel := context.WithCancel(context.Background())

	d := &RouteDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		coreEngine:   coreEngine,
		socketPath:   cfg.API.UnixSocket,
		socketClient: client.NewSocketClient(cfg.API.UnixSocket),
	}

	if cfg.Web.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port)
		d.webServer = &http.Server{
			Addr:    addr,
			Handler: d.setupRouter(),
		}
	}

	return d
}

// Start starts the daemon
func (d *RouteDaemon) Start() error {
	logging.Info("daemon", "Starting routed daemon...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		return fmt.Errorf("failed to connect to core engine socket %s", d.socketPath)
	}

	if d.webServer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			logging.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
			if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("daemon", "Web server error: %v", err)
			}
		}()
	}

	return nil
}

// Stop stops the daemon gracefully
func (d *RouteDaemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("daemon", "Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			logging.Warnf("daemon", "Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	logging.Info("daemon", "Daemon stopped")
	return nil
}

// setupRouter builds the gin router and routes
func (d *RouteDaemon) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/outputs", d.handleGetOutputs)
		api.GET("/history", d.handleGetHistory)
		api.GET("/history/:id", d.handleGetRecord)
		api.POST("/invoke/:method", d.handleInvoke)
		api.GET("/channel", d.handleMethodChannel)
	}

	return router
}

// requestLogger logs each HTTP request through the daemon logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("http", "request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
