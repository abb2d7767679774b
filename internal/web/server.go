// Package web serves the daemon's status API and metrics endpoint.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wakeguard/wakeguard/internal/config"
	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/metrics"
	"github.com/wakeguard/wakeguard/internal/statestore"
	"github.com/wakeguard/wakeguard/internal/store"
)

// Server represents the HTTP status server
type Server struct {
	router     *gin.Engine
	cfg        config.ServerConfig
	state      *statestore.Store
	snapshots  *store.SnapshotStore
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
	started    time.Time
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new status server
func NewServer(cfg config.ServerConfig, state *statestore.Store, snapshots *store.SnapshotStore, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:    gin.New(),
		cfg:       cfg,
		state:     state,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
		started:   time.Now(),
	}

	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/history", s.handleHistory)
		v1.GET("/config", s.handleConfig)
		v1.GET("/snapshots", s.handleSnapshots)
		v1.GET("/last-trigger", s.handleLastTrigger)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := s.state.RecentHistory(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

func (s *Server) handleLastTrigger(c *gin.Context) {
	record, ok, err := s.state.LastTrigger()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no triggers recorded"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleConfig(c *gin.Context) {
	cfg, err := s.state.LoadWakeupConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	if s.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not available"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.snapshots.ListSnapshots(c.Query("model"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": rows, "count": len(rows)})
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return &errors.ErrServerStart{Addr: addr, Err: err}
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("status server listening", "addr", addr)
		return nil
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
