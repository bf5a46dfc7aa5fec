// Package server is the HTTP surface: a JSON API over the app actions, the
// /ws change feed and, for every other path, the cache-first asset resolver.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nailsizes/nailsizes/internal/app"
	"github.com/nailsizes/nailsizes/internal/assetcache"
	"github.com/nailsizes/nailsizes/internal/events"
)

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: 127.0.0.1:8080)
	Addr string

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger

	// App serves the data API. When nil every /api route answers
	// 503 data_unavailable and DataErr is reported by /health.
	App     *app.App
	DataErr error

	// Cache serves the application shell. Optional.
	Cache *assetcache.Worker

	// Hub serves /ws. Optional.
	Hub *events.Hub
}

// Server is the HTTP server.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	engine   *gin.Engine

	app     *app.App
	dataErr error
	cache   *assetcache.Worker
	hub     *events.Hub

	wg     sync.WaitGroup
	logger *log.Logger
}

// New builds the server and its routes. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		addr:    cfg.Addr,
		app:     cfg.App,
		dataErr: cfg.DataErr,
		cache:   cfg.Cache,
		hub:     cfg.Hub,
		logger:  cfg.Logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logWriter{s.logger}, "/health"))
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	api := r.Group("/api", s.requireData)
	{
		api.GET("/clients", s.listClients)
		api.POST("/clients", s.addClient)
		api.GET("/clients/:id", s.editView)
		api.PUT("/clients/:id", s.saveClient)
		api.DELETE("/clients/:id", s.deleteClient)
		api.POST("/clients/:id/measurements/:styleId", s.addStyleMeasurement)
		api.PUT("/clients/:id/measurements/:styleId", s.saveMeasurement)

		api.GET("/styles", s.listStyles)

		api.GET("/backup", s.exportBackup)
		api.POST("/backup", s.importBackup)
	}

	r.NoRoute(s.handleAsset)
	return r
}

// requireData answers 503 when the store could not be opened.
func (s *Server) requireData(c *gin.Context) {
	if s.app == nil {
		writeErr(c, http.StatusServiceUnavailable, "data_unavailable", "Client data is unavailable on this device.")
		return
	}
	c.Next()
}

func (s *Server) handleAsset(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		writeErr(c, http.StatusNotFound, "not_found", "No such endpoint.")
		return
	}
	if s.cache == nil {
		writeErr(c, http.StatusNotFound, "not_found", "Asset cache is disabled.")
		return
	}
	s.cache.Handler().ServeHTTP(c.Writer, c.Request)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "data": "ok"}
	if s.app == nil {
		body["data"] = "unavailable"
		if s.dataErr != nil {
			body["data_error"] = s.dataErr.Error()
		}
	}
	if s.cache != nil {
		if st, err := s.cache.Status(c.Request.Context()); err == nil {
			body["cache"] = st
		}
	}
	if s.hub != nil {
		body["clients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, body)
}

// Start begins listening.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Listening on http://%s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	s.logger.Println("Server stopped")
	return nil
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// logWriter adapts a *log.Logger to the io.Writer gin's logger wants.
type logWriter struct{ l *log.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.l.Print(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

var _ io.Writer = logWriter{}
