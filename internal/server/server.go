package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"logvault/internal/query"
	"logvault/internal/stats"
	"logvault/internal/watcher"
	"logvault/pkg/models"
)

// LogService is the query surface the HTTP handlers need
type LogService interface {
	ListFiles() []models.LogFileDescriptor
	GetEntries(search, severity, timeWindow string, page, pageSize int) query.Page
	ExportCSV(search, severity, timeWindow string) string
	FileContent(name, search string, maxLines int) (string, error)
}

// Summarizer produces dashboard statistics
type Summarizer interface {
	Summarize() stats.Summary
}

// Server holds the gin engine and its dependencies
type Server struct {
	engine *gin.Engine
	logs   LogService
	stats  Summarizer
	feed   *watcher.Feed // nil disables /ws/files
	addr   string
}

// New creates the HTTP server. feed may be nil when watching is disabled.
func New(logs LogService, summarizer Summarizer, feed *watcher.Feed, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine: engine,
		logs:   logs,
		stats:  summarizer,
		feed:   feed,
		addr:   addr,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logs := s.engine.Group("/api/logs")
	logs.GET("/files", s.handleListFiles)
	logs.GET("/files/:name/content", s.handleFileContent)
	logs.GET("/entries", s.handleEntries)
	logs.GET("/export", s.handleExport)
	logs.GET("/stats", s.handleStats)

	security := s.engine.Group("/api/security")
	security.POST("/rate-limits", handleMockConfig)
	security.POST("/ip-whitelist", handleMockConfig)
	security.POST("/load-balancers", handleMockConfig)

	s.engine.GET("/ws/files", s.handleWebSocket)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.feed != nil {
		body["subscribers"] = s.feed.Subscribers()
		body["droppedEvents"] = s.feed.Dropped()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleListFiles(c *gin.Context) {
	c.JSON(http.StatusOK, s.logs.ListFiles())
}

func (s *Server) handleEntries(c *gin.Context) {
	page := s.logs.GetEntries(
		c.Query("search"),
		c.DefaultQuery("severity", models.SeverityAll),
		c.DefaultQuery("timeRange", models.WindowDay),
		intQuery(c, "page", 1),
		intQuery(c, "size", query.DefaultPageSize),
	)
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleExport(c *gin.Context) {
	csv := s.logs.ExportCSV(
		c.Query("search"),
		c.DefaultQuery("severity", models.SeverityAll),
		c.DefaultQuery("timeRange", models.WindowDay),
	)
	filename := fmt.Sprintf("security-logs-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

func (s *Server) handleFileContent(c *gin.Context) {
	name := c.Param("name")
	content, err := s.logs.FileContent(name, c.Query("search"), intQuery(c, "lines", 0))
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "log file not found"})
			return
		}
		slog.Error("failed to read log file", "file", name, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "content": content})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Summarize())
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
