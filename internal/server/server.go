// Package server exposes the sync router over HTTP so a browser or curl can
// use the offline-first layer as a local front for the app and its Data API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rr-sync/internal/sw"
)

// APIPrefix is the path prefix rewritten onto the Data API origin.
const APIPrefix = "/api"

// DefaultHistoryLimit is used by the history endpoint when n is absent.
const DefaultHistoryLimit = 20

// Config holds the origins the front rewrites requests onto.
type Config struct {
	AppOrigin   *url.URL
	APIOrigin   *url.URL
	CORSOrigins []string
}

// Server is the gin front of a sw.Worker.
type Server struct {
	cfg    Config
	worker *sw.Worker
	logger sw.Logger
	engine *gin.Engine
}

// hop-by-hop headers are not forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// New creates a Server and registers its routes.
func New(cfg Config, worker *sw.Worker, logger sw.Logger) (*Server, error) {
	if cfg.AppOrigin == nil || cfg.APIOrigin == nil {
		return nil, fmt.Errorf("app and api origins are required")
	}

	s := &Server{cfg: cfg, worker: worker, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{sw.SyncStatusHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(s.forwardAbsolute)

	ops := r.Group("/_sw")
	ops.GET("/health", s.health)
	ops.GET("/status", s.status)
	ops.GET("/pending", s.pending)
	ops.GET("/history", s.history)
	ops.POST("/replay", s.replay)

	r.Any(APIPrefix+"/*path", s.proxyAPI)
	r.NoRoute(s.proxyApp)

	s.engine = r
	return s, nil
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http front listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down %s: %w", addr, err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	st, err := s.worker.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) pending(c *gin.Context) {
	p, err := s.worker.Pending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) history(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := s.worker.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) replay(c *gin.Context) {
	report, err := s.worker.Replay(c.Request.Context())
	switch {
	case errors.Is(err, sw.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, report)
	}
}

// forwardAbsolute routes proxy-style requests ("GET http://host/path") as
// they are, before any local route can match their path.
func (s *Server) forwardAbsolute(c *gin.Context) {
	if !c.Request.URL.IsAbs() {
		c.Next()
		return
	}
	s.forward(c, c.Request.URL)
	c.Abort()
}

func (s *Server) proxyAPI(c *gin.Context) {
	s.forward(c, rebase(s.cfg.APIOrigin, c.Param("path"), c.Request.URL.RawQuery))
}

func (s *Server) proxyApp(c *gin.Context) {
	s.forward(c, rebase(s.cfg.AppOrigin, c.Request.URL.Path, c.Request.URL.RawQuery))
}

func rebase(origin *url.URL, path, rawQuery string) *url.URL {
	u := *origin
	u.Path = strings.TrimRight(origin.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	u.Fragment = ""
	return &u
}

// forward sends the incoming request to target through the worker's router
// and copies the answer back.
func (s *Server) forward(c *gin.Context, target *url.URL) {
	in := c.Request
	out, err := http.NewRequestWithContext(in.Context(), in.Method, target.String(), in.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out.Header = in.Header.Clone()
	out.ContentLength = in.ContentLength
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	resp, err := s.worker.Router().RoundTrip(out)
	if err != nil {
		s.logger.Warn("forwarding failed", "url", target.String(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		s.logger.Warn("copying response body failed", "url", target.String(), "error", err)
	}
}
