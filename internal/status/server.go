// Package status serves the scheduler's health, metrics and run results over HTTP
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
	"github.com/dispatchlab/rtdcheck/internal/scenario"
	"github.com/dispatchlab/rtdcheck/internal/version"
)

// Task is the scheduled suite as the status server sees it
type Task interface {
	Last() (*scenario.Report, error)
	Running() bool
}

// Options wire the server to the scheduler. Everything but Task is optional.
type Options struct {
	Task    Task
	History *history.Recorder
	Metrics *metrics.Collector
	// Next reports the next scheduled run
	Next func() (time.Time, bool)
	// Trigger starts an out-of-schedule run in the background
	Trigger func() error
	Logger  *zap.Logger
}

// Server is the schedule-mode HTTP endpoint
type Server struct {
	opts   Options
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

func New(addr string, opts Options) *Server {
	s := &Server{opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("status")

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	r.GET("/runs", s.handleRuns)
	r.GET("/runs/latest", s.handleLatest)
	r.GET("/runs/:id", s.handleRun)
	r.POST("/runs", s.handleTrigger)

	s.engine = r
	s.http = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until Shutdown; a clean shutdown returns nil
func (s *Server) ListenAndServe() error {
	s.logger.Info("status server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": version.Get(),
		"running": s.opts.Task != nil && s.opts.Task.Running(),
	}
	if s.opts.Next != nil {
		if next, ok := s.opts.Next(); ok {
			body["next_run"] = next
		}
	}
	if s.opts.Task != nil {
		if last, err := s.opts.Task.Last(); last != nil {
			body["last_run"] = gin.H{"id": last.RunID, "ok": last.OK(), "finished_at": last.Finished}
		} else if err != nil {
			body["last_error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, body)
}

// handleLatest prefers the in-memory report and falls back to history after a restart
func (s *Server) handleLatest(c *gin.Context) {
	if s.opts.Task != nil {
		if last, _ := s.opts.Task.Last(); last != nil {
			run := last.History()
			c.JSON(http.StatusOK, run)
			return
		}
	}
	if s.opts.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	run, err := s.opts.History.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.opts.History == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	runs, err := s.opts.History.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRun(c *gin.Context) {
	if s.opts.History == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		return
	}
	run, err := s.opts.History.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, run)
	}
}

func (s *Server) handleTrigger(c *gin.Context) {
	if s.opts.Trigger == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "manual runs are disabled"})
		return
	}
	if s.opts.Task != nil && s.opts.Task.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	if err := s.opts.Trigger(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
