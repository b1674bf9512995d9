package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/scheduler"
)

// StatusSource reports the live state of the poll loop.
type StatusSource interface {
	Status() scheduler.Status
}

// Server exposes read-only JSON about the running bot.
type Server struct {
	Status  StatusSource
	History history.Store
	Log     *zap.Logger
}

func (s *Server) Routes() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.History == nil {
		s.History = history.Noop{}
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})
	r.GET("/status", s.handleStatus)
	r.GET("/history", s.handleHistory)
	r.GET("/history/:id", s.handleAttempts)
	return r
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.Log.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.Status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "poll loop not running"})
		return
	}
	c.JSON(http.StatusOK, s.Status.Status())
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	cycles, err := s.History.Recent(c.Request.Context(), limit)
	if err != nil {
		s.Log.Error("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cycles == nil {
		cycles = []history.Cycle{}
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}

func (s *Server) handleAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return
	}
	atts, err := s.History.Attempts(c.Request.Context(), id)
	if err != nil {
		s.Log.Error("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(atts) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attempts for cycle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": atts})
}

// Start serves h on addr until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("status server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
