// Package server exposes the save-game boundary over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/recorder"
)

// PlayerHeader names the player a request is recorded for.
const PlayerHeader = "X-Player"

// SessionRecorder stores finished sessions.
type SessionRecorder interface {
	Record(ctx context.Context, user string, summary model.SessionSummary) (model.SavedSession, error)
}

// SaveGameRequest is the JSON body of POST /api/save-game.
type SaveGameRequest struct {
	NLevel  int          `json:"nLevel" binding:"required,min=1"`
	Rounds  int          `json:"rounds" binding:"min=0"`
	Score   int          `json:"score"`
	Matches MatchesInput `json:"matches"`
}

// MatchesInput holds target counts per channel.
type MatchesInput struct {
	Pos   *int `json:"pos" binding:"required,min=0"`
	Audio *int `json:"audio" binding:"required,min=0"`
}

type metrics struct {
	saved    prometheus.Counter
	rejected *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dualnback_sessions_saved_total",
			Help: "Sessions accepted by the save-game endpoint",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dualnback_sessions_rejected_total",
			Help: "Sessions rejected by the save-game endpoint, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.saved, m.rejected)
	return m
}

// Server wires the HTTP routes.
type Server struct {
	recorder    SessionRecorder
	defaultUser string
	logger      *zap.Logger
	metrics     *metrics
	registry    *prometheus.Registry
}

// New builds a Server. Requests without a player header are recorded for defaultUser.
func New(rec SessionRecorder, defaultUser string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	return &Server{
		recorder:    rec,
		defaultUser: defaultUser,
		logger:      logger,
		metrics:     newMetrics(reg),
		registry:    reg,
	}
}

// Handler returns the gin engine serving all routes.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.POST("/api/save-game", s.handleSaveGame)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", zap.String("addr", addr))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleSaveGame(c *gin.Context) {
	var req SaveGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.rejected.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	user := strings.TrimSpace(c.GetHeader(PlayerHeader))
	if user == "" {
		user = s.defaultUser
	}
	now := time.Now()
	summary := model.SessionSummary{
		NLevel:    req.NLevel,
		Rounds:    req.Rounds,
		Score:     req.Score,
		Matches:   model.Matches{Pos: *req.Matches.Pos, Audio: *req.Matches.Audio},
		StartedAt: now,
		EndedAt:   now,
	}
	saved, err := s.recorder.Record(c.Request.Context(), user, summary)
	switch {
	case errors.Is(err, recorder.ErrSessionTooShort):
		s.metrics.rejected.WithLabelValues("too_short").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"message": "Session too short"})
		return
	case err != nil:
		s.metrics.rejected.WithLabelValues("storage").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save result"})
		return
	}
	s.metrics.saved.Inc()
	c.JSON(http.StatusOK, saved)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
