package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/languagebuddy/buddy/internal/metrics"
	"github.com/languagebuddy/buddy/internal/repository/base"
)

// VersionReader reports the applied schema version.
type VersionReader interface {
	Version(ctx context.Context) (int64, error)
}

// OpsServer serves health and metrics endpoints.
type OpsServer struct {
	http   *http.Server
	logger *zap.Logger
}

func NewOpsServer(addr string, db *base.DB, versions VersionReader, m *metrics.Metrics, logger *zap.Logger) *OpsServer {
	return &OpsServer{
		http: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(db, versions, m),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the gin engine with /healthz and /metrics.
func NewRouter(db *base.DB, versions VersionReader, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}

		version, err := versions.Version(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"dialect":        db.Dialect().Name,
			"schema_version": version,
			"subscriptions":  db.Hub().Len(),
		})
	})

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return router
}

// Start serves in the background. The returned channel receives the error
// that stopped the listener, if any.
func (s *OpsServer) Start() <-chan error {
	errs := make(chan error, 1)

	go func() {
		s.logger.Info("Ops server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("ops server: %w", err)
		}
		close(errs)
	}()

	return errs
}

// Shutdown stops the server gracefully.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	s.logger.Info("Ops server stopped")
	return nil
}
