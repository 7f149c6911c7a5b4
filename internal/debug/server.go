// Package debug exposes the console's local operator surface: health,
// connection/unread status and Prometheus metrics.
package debug

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusFunc reports the live state rendered at /status.
type StatusFunc func() map[string]interface{}

type Server struct {
	srv *http.Server
	log *zap.Logger
}

func NewServer(addr string, status StatusFunc, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		srv: &http.Server{Addr: addr, Handler: newRouter(status)},
		log: logger,
	}
}

func newRouter(status StatusFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start serves until Shutdown. Run it in its own goroutine.
func (s *Server) Start() {
	s.log.Info("debug server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("debug server failed", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
