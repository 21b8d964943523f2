package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"srtingest/internal/ingest"
	"srtingest/pkg/srt"
)

// Provider API가 조회하는 수집 서비스 상태
type Provider interface {
	Connections() []srt.ConnectionStats
	Connection(socketID uint32) (srt.ConnectionStats, bool)
	Streams() []ingest.Stream
	Stream(key string) (ingest.Stream, bool)
}

// Server represents the API server
type Server struct {
	router   *gin.Engine
	port     string
	provider Provider
	gatherer prometheus.Gatherer // nil이면 /metrics 비활성
	started  time.Time
	http     *http.Server
}

// NewServer creates a new API server instance
func NewServer(port string, provider Provider, gatherer prometheus.Gatherer) *Server {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add basic middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		port:     port,
		provider: provider,
		gatherer: gatherer,
		started:  time.Now(),
	}
	s.SetupRoutes()

	return s
}

// SetupRoutes configures all API routes
func (s *Server) SetupRoutes() {
	s.router.GET("/healthz", s.HealthHandler)

	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 group
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/connections", s.ConnectionsHandler)
		v1.GET("/connections/:socketId", s.ConnectionHandler)
		v1.GET("/streams", s.StreamsHandler)
		v1.GET("/streams/*key", s.StreamHandler)
	}
}

// Start starts the API server
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 논블로킹으로 서버 시작
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server error", "err", err)
		}
	}()

	return nil
}

// Stop 진행 중인 요청을 기다리며 종료
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// GetRouter returns the gin router (for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
