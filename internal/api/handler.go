package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 에러 응답
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for health endpoint
type HealthResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptimeSeconds"`
	Connections int     `json:"connections"`
	Streams     int     `json:"streams"`
}

// HealthHandler handles GET /healthz requests
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(s.started).Seconds(),
		Connections: len(s.provider.Connections()),
		Streams:     len(s.provider.Streams()),
	})
}

// ConnectionsHandler handles GET /api/v1/connections requests
func (s *Server) ConnectionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connections": s.provider.Connections()})
}

// ConnectionHandler handles GET /api/v1/connections/:socketId requests
func (s *Server) ConnectionHandler(c *gin.Context) {
	socketID, err := strconv.ParseUint(c.Param("socketId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid socket id"})
		return
	}

	stats, ok := s.provider.Connection(uint32(socketID))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StreamsHandler handles GET /api/v1/streams requests
func (s *Server) StreamsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": s.provider.Streams()})
}

// StreamHandler handles GET /api/v1/streams/*key requests (키에 '/'가 들어갈 수 있다)
func (s *Server) StreamHandler(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		s.StreamsHandler(c)
		return
	}

	st, ok := s.provider.Stream(key)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "stream not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}
