package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Wi-SUN e-meter backend is running",
		"timestamp":   s.clock.Now().UTC(),
		"connections": s.liveEvents.Count(),
	})
}

func (s *Server) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Wi-SUN e-meter backend API",
		"service": s.cfg.AppName,
		"version": s.cfg.AppVersion,
		"endpoints": gin.H{
			"devices": "/api/devices",
			"nodes":   "/api/nodes",
			"meter":   "/api/meter",
			"stream":  "/api/meter/stream",
			"health":  "/api/health",
			"metrics": "/metrics",
		},
	})
}
