package health

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Manager tracks readiness for a single service instance. The server flips
// it off during shutdown so load balancers drain before connections close.
type Manager struct {
	service string
	ready   atomic.Bool
}

func NewManager(service string, initialReady bool) *Manager {
	m := &Manager{service: service}
	m.ready.Store(initialReady)
	return m
}

func (m *Manager) SetReady(ready bool) {
	m.ready.Store(ready)
}

func (m *Manager) IsReady() bool {
	return m.ready.Load()
}

func LivenessHandler(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	}
}

func ReadinessHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.IsReady() {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "service": m.service})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "service": m.service})
	}
}
