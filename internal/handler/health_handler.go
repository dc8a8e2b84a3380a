package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparesmarket/spares_api/internal/utils"
)

var startTime = time.Now()

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler provides health endpoint.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GetHealth responds with service and dependency status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	deps := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			deps[name] = gin.H{"status": "disconnected", "error": err.Error()}
			continue
		}
		deps[name] = gin.H{"status": "connected"}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	utils.Success(c, code, gin.H{
		"status":       status,
		"uptime":       int(time.Since(startTime).Seconds()),
		"dependencies": deps,
	})
}
