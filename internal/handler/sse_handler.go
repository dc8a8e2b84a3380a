package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/sse"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// SSEHandler streams export job events to admin dashboards.
type SSEHandler struct {
	hub       *sse.Hub
	keepAlive time.Duration
}

// NewSSEHandler creates a new SSEHandler.
func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, keepAlive: 30 * time.Second}
}

// Stream handles GET /v1/admin/exchange/events?token=<jwt>[&job_id=&data_type=&final=true]
// EventSource API cannot set custom headers, so JWT is passed via query param.
func (h *SSEHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.Error(c, http.StatusUnauthorized, "missing token query parameter")
		return
	}

	claims, err := utils.ValidateJWT(token)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	filter := sse.Filter{
		JobID:     c.Query("job_id"),
		DataType:  c.Query("data_type"),
		FinalOnly: c.Query("final") == "true",
	}
	if filter.DataType != "" && !models.DataType(filter.DataType).IsValid() {
		utils.Error(c, http.StatusBadRequest, "unknown data_type: "+filter.DataType)
		return
	}

	clientID := fmt.Sprintf("admin-%d-%d", claims.UserID, time.Now().UnixNano())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx

	client := h.hub.Register(clientID, filter)
	defer h.hub.Unregister(clientID)

	c.SSEvent("connected", gin.H{
		"clientId":  clientID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.Writer.Flush()

	log.Info().Str("client_id", clientID).Int64("user_id", claims.UserID).Msg("Admin SSE stream started")

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent("export_job", string(data))
			return true
		case <-time.After(h.keepAlive):
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
