package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ClientHandler manages ERP exchange clients for admins.
type ClientHandler struct {
	clientService *service.ClientService
}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler(clientService *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Create handles POST /v1/admin/exchange/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			utils.Error(c, http.StatusConflict, "client already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to create exchange client")
		utils.Error(c, http.StatusInternalServerError, "failed to create client")
		return
	}
	utils.Success(c, http.StatusCreated, gin.H{"client": client})
}

// List handles GET /v1/admin/exchange/clients
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clientService.ListClients(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list exchange clients")
		utils.Error(c, http.StatusInternalServerError, "failed to list clients")
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"count":   len(clients),
		"clients": clients,
	})
}

// SetStatus handles PUT /v1/admin/exchange/clients/:id/status
func (h *ClientHandler) SetStatus(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "isActive is required")
		return
	}

	client, err := h.clientService.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{"client": client})
}

// RegenerateKey handles POST /v1/admin/exchange/clients/:id/regenerate
func (h *ClientHandler) RegenerateKey(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	client, err := h.clientService.RegenerateKey(c.Request.Context(), id)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{"client": client})
}

func (h *ClientHandler) writeErr(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrNotFound) {
		utils.Error(c, http.StatusNotFound, "client not found")
		return
	}
	log.Error().Err(err).Msg("Exchange client update failed")
	utils.Error(c, http.StatusInternalServerError, "failed to update client")
}

func clientIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.Error(c, http.StatusBadRequest, "invalid client id")
		return 0, false
	}
	return id, true
}
