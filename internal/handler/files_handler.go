package handler

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/storage"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// FilesHandler serves export payloads kept on local disk through signed links.
type FilesHandler struct {
	store *storage.LocalStore
}

// NewFilesHandler constructs a FilesHandler.
func NewFilesHandler(store *storage.LocalStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Download handles GET /v1/exchange/files/*key
func (h *FilesHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	file, err := h.store.Open(key, c.Query("expires"), c.Query("sig"))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidSignature):
			utils.Error(c, http.StatusForbidden, "invalid download link")
		case errors.Is(err, utils.ErrLinkExpired):
			utils.Error(c, http.StatusGone, "download link has expired")
		case errors.Is(err, utils.ErrNotFound):
			utils.Error(c, http.StatusNotFound, "file not found")
		default:
			log.Error().Err(err).Str("key", key).Msg("Failed to open export payload")
			utils.Error(c, http.StatusInternalServerError, "failed to open file")
		}
		return
	}

	name := c.Query("name")
	if name == "" {
		name = path.Base(key)
	}
	c.FileAttachment(file, name)
}
