package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ExportJobHandler exposes export jobs to admins.
type ExportJobHandler struct {
	exports *service.ExportService
}

// NewExportJobHandler constructs an ExportJobHandler.
func NewExportJobHandler(exports *service.ExportService) *ExportJobHandler {
	return &ExportJobHandler{exports: exports}
}

// List handles GET /v1/admin/exchange/jobs?limit=
func (h *ExportJobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := h.exports.ListRecentJobs(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list export jobs")
		utils.Error(c, http.StatusInternalServerError, "failed to list export jobs")
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// Get handles GET /v1/admin/exchange/jobs/:id
func (h *ExportJobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		utils.Error(c, http.StatusNotFound, "export job not found")
		return
	}

	ctx := c.Request.Context()
	job, err := h.exports.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "export job not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load export job")
		utils.Error(c, http.StatusInternalServerError, "failed to load export job")
		return
	}

	resp := gin.H{"job": job}
	if job.Status == models.JobStatusCompleted {
		url, err := h.exports.DownloadURL(ctx, job)
		if err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to build download link")
		} else {
			resp["downloadUrl"] = url
		}
	}
	utils.Success(c, http.StatusOK, resp)
}

// Create handles POST /v1/admin/exchange/jobs
func (h *ExportJobHandler) Create(c *gin.Context) {
	var req struct {
		DataType models.DataType `json:"data_type" binding:"required"`
		Format   models.Format   `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "data_type and format are required")
		return
	}

	job, err := h.exports.Submit(c.Request.Context(), req.DataType, req.Format)
	if err != nil {
		if service.IsRequestError(err) {
			utils.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to create export job")
		utils.Error(c, http.StatusInternalServerError, "failed to create export job")
		return
	}
	utils.Success(c, http.StatusAccepted, gin.H{"job": job})
}
