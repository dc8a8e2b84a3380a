package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/metrics"
	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/utils"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

// Exchange actions accepted in the action query parameter.
const (
	ActionGetCatalog    = "get_catalog"
	ActionGetOffers     = "get_offers"
	ActionGetOrders     = "get_orders"
	ActionGetClassifier = "get_classifier"
	ActionGetExportJobs = "get_export_jobs"
	ActionImportCatalog = "import_catalog"
	ActionImportOffers  = "import_offers"
	ActionImportOrders  = "import_orders"
	ActionExportData    = "export_data"
)

// exchangeActions lists every action the endpoint must serve.
var exchangeActions = []string{
	ActionGetCatalog, ActionGetOffers, ActionGetOrders, ActionGetClassifier, ActionGetExportJobs,
	ActionImportCatalog, ActionImportOffers, ActionImportOrders, ActionExportData,
}

type actionFunc func(c *gin.Context)

// ExchangeConfig holds the endpoint's tunables.
type ExchangeConfig struct {
	WaitTimeout     time.Duration
	RecentJobsLimit int
}

// ExchangeHandler serves the ERP interchange endpoint. Requests are routed
// by HTTP method and the action query parameter through a registry built
// once at construction.
type ExchangeHandler struct {
	mapper   *service.CatalogMapper
	encoders *service.Encoders
	imports  *service.ImportService
	exports  *service.ExportService
	cfg      ExchangeConfig
	routes   map[string]map[string]actionFunc
}

// NewExchangeHandler builds the action registry and verifies that every
// action has exactly one handler.
func NewExchangeHandler(mapper *service.CatalogMapper, encoders *service.Encoders, imports *service.ImportService, exports *service.ExportService, cfg ExchangeConfig) (*ExchangeHandler, error) {
	if cfg.RecentJobsLimit <= 0 {
		cfg.RecentJobsLimit = 20
	}
	h := &ExchangeHandler{
		mapper:   mapper,
		encoders: encoders,
		imports:  imports,
		exports:  exports,
		cfg:      cfg,
		routes: map[string]map[string]actionFunc{
			http.MethodGet:  {},
			http.MethodPost: {},
		},
	}

	reads := []struct {
		action   string
		dataType models.DataType
	}{
		{ActionGetCatalog, models.DataTypeCatalog},
		{ActionGetOffers, models.DataTypeOffers},
		{ActionGetOrders, models.DataTypeOrders},
		{ActionGetClassifier, models.DataTypeClassifier},
	}
	for _, r := range reads {
		if err := h.register(http.MethodGet, r.action, h.read(r.dataType)); err != nil {
			return nil, err
		}
	}

	for _, reg := range []struct {
		method, action string
		fn             actionFunc
	}{
		{http.MethodGet, ActionGetExportJobs, h.listJobs},
		{http.MethodPost, ActionImportCatalog, h.importCatalog},
		{http.MethodPost, ActionImportOffers, h.importOffers},
		{http.MethodPost, ActionImportOrders, h.importOrders},
		{http.MethodPost, ActionExportData, h.exportData},
	} {
		if err := h.register(reg.method, reg.action, reg.fn); err != nil {
			return nil, err
		}
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *ExchangeHandler) register(method, action string, fn actionFunc) error {
	if fn == nil {
		return fmt.Errorf("exchange action %q has no handler", action)
	}
	for m, actions := range h.routes {
		if _, dup := actions[action]; dup {
			return fmt.Errorf("exchange action %q registered twice (%s)", action, m)
		}
	}
	h.routes[method][action] = fn
	return nil
}

func (h *ExchangeHandler) validate() error {
	for _, action := range exchangeActions {
		if h.lookupAny(action) == nil {
			return fmt.Errorf("exchange action %q has no handler", action)
		}
	}
	return nil
}

func (h *ExchangeHandler) lookupAny(action string) actionFunc {
	for _, actions := range h.routes {
		if fn, ok := actions[action]; ok {
			return fn
		}
	}
	return nil
}

// Handle serves GET and POST /v1/exchange?action=...
func (h *ExchangeHandler) Handle(c *gin.Context) {
	action := strings.TrimSpace(c.Query("action"))
	if action == "" {
		utils.Error(c, http.StatusBadRequest, "action parameter is required")
		return
	}

	fn, ok := h.routes[c.Request.Method][action]
	if !ok {
		if h.lookupAny(action) != nil {
			utils.Error(c, http.StatusBadRequest, fmt.Sprintf("action %s is not available via %s", action, c.Request.Method))
			return
		}
		utils.Error(c, http.StatusBadRequest, "unknown action: "+action)
		return
	}

	metrics.ExchangeActions.WithLabelValues(action).Inc()
	fn(c)
}

// read serves a get_* action in json or xml.
func (h *ExchangeHandler) read(dataType models.DataType) actionFunc {
	return func(c *gin.Context) {
		format := models.Format(strings.ToLower(c.DefaultQuery("format", string(models.FormatXML))))
		if format != models.FormatJSON && format != models.FormatXML {
			utils.Error(c, http.StatusBadRequest, fmt.Sprintf("unsupported format %q: use json or xml", format))
			return
		}

		rs, err := h.mapper.Load(c.Request.Context(), dataType)
		if err != nil {
			log.Error().Err(err).Str("data_type", string(dataType)).Msg("Failed to load exchange data")
			utils.Error(c, http.StatusInternalServerError, fmt.Sprintf("failed to load %s: %v", dataType, err))
			return
		}

		if format == models.FormatJSON {
			utils.Success(c, http.StatusOK, gin.H{
				"count":          rs.Len(),
				string(dataType): rs.Records(),
			})
			return
		}

		data, err := h.encoders.Encode(rs, format)
		if err != nil {
			log.Error().Err(err).Str("data_type", string(dataType)).Msg("Failed to encode exchange data")
			utils.Error(c, http.StatusInternalServerError, fmt.Sprintf("failed to encode %s: %v", dataType, err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xml"`, dataType))
		c.Data(http.StatusOK, format.ContentType(), data)
	}
}

func (h *ExchangeHandler) listJobs(c *gin.Context) {
	if f := c.Query("format"); f != "" && !strings.EqualFold(f, string(models.FormatJSON)) {
		utils.Error(c, http.StatusBadRequest, "get_export_jobs supports json only")
		return
	}

	jobs, err := h.exports.ListRecentJobs(c.Request.Context(), h.cfg.RecentJobsLimit)
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

func isXMLBody(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.ContentType()), "xml")
}

func (h *ExchangeHandler) importCatalog(c *gin.Context) {
	var records []models.CatalogRecord
	if isXMLBody(c) {
		doc, err := commerceml.Decode(c.Request.Body)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid XML body: "+err.Error())
			return
		}
		if doc.Catalog == nil {
			utils.Error(c, http.StatusBadRequest, "XML body has no catalog")
			return
		}
		records = service.CatalogRecordsFromXML(doc)
	} else {
		var body struct {
			Products *[]models.CatalogRecord `json:"products"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Products == nil {
			utils.Error(c, http.StatusBadRequest, "products array is required")
			return
		}
		records = *body.Products
	}

	h.respondImport(c, "catalog", func(ctx context.Context) (models.ImportBatchResult, error) {
		return h.imports.ImportCatalog(ctx, records)
	})
}

func (h *ExchangeHandler) importOffers(c *gin.Context) {
	var records []models.OfferRecord
	if isXMLBody(c) {
		doc, err := commerceml.Decode(c.Request.Body)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid XML body: "+err.Error())
			return
		}
		if doc.OfferPackage == nil {
			utils.Error(c, http.StatusBadRequest, "XML body has no offer package")
			return
		}
		records = service.OfferRecordsFromXML(doc)
	} else {
		var body struct {
			Offers *[]models.OfferRecord `json:"offers"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Offers == nil {
			utils.Error(c, http.StatusBadRequest, "offers array is required")
			return
		}
		records = *body.Offers
	}

	h.respondImport(c, "offers", func(ctx context.Context) (models.ImportBatchResult, error) {
		return h.imports.ImportOffers(ctx, records)
	})
}

func (h *ExchangeHandler) importOrders(c *gin.Context) {
	var body struct {
		Orders *[]models.OrderRecord `json:"orders"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Orders == nil {
		utils.Error(c, http.StatusBadRequest, "orders array is required")
		return
	}
	records := *body.Orders

	h.respondImport(c, "orders", func(ctx context.Context) (models.ImportBatchResult, error) {
		return h.imports.ImportOrders(ctx, records)
	})
}

func (h *ExchangeHandler) respondImport(c *gin.Context, kind string, run func(context.Context) (models.ImportBatchResult, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		if errors.Is(err, utils.ErrBatchTooLarge) {
			utils.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("kind", kind).Msg("Import aborted")
		utils.Error(c, http.StatusInternalServerError, fmt.Sprintf("%s import aborted: %v", kind, err))
		return
	}

	failures := result.Failures
	if failures == nil {
		failures = []models.RecordFailure{}
	}
	utils.Success(c, http.StatusOK, gin.H{
		"stats":    result.Stats,
		"failures": failures,
	})
}

// ExportRequest is the body of export_data.
type ExportRequest struct {
	DataType models.DataType `json:"data_type"`
	Format   models.Format   `json:"format"`
	Async    bool            `json:"async"`
}

func (h *ExchangeHandler) exportData(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.DataType == "" || req.Format == "" {
		utils.Error(c, http.StatusBadRequest, "data_type and format are required")
		return
	}

	ctx := c.Request.Context()
	job, err := h.exports.Submit(ctx, req.DataType, req.Format)
	if err != nil {
		if service.IsRequestError(err) {
			utils.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to create export job: "+err.Error())
		return
	}

	if req.Async {
		respondAccepted(c, job)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.WaitTimeout)
	defer cancel()
	done, err := h.exports.Await(waitCtx, job.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if done == nil {
				done = job
			}
			respondAccepted(c, done)
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to read export job: "+err.Error())
		return
	}

	if done.Status == models.JobStatusFailed {
		msg := "export failed"
		if done.ErrorMessage != nil {
			msg = "export failed: " + *done.ErrorMessage
		}
		utils.Error(c, http.StatusInternalServerError, msg)
		return
	}

	url, err := h.exports.DownloadURL(ctx, done)
	if err != nil {
		log.Error().Err(err).Str("job_id", done.ID).Msg("Failed to build download link")
		utils.Error(c, http.StatusInternalServerError, "failed to build download link")
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"jobId":       done.ID,
		"fileName":    done.FileName,
		"fileUrl":     url,
		"recordCount": done.RecordCount,
	})
}

func respondAccepted(c *gin.Context, job *models.ExportJob) {
	utils.Success(c, http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}
