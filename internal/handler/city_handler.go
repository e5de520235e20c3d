package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-pipeline/internal/middleware"
	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/response"
)

type cityMetricsReader interface {
	Cities(ctx context.Context) ([]models.CityMetrics, bool, error)
	City(ctx context.Context, city string) (*models.CityMetrics, bool, error)
	LatestRun(ctx context.Context) (*models.PipelineRun, error)
}

// CityHandler exposes per-city aggregates of the stored run.
type CityHandler struct {
	analytics cityMetricsReader
}

// NewCityHandler constructs CityHandler.
func NewCityHandler(analytics cityMetricsReader) *CityHandler {
	return &CityHandler{analytics: analytics}
}

// List godoc
// @Summary List city metrics
// @Tags Cities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cities [get]
func (h *CityHandler) List(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	metrics, cacheHit, err := h.analytics.Cities(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, metrics, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get metrics for one city
// @Tags Cities
// @Produce json
// @Param city path string true "City name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cities/{city} [get]
func (h *CityHandler) Get(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	metrics, cacheHit, err := h.analytics.City(c.Request.Context(), c.Param("city"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, metrics, nil, middleware.ExtractMeta(c))
}

// LatestRun godoc
// @Summary Summary of the stored pipeline run
// @Tags Runs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /runs/latest [get]
func (h *CityHandler) LatestRun(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	run, err := h.analytics.LatestRun(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"run_id":      run.RunID,
		"raw_count":   run.RawCount,
		"clean_count": run.CleanCount,
		"dropped":     run.RawCount - run.CleanCount,
		"created_at":  run.CreatedAt,
	}, nil)
}
