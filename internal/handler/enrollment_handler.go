package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-pipeline/internal/middleware"
	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/internal/service"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/response"
)

type enrollmentReader interface {
	Enrollments(ctx context.Context, filter models.EnrollmentFilter) (*service.EnrollmentPage, bool, error)
}

// EnrollmentHandler serves canonical records of the stored run.
type EnrollmentHandler struct {
	enrollments enrollmentReader
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentReader) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List canonical enrollment records
// @Tags Enrollments
// @Produce json
// @Param city query string false "Exact city"
// @Param participant_id query string false "Participant identifier"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	if h.enrollments == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter := models.EnrollmentFilter{
		City:          strings.TrimSpace(c.Query("city")),
		ParticipantID: strings.TrimSpace(c.Query("participant_id")),
	}
	var err error
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageSize, err = intQuery(c, "page_size", 20); err != nil {
		response.Error(c, err)
		return
	}

	page, cacheHit, err := h.enrollments.Enrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	pagination := page.Pagination
	response.JSON(c, http.StatusOK, page.Records, &pagination, middleware.ExtractMeta(c))
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a positive integer")
	}
	return v, nil
}
