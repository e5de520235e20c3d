package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-pipeline/internal/middleware"
	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

type fakeCityReader struct {
	cities   []models.CityMetrics
	city     *models.CityMetrics
	run      *models.PipelineRun
	hit      bool
	err      error
	lastCity string
}

func (f *fakeCityReader) Cities(context.Context) ([]models.CityMetrics, bool, error) {
	return f.cities, f.hit, f.err
}

func (f *fakeCityReader) City(_ context.Context, city string) (*models.CityMetrics, bool, error) {
	f.lastCity = city
	return f.city, f.hit, f.err
}

func (f *fakeCityReader) LatestRun(context.Context) (*models.PipelineRun, error) {
	return f.run, f.err
}

func TestCityHandlerList(t *testing.T) {
	first := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	h := NewCityHandler(&fakeCityReader{cities: []models.CityMetrics{
		{City: "Austin", TotalEnrollments: 3, RepeatEnrollments: 1, FirstEnrollment: &first, LastEnrollment: &first},
		{City: "Reno", TotalEnrollments: 1},
	}})

	c, rec := newTestContext(http.MethodGet, "/cities")
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get(middleware.CacheHeader))
	envelope := decodeEnvelope(t, rec)
	var metrics []map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &metrics))
	require.Len(t, metrics, 2)
	assert.Equal(t, "Austin", metrics[0]["city"])
	assert.Equal(t, float64(1), metrics[0]["repeat_enrollments"])
	assert.Nil(t, metrics[1]["first_enrollment"])
}

func TestCityHandlerGet(t *testing.T) {
	reader := &fakeCityReader{city: &models.CityMetrics{City: "San Antonio", TotalEnrollments: 2}, hit: true}
	h := NewCityHandler(reader)

	c, rec := newTestContext(http.MethodGet, "/cities/San%20Antonio")
	c.Params = gin.Params{{Key: "city", Value: "San Antonio"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "San Antonio", reader.lastCity)
	assert.Equal(t, "HIT", rec.Header().Get(middleware.CacheHeader))
}

func TestCityHandlerGetNotFound(t *testing.T) {
	h := NewCityHandler(&fakeCityReader{err: appErrors.Clone(appErrors.ErrNotFound, "city not found")})

	c, rec := newTestContext(http.MethodGet, "/cities/Nowhere")
	c.Params = gin.Params{{Key: "city", Value: "Nowhere"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "NOT_FOUND", envelope.Error["code"])
}

func TestCityHandlerLatestRun(t *testing.T) {
	h := NewCityHandler(&fakeCityReader{run: &models.PipelineRun{RunID: "run-1", RawCount: 6, CleanCount: 4}})

	c, rec := newTestContext(http.MethodGet, "/runs/latest")
	h.LatestRun(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &summary))
	assert.Equal(t, "run-1", summary["run_id"])
	assert.Equal(t, float64(2), summary["dropped"])
}

func TestCityHandlerWithoutService(t *testing.T) {
	h := NewCityHandler(nil)
	c, rec := newTestContext(http.MethodGet, "/cities")
	h.List(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
