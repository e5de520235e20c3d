package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/pkg/cache"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

// EnrollmentStore describes the persistence layer required by AnalyticsService.
type EnrollmentStore interface {
	ReplaceRun(ctx context.Context, result *models.PipelineResult, metrics []models.CityMetrics) error
	LatestRun(ctx context.Context) (*models.PipelineRun, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentRecord, int, error)
	ListCityMetrics(ctx context.Context) ([]models.CityMetrics, error)
	FindCityMetrics(ctx context.Context, city string) (*models.CityMetrics, error)
}

// EnrollmentPage is a cached page of canonical records.
type EnrollmentPage struct {
	Records    []models.EnrollmentRecord `json:"records"`
	Pagination models.Pagination         `json:"pagination"`
}

// AnalyticsService publishes pipeline output to the database sink and serves read-optimised
// access to it with cache integration.
type AnalyticsService struct {
	repo    EnrollmentStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo EnrollmentStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Publish stores a run and its city metrics, replacing the previous run, then drops cached reads.
func (s *AnalyticsService) Publish(ctx context.Context, result *models.PipelineResult, metrics []models.CityMetrics) error {
	start := time.Now()
	if err := s.repo.ReplaceRun(ctx, result, metrics); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pipeline run")
	}
	s.metrics.ObserveDBQuery("replace_run", time.Since(start))
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("cache invalidation after publish failed", zap.Error(err))
	}
	s.logger.Info("pipeline run stored",
		zap.String("run_id", result.RunID),
		zap.Int("records", len(result.Records)),
		zap.Int("cities", len(metrics)),
	)
	return nil
}

// Cities returns every city rollup of the stored run. The boolean indicates a cache hit.
func (s *AnalyticsService) Cities(ctx context.Context) ([]models.CityMetrics, bool, error) {
	return readThrough(ctx, s.cache, cache.Key("cities"), func(ctx context.Context) ([]models.CityMetrics, error) {
		start := time.Now()
		metrics, err := s.repo.ListCityMetrics(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list city metrics")
		}
		s.metrics.ObserveDBQuery("list_city_metrics", time.Since(start))
		if metrics == nil {
			metrics = []models.CityMetrics{}
		}
		return metrics, nil
	})
}

// City returns the rollup of one city. Lookup is exact and case-sensitive.
func (s *AnalyticsService) City(ctx context.Context, city string) (*models.CityMetrics, bool, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "city is required")
	}
	return readThrough(ctx, s.cache, cache.Key("city", city), func(ctx context.Context) (*models.CityMetrics, error) {
		start := time.Now()
		metrics, err := s.repo.FindCityMetrics(ctx, city)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "city not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load city metrics")
		}
		s.metrics.ObserveDBQuery("find_city_metrics", time.Since(start))
		return metrics, nil
	})
}

// Enrollments returns a page of canonical records.
func (s *AnalyticsService) Enrollments(ctx context.Context, filter models.EnrollmentFilter) (*EnrollmentPage, bool, error) {
	page, size := pageBounds(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size
	key := cache.Key("records", "city="+filter.City, "participant="+filter.ParticipantID, strconv.Itoa(page), strconv.Itoa(size))

	return readThrough(ctx, s.cache, key, func(ctx context.Context) (*EnrollmentPage, error) {
		start := time.Now()
		records, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		s.metrics.ObserveDBQuery("list_enrollments", time.Since(start))
		if records == nil {
			records = []models.EnrollmentRecord{}
		}
		return &EnrollmentPage{
			Records:    records,
			Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
		}, nil
	})
}

// LatestRun returns the summary of the stored run.
func (s *AnalyticsService) LatestRun(ctx context.Context) (*models.PipelineRun, error) {
	run, err := s.repo.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pipeline run stored")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pipeline run")
	}
	return run, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
