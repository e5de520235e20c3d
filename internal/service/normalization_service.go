package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

// NormalizationService runs the normalizer and the validator over a whole dataset.
type NormalizationService struct {
	normalizer *RecordNormalizer
	validator  *RecordValidator
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewNormalizationService constructs a NormalizationService.
func NewNormalizationService(normalizer *RecordNormalizer, validator *RecordValidator, metrics *MetricsService, logger *zap.Logger) *NormalizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = NewRecordNormalizer(logger)
	}
	if validator == nil {
		validator, _ = NewRecordValidator(identityFields, nil, logger)
	}
	return &NormalizationService{normalizer: normalizer, validator: validator, metrics: metrics, logger: logger}
}

// Run normalizes and validates every row of the dataset. A dataset lacking a required raw
// column fails before any row is read; otherwise the full canonical set is returned in input
// order.
func (s *NormalizationService) Run(ctx context.Context, dataset models.Dataset) (*models.PipelineResult, error) {
	if missing := dataset.MissingColumns(models.RequiredRawColumns); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingRequiredColumn,
			"input dataset is missing required column(s): "+strings.Join(missing, ", "))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema := models.BindRawSchema(dataset)
	rows := make([]models.RawRow, len(dataset.Rows))
	for i, record := range dataset.Rows {
		rows[i] = schema.Decode(record)
	}

	normalized := s.normalizer.NormalizeAll(rows)
	records := s.validator.Filter(normalized)

	result := &models.PipelineResult{
		RunID:      uuid.NewString(),
		Records:    records,
		RawCount:   len(rows),
		CleanCount: len(records),
	}

	s.metrics.RecordPipelineRun(result.RawCount, result.CleanCount)
	s.logger.Info("normalization finished",
		zap.String("run_id", result.RunID),
		zap.Int("raw_count", result.RawCount),
		zap.Int("clean_count", result.CleanCount),
		zap.Int("dropped", result.Dropped()),
	)
	return result, nil
}
