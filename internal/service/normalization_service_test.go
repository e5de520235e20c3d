package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

func sampleDataset() models.Dataset {
	return models.Dataset{
		Headers: []string{"record_id", "leader_info", "city_data", "course_enrollment", "program_center", "completion_status"},
		Rows: [][]string{
			{"1", "P1", "Austin | TX", "C1~Fall~2023-01-05", "North", "Complete"},
			{"2", "P2", "Austin|TX", "C1~Fall~2023-02-01", "North", ""},
			{"3", "P1", "Austin", "C2~Spring~bad", "", "Dropped"},
			{"4", "", "Boston|MA", "C1~Fall~2023-03-01"},
			{"x", "P5", "Denver|CO", "C1~Fall~2023-03-02", "", ""},
			{"6", "P6", " | CO", "C1~Fall~2023-03-02", "", ""},
		},
	}
}

func newTestNormalizationService(t *testing.T, required ...string) *NormalizationService {
	t.Helper()
	if len(required) == 0 {
		required = []string{models.FieldEnrollmentID, models.FieldParticipantID, models.FieldCity}
	}
	v, err := NewRecordValidator(required, nil, zap.NewNop())
	require.NoError(t, err)
	return NewNormalizationService(NewRecordNormalizer(zap.NewNop()), v, NewMetricsService(), zap.NewNop())
}

func TestNormalizationServiceRun(t *testing.T) {
	svc := newTestNormalizationService(t)

	result, err := svc.Run(context.Background(), sampleDataset())
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 6, result.RawCount)
	assert.Equal(t, 3, result.CleanCount)
	assert.Equal(t, 3, result.Dropped())
	require.Len(t, result.Records, 3)

	assert.Equal(t, int64(1), result.Records[0].EnrollmentID)
	assert.Equal(t, "Austin", result.Records[0].City)
	assert.Equal(t, int64(3), result.Records[2].EnrollmentID)
	assert.Nil(t, result.Records[2].EnrollmentDate, "unparseable date becomes unknown")
	assert.Equal(t, "Dropped", result.Records[2].CompletionStatus)
	assert.Equal(t, "", result.Records[1].CompletionStatus)
}

func TestNormalizationServiceIdempotent(t *testing.T) {
	svc := newTestNormalizationService(t)

	first, err := svc.Run(context.Background(), sampleDataset())
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.CleanCount, second.CleanCount)
}

func TestNormalizationServiceDateRequired(t *testing.T) {
	svc := newTestNormalizationService(t, models.FieldEnrollmentDate)

	result, err := svc.Run(context.Background(), sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CleanCount)
	for _, rec := range result.Records {
		assert.NotNil(t, rec.EnrollmentDate)
	}
}

func TestNormalizationServiceMissingColumn(t *testing.T) {
	svc := newTestNormalizationService(t)
	ds := models.Dataset{
		Headers: []string{"record_id", "leader_info", "course_enrollment"},
		Rows:    [][]string{{"1", "P1", "C~F~2023-01-01"}},
	}

	result, err := svc.Run(context.Background(), ds)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, appErrors.ErrMissingRequiredColumn)
	assert.Contains(t, err.Error(), "city_data")
}

func TestNormalizationServiceEmptyDataset(t *testing.T) {
	svc := newTestNormalizationService(t)
	ds := models.Dataset{Headers: models.RequiredRawColumns}

	result, err := svc.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RawCount)
	assert.Equal(t, 0, result.CleanCount)
	assert.Empty(t, result.Records)
	assert.Empty(t, AggregateCities(result.Records))
}

func TestNormalizationServiceCountsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	v, err := NewRecordValidator([]string{models.FieldCity}, nil, nil)
	require.NoError(t, err)
	svc := NewNormalizationService(nil, v, metrics, nil)

	_, err = svc.Run(context.Background(), sampleDataset())
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.PipelineRuns)
	assert.Equal(t, uint64(6), snap.RowsRead)
	assert.Equal(t, uint64(3), snap.RecordsKept)
	assert.Equal(t, uint64(3), snap.RecordsDropped)
}

func TestNormalizationServiceCancelled(t *testing.T) {
	svc := newTestNormalizationService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, sampleDataset())
	require.ErrorIs(t, err, context.Canceled)
}
