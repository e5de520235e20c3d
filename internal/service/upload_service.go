package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/dto"
	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/pkg/airtable"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/jobs"
)

type recordCreator interface {
	CreateRecords(ctx context.Context, table string, fields []airtable.Fields) ([]string, error)
}

// UploadConfig tunes batching and retry behaviour of UploadService.
type UploadConfig struct {
	EnrollmentsTable string
	CitiesTable      string
	BatchSize        int
	Workers          int
	MaxRetries       int
	RetryDelay       time.Duration
}

// UploadReport summarises one table upload.
type UploadReport struct {
	Table     string
	Records   int
	Batches   int
	Succeeded int
	Failed    int
	Errors    []error
}

// Err folds the batch failures into a single TRANSPORT_FAILURE error, or nil.
func (r *UploadReport) Err() error {
	if r == nil || r.Failed == 0 {
		return nil
	}
	return appErrors.Wrap(errors.Join(r.Errors...), appErrors.ErrTransport.Code, appErrors.ErrTransport.Status,
		fmt.Sprintf("%d of %d %s batches failed", r.Failed, r.Batches, r.Table))
}

type uploadBatch struct {
	index  int
	fields []airtable.Fields
}

// UploadService hands canonical records and city metrics off to the remote tables in batches.
type UploadService struct {
	client  recordCreator
	cfg     UploadConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(client recordCreator, cfg UploadConfig, metrics *MetricsService, logger *zap.Logger) *UploadService {
	if cfg.BatchSize <= 0 || cfg.BatchSize > airtable.MaxRecordsPerRequest {
		cfg.BatchSize = airtable.MaxRecordsPerRequest
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.EnrollmentsTable == "" {
		cfg.EnrollmentsTable = "Enrollments"
	}
	if cfg.CitiesTable == "" {
		cfg.CitiesTable = "Cities"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{client: client, cfg: cfg, metrics: metrics, logger: logger}
}

// UploadEnrollments uploads canonical records to the enrollments table.
func (s *UploadService) UploadEnrollments(ctx context.Context, records []models.EnrollmentRecord) (*UploadReport, error) {
	fields := make([]airtable.Fields, len(records))
	for i, rec := range records {
		fields[i] = dto.EnrollmentFields(rec)
	}
	return s.upload(ctx, s.cfg.EnrollmentsTable, fields)
}

// UploadCities uploads city rollups to the cities table.
func (s *UploadService) UploadCities(ctx context.Context, metrics []models.CityMetrics) (*UploadReport, error) {
	fields := make([]airtable.Fields, len(metrics))
	for i, m := range metrics {
		fields[i] = dto.CityFields(m)
	}
	return s.upload(ctx, s.cfg.CitiesTable, fields)
}

// upload splits rows into batches and pushes them through a worker queue. Batch failures are
// collected in the report; the returned error is reserved for cancellation.
func (s *UploadService) upload(ctx context.Context, table string, rows []airtable.Fields) (*UploadReport, error) {
	report := &UploadReport{Table: table, Records: len(rows)}
	if len(rows) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	handler := func(ctx context.Context, job jobs.Job) error {
		batch := job.Payload.(uploadBatch)
		start := time.Now()
		_, err := s.client.CreateRecords(ctx, table, batch.fields)
		s.metrics.ObserveUploadRequest(table, time.Since(start))
		var terr *airtable.TransportError
		if errors.As(err, &terr) && !terr.Retryable() {
			return jobs.Permanent(err)
		}
		return err
	}

	queue := jobs.NewQueue("upload-"+table, handler, jobs.QueueConfig{
		Workers:    s.cfg.Workers,
		MaxRetries: s.cfg.MaxRetries,
		RetryDelay: s.cfg.RetryDelay,
		Logger:     s.logger,
		OnSuccess: func(job jobs.Job) {
			mu.Lock()
			report.Succeeded++
			mu.Unlock()
			s.metrics.RecordUploadBatch(table, true)
		},
		OnFailure: func(job jobs.Job, err error) {
			batch := job.Payload.(uploadBatch)
			mu.Lock()
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("batch %d: %w", batch.index, err))
			mu.Unlock()
			s.metrics.RecordUploadBatch(table, false)
		},
	})
	queue.Start(ctx)
	defer queue.Stop()

	runID := uuid.NewString()
	for start := 0; start < len(rows); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		report.Batches++
		job := jobs.Job{
			ID:      fmt.Sprintf("%s-%d", runID, report.Batches),
			Type:    table,
			Payload: uploadBatch{index: report.Batches, fields: rows[start:end]},
		}
		if err := queue.Enqueue(job); err != nil {
			return report, fmt.Errorf("enqueue %s batch: %w", table, err)
		}
	}

	if err := queue.Wait(ctx); err != nil {
		return report, err
	}

	mu.Lock()
	defer mu.Unlock()
	s.logger.Info("upload finished",
		zap.String("table", table),
		zap.Int("records", report.Records),
		zap.Int("batches", report.Batches),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
