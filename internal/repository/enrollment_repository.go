package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
)

const recordInsertChunk = 500

// EnrollmentRepository persists canonical records and city metrics of the latest pipeline run.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ReplaceRun swaps the stored data set for the given run in a single transaction.
func (r *EnrollmentRepository) ReplaceRun(ctx context.Context, result *models.PipelineResult, metrics []models.CityMetrics) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace run transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"enrollment_records", "city_metrics", "pipeline_runs"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	const runQuery = `INSERT INTO pipeline_runs (run_id, raw_count, clean_count, created_at) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, runQuery, result.RunID, result.RawCount, result.CleanCount, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}

	if err = insertRecords(ctx, tx, result.RunID, result.Records); err != nil {
		return err
	}
	if err = insertMetrics(ctx, tx, result.RunID, metrics); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace run: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sqlx.Tx, runID string, records []models.EnrollmentRecord) error {
	for start := 0; start < len(records); start += recordInsertChunk {
		end := start + recordInsertChunk
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for i, rec := range chunk {
			n := len(args)
			values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
			args = append(args, runID, start+i, rec.EnrollmentID, rec.ParticipantID, rec.City, rec.EnrollmentDate, rec.ProgramCenter, rec.CompletionStatus)
		}
		query := `INSERT INTO enrollment_records
    (run_id, position, enrollment_id, participant_id, city, enrollment_date, program_center, completion_status)
    VALUES ` + strings.Join(values, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert enrollment records: %w", err)
		}
	}
	return nil
}

func insertMetrics(ctx context.Context, tx *sqlx.Tx, runID string, metrics []models.CityMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	values := make([]string, len(metrics))
	args := make([]interface{}, 0, len(metrics)*6)
	for i, m := range metrics {
		n := len(args)
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, runID, m.City, m.TotalEnrollments, m.RepeatEnrollments, m.FirstEnrollment, m.LastEnrollment)
	}
	query := `INSERT INTO city_metrics
    (run_id, city, total_enrollments, repeat_enrollments, first_enrollment, last_enrollment)
    VALUES ` + strings.Join(values, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert city metrics: %w", err)
	}
	return nil
}

// LatestRun returns the stored run summary.
func (r *EnrollmentRepository) LatestRun(ctx context.Context) (*models.PipelineRun, error) {
	const query = `SELECT run_id, raw_count, clean_count, created_at FROM pipeline_runs ORDER BY created_at DESC LIMIT 1`
	var run models.PipelineRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns canonical records filtered by city and participant in stored order.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentRecord, int, error) {
	var conditions []string
	var args []interface{}

	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("city = $%d", len(args)+1))
		args = append(args, filter.City)
	}
	if filter.ParticipantID != "" {
		conditions = append(conditions, fmt.Sprintf("participant_id = $%d", len(args)+1))
		args = append(args, filter.ParticipantID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT enrollment_id, participant_id, city, enrollment_date, program_center, completion_status
        FROM enrollment_records%s ORDER BY position ASC LIMIT %d OFFSET %d`, clause, size, offset)

	var records []models.EnrollmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollment_records"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment records: %w", err)
	}
	return records, total, nil
}

// ListCityMetrics returns every stored city rollup, largest cities first.
func (r *EnrollmentRepository) ListCityMetrics(ctx context.Context) ([]models.CityMetrics, error) {
	const query = `SELECT city, total_enrollments, repeat_enrollments, first_enrollment, last_enrollment
        FROM city_metrics ORDER BY total_enrollments DESC, city ASC`
	var metrics []models.CityMetrics
	if err := r.db.SelectContext(ctx, &metrics, query); err != nil {
		return nil, fmt.Errorf("list city metrics: %w", err)
	}
	return metrics, nil
}

// FindCityMetrics returns the rollup for one city.
func (r *EnrollmentRepository) FindCityMetrics(ctx context.Context, city string) (*models.CityMetrics, error) {
	const query = `SELECT city, total_enrollments, repeat_enrollments, first_enrollment, last_enrollment
        FROM city_metrics WHERE city = $1`
	var metrics models.CityMetrics
	if err := r.db.GetContext(ctx, &metrics, query, city); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// Ping reports whether the database is reachable.
func (r *EnrollmentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
