package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryReplaceRun(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	date := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	result := &models.PipelineResult{
		RunID: "run-1",
		Records: []models.EnrollmentRecord{
			{EnrollmentID: 1, ParticipantID: "P1", City: "Austin", EnrollmentDate: &date},
			{EnrollmentID: 2, ParticipantID: "P2", City: "Austin"},
		},
		RawCount:   3,
		CleanCount: 2,
	}
	metrics := []models.CityMetrics{{City: "Austin", TotalEnrollments: 2, FirstEnrollment: &date, LastEnrollment: &date}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_records")).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM city_metrics")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pipeline_runs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_runs")).
		WithArgs("run-1", 3, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_records")).
		WithArgs(
			"run-1", 0, int64(1), "P1", "Austin", sqlmock.AnyArg(), "", "",
			"run-1", 1, int64(2), "P2", "Austin", sqlmock.AnyArg(), "", "",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO city_metrics")).
		WithArgs("run-1", "Austin", 2, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceRun(context.Background(), result, metrics))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReplaceRunRollsBack(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_records")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.ReplaceRun(context.Background(), &models.PipelineResult{RunID: "run-2"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear enrollment_records")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "participant_id", "city", "enrollment_date", "program_center", "completion_status"}).
		AddRow(int64(7), "P7", "Denver", time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), "North", "Complete").
		AddRow(int64(8), "P8", "Denver", nil, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_records WHERE city = $1 ORDER BY position ASC LIMIT 20 OFFSET 0")).
		WithArgs("Denver").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollment_records WHERE city = $1")).
		WithArgs("Denver").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	records, total, err := repo.List(context.Background(), models.EnrollmentFilter{City: "Denver"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, int64(7), records[0].EnrollmentID)
	require.NotNil(t, records[0].EnrollmentDate)
	assert.Nil(t, records[1].EnrollmentDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListCityMetrics(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"city", "total_enrollments", "repeat_enrollments", "first_enrollment", "last_enrollment"}).
		AddRow("Austin", 3, 1, time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)).
		AddRow("Boston", 1, 0, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM city_metrics ORDER BY total_enrollments DESC, city ASC")).WillReturnRows(rows)

	metrics, err := repo.ListCityMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, "Austin", metrics[0].City)
	assert.Nil(t, metrics[1].FirstEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindCityMetricsNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM city_metrics WHERE city = $1")).
		WithArgs("Nowhere").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCityMetrics(context.Background(), "Nowhere")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
