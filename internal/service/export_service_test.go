package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/export"
	"github.com/noah-isme/enrollment-pipeline/pkg/storage"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewExportService(store, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceCanonicalRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	records := []models.EnrollmentRecord{
		{EnrollmentID: 1, ParticipantID: "P1", City: "Austin", EnrollmentDate: ptrTime(time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)), ProgramCenter: "North, Campus", CompletionStatus: "Complete"},
		{EnrollmentID: 2, ParticipantID: "P2", City: "São Paulo", EnrollmentDate: ptrTime(time.Date(2023, 2, 1, 14, 30, 0, 0, time.UTC))},
		{EnrollmentID: 3, ParticipantID: "P1", City: "Austin"},
		{EnrollmentID: 4, ParticipantID: "P4", City: "Denver", EnrollmentDate: ptrTime(time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.UTC))},
		{EnrollmentID: 5, ParticipantID: "P5", City: "Denver", EnrollmentDate: ptrTime(time.Date(2024, 5, 1, 23, 30, 0, 0, time.FixedZone("", -5*3600)))},
	}

	rel, err := svc.SaveCanonical("data/clean.csv", records)
	require.NoError(t, err)

	loaded, err := svc.LoadCanonical(rel)
	require.NoError(t, err)
	require.Len(t, loaded, len(records))
	for i := range records {
		assert.Equal(t, records[i].EnrollmentID, loaded[i].EnrollmentID)
		assert.Equal(t, records[i].ParticipantID, loaded[i].ParticipantID)
		assert.Equal(t, records[i].City, loaded[i].City)
		assert.Equal(t, records[i].ProgramCenter, loaded[i].ProgramCenter)
		assert.Equal(t, records[i].CompletionStatus, loaded[i].CompletionStatus)
		assert.True(t, models.SameDay(records[i].EnrollmentDate, loaded[i].EnrollmentDate), "row %d date", i)
		assert.Equal(t, models.FormatDate(records[i].EnrollmentDate), models.FormatDate(loaded[i].EnrollmentDate), "row %d rendering", i)
	}
	assert.Equal(t, 1, loaded[4].EnrollmentDate.Day(), "offset dates keep their calendar day")
}

func TestExportServiceCanonicalHeader(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	_, err := svc.SaveCanonical("clean.csv", nil)
	require.NoError(t, err)

	content, err := os.ReadFile(store.Path("clean.csv"))
	require.NoError(t, err)
	assert.Equal(t, "enrollment_id,participant_id,city,enrollment_date,program_center,completion_status\n", string(content))

	loaded, err := svc.LoadCanonical("clean.csv")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestExportServiceLoadCanonicalRejectsBadInput(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	require.NoError(t, os.WriteFile(store.Path("no_city.csv"), []byte("enrollment_id,participant_id\n1,P1\n"), 0o644))
	_, err := svc.LoadCanonical("no_city.csv")
	assert.ErrorIs(t, err, appErrors.ErrMissingRequiredColumn)

	require.NoError(t, os.WriteFile(store.Path("bad_id.csv"), []byte("enrollment_id,participant_id,city\nabc,P1,Austin\n"), 0o644))
	_, err = svc.LoadCanonical("bad_id.csv")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.LoadCanonical("missing.csv")
	require.Error(t, err)
}

func TestExportServiceSaveMetricsAndReport(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	metrics := []models.CityMetrics{
		{City: "Austin", TotalEnrollments: 3, RepeatEnrollments: 1,
			FirstEnrollment: ptrTime(time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)),
			LastEnrollment:  ptrTime(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))},
		{City: "Boston", TotalEnrollments: 1},
	}

	_, err := svc.SaveMetrics("metrics.csv", metrics)
	require.NoError(t, err)
	content, err := os.ReadFile(store.Path("metrics.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"city,total_enrollments,repeat_enrollments,first_enrollment,last_enrollment\n"+
			"Austin,3,1,2023-01-05,2023-02-01\n"+
			"Boston,1,0,,\n",
		string(content))

	rel, err := svc.SaveReport(filepath.Join("reports", "metrics.pdf"), metrics)
	require.NoError(t, err)
	info, err := os.Stat(store.Path(rel))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
