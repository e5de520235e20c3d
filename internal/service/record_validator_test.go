package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

func defaultValidator(t *testing.T) *RecordValidator {
	t.Helper()
	v, err := NewRecordValidator([]string{models.FieldEnrollmentID, models.FieldParticipantID, models.FieldCity}, nil, nil)
	require.NoError(t, err)
	return v
}

func normalized(id int64, participant, city string, date *time.Time) models.NormalizedRecord {
	return models.NormalizedRecord{
		EnrollmentID:    &id,
		RawEnrollmentID: "x",
		ParticipantID:   participant,
		City:            city,
		EnrollmentDate:  date,
	}
}

func TestRecordValidatorDefaultPolicy(t *testing.T) {
	v := defaultValidator(t)

	assert.True(t, v.Valid(normalized(1, "P1", "Austin", nil)), "date is optional by default")
	assert.True(t, v.Valid(normalized(0, "P1", "Austin", nil)), "zero is a present identifier")
	assert.False(t, v.Valid(normalized(1, "", "Austin", nil)))
	assert.False(t, v.Valid(normalized(1, "P1", "", nil)))
	assert.False(t, v.Valid(models.NormalizedRecord{ParticipantID: "P1", City: "Austin"}))
}

func TestRecordValidatorDateRequired(t *testing.T) {
	v, err := NewRecordValidator([]string{models.FieldEnrollmentDate}, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{models.FieldEnrollmentDate, models.FieldEnrollmentID, models.FieldParticipantID, models.FieldCity},
		v.RequiredFields())

	date := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, v.Valid(normalized(1, "P1", "Austin", &date)))
	assert.False(t, v.Valid(normalized(1, "P1", "Austin", nil)))
}

func TestRecordValidatorConfigErrors(t *testing.T) {
	_, err := NewRecordValidator(nil, nil, nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidConfig)

	_, err = NewRecordValidator([]string{"city", "nickname"}, nil, nil)
	require.ErrorIs(t, err, appErrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "nickname")
}

func TestRecordValidatorFilterKeepsOrder(t *testing.T) {
	v := defaultValidator(t)
	in := []models.NormalizedRecord{
		normalized(3, "P3", "Denver", nil),
		normalized(1, "", "Austin", nil),
		normalized(2, "P2", "Austin", nil),
	}
	out := v.Filter(in)
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), out[0].EnrollmentID)
	assert.Equal(t, int64(2), out[1].EnrollmentID)
	for _, rec := range out {
		assert.NotEmpty(t, rec.ParticipantID)
		assert.NotEmpty(t, rec.City)
	}
}
