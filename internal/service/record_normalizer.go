package service

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
)

// RecordNormalizer maps raw export rows onto the canonical field set. It never drops a row:
// values that cannot be extracted are left empty for the validator to judge.
type RecordNormalizer struct {
	logger *zap.Logger
}

// NewRecordNormalizer constructs a RecordNormalizer.
func NewRecordNormalizer(logger *zap.Logger) *RecordNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordNormalizer{logger: logger}
}

// Normalize converts one raw row.
func (n *RecordNormalizer) Normalize(row models.RawRow) models.NormalizedRecord {
	record := models.NormalizedRecord{
		RawEnrollmentID:  row.RecordID,
		EnrollmentID:     parseEnrollmentID(row.RecordID),
		ParticipantID:    strings.TrimSpace(row.LeaderInfo),
		ProgramCenter:    row.ProgramCenter,
		CompletionStatus: row.CompletionStatus,
	}

	if city, err := ExtractCity(row.CityData); err == nil {
		record.City = city
	}

	if date, err := ExtractEnrollmentDate(row.CourseEnrollment); err == nil {
		record.EnrollmentDate = &date
	} else if row.CourseEnrollment != "" {
		n.logger.Debug("enrollment date dropped",
			zap.String("record_id", row.RecordID),
			zap.Error(err),
		)
	}

	return record
}

// NormalizeAll converts rows in order, one output per input.
func (n *RecordNormalizer) NormalizeAll(rows []models.RawRow) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(rows))
	for i, row := range rows {
		out[i] = n.Normalize(row)
	}
	return out
}

// parseEnrollmentID accepts integers and integral floats ("12.0" as exported by spreadsheets).
func parseEnrollmentID(raw string) *int64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return &id
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	id := int64(f)
	return &id
}
