package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
)

// validatableFields are the canonical fields a required-field policy may name.
var validatableFields = map[string]struct{}{
	models.FieldEnrollmentID:   {},
	models.FieldParticipantID:  {},
	models.FieldCity:           {},
	models.FieldEnrollmentDate: {},
}

// identityFields are enforced regardless of policy; canonical records always carry them.
var identityFields = []string{models.FieldEnrollmentID, models.FieldParticipantID, models.FieldCity}

// RecordValidator filters normalized records down to the canonical set.
type RecordValidator struct {
	required  []string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecordValidator builds a validator for the given required fields. An empty list or an
// unknown field name is a configuration error. The identity fields are always required.
func NewRecordValidator(required []string, validate *validator.Validate, logger *zap.Logger) (*RecordValidator, error) {
	if len(required) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfig, "required field set must not be empty")
	}
	seen := make(map[string]struct{}, len(required)+len(identityFields))
	fields := make([]string, 0, len(required)+len(identityFields))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if _, ok := validatableFields[name]; !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfig, fmt.Sprintf("unknown required field %q", name))
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	for _, name := range identityFields {
		if _, ok := seen[name]; !ok {
			fields = append(fields, name)
		}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordValidator{required: fields, validator: validate, logger: logger}, nil
}

// RequiredFields returns the active policy.
func (v *RecordValidator) RequiredFields() []string {
	out := make([]string, len(v.required))
	copy(out, v.required)
	return out
}

// Valid reports whether every required field of the record carries a value.
func (v *RecordValidator) Valid(record models.NormalizedRecord) bool {
	for _, field := range v.required {
		if err := v.validator.Var(fieldValue(record, field), "required"); err != nil {
			return false
		}
	}
	return true
}

// Filter keeps valid records in input order and converts them to canonical records.
func (v *RecordValidator) Filter(records []models.NormalizedRecord) []models.EnrollmentRecord {
	out := make([]models.EnrollmentRecord, 0, len(records))
	for _, record := range records {
		if !v.Valid(record) {
			continue
		}
		out = append(out, toCanonical(record))
	}
	if dropped := len(records) - len(out); dropped > 0 {
		v.logger.Debug("records rejected", zap.Int("dropped", dropped))
	}
	return out
}

// fieldValue renders a field as a string whose emptiness means "missing".
func fieldValue(record models.NormalizedRecord, field string) string {
	switch field {
	case models.FieldEnrollmentID:
		if record.EnrollmentID == nil {
			return ""
		}
		return record.RawEnrollmentID
	case models.FieldParticipantID:
		return record.ParticipantID
	case models.FieldCity:
		return record.City
	case models.FieldEnrollmentDate:
		return models.FormatDate(record.EnrollmentDate)
	default:
		return ""
	}
}

func toCanonical(record models.NormalizedRecord) models.EnrollmentRecord {
	out := models.EnrollmentRecord{
		ParticipantID:    record.ParticipantID,
		City:             record.City,
		EnrollmentDate:   record.EnrollmentDate,
		ProgramCenter:    record.ProgramCenter,
		CompletionStatus: record.CompletionStatus,
	}
	if record.EnrollmentID != nil {
		out.EnrollmentID = *record.EnrollmentID
	}
	return out
}
