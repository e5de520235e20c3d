package dto

import (
	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/pkg/airtable"
)

// Field names of the enrollments table.
const (
	FieldEnrollmentID     = "Enrollment ID"
	FieldCity             = "City"
	FieldParticipantID    = "Participant ID"
	FieldEnrollmentDate   = "Enrollment Date"
	FieldProgramCenter    = "Program Center"
	FieldCompletionStatus = "Completion Status"
)

// Field names of the cities table.
const (
	FieldTotalEnrollments = "Total Enrollments"
	FieldFirstEnrollment  = "First Enrollment"
	FieldLastEnrollment   = "Last Enrollment"
)

// EnrollmentFields flattens a canonical record for upload. Unknown dates are sent as "".
func EnrollmentFields(rec models.EnrollmentRecord) airtable.Fields {
	return airtable.Fields{
		FieldEnrollmentID:     rec.EnrollmentID,
		FieldCity:             rec.City,
		FieldParticipantID:    rec.ParticipantID,
		FieldEnrollmentDate:   models.FormatDate(rec.EnrollmentDate),
		FieldProgramCenter:    rec.ProgramCenter,
		FieldCompletionStatus: rec.CompletionStatus,
	}
}

// CityFields flattens a city rollup for upload. Unknown dates are sent as null.
func CityFields(m models.CityMetrics) airtable.Fields {
	return airtable.Fields{
		FieldCity:             m.City,
		FieldTotalEnrollments: m.TotalEnrollments,
		FieldFirstEnrollment:  models.FormatDatePtr(m.FirstEnrollment),
		FieldLastEnrollment:   models.FormatDatePtr(m.LastEnrollment),
	}
}
