package models

import "time"

// Canonical column names used by the persisted record table.
const (
	FieldEnrollmentID     = "enrollment_id"
	FieldParticipantID    = "participant_id"
	FieldCity             = "city"
	FieldEnrollmentDate   = "enrollment_date"
	FieldProgramCenter    = "program_center"
	FieldCompletionStatus = "completion_status"
)

// CanonicalHeaders is the header row of the persisted canonical table.
var CanonicalHeaders = []string{
	FieldEnrollmentID,
	FieldParticipantID,
	FieldCity,
	FieldEnrollmentDate,
	FieldProgramCenter,
	FieldCompletionStatus,
}

// NormalizedRecord is a raw row after schema mapping and field extraction but before
// validation. Nil pointers and empty strings mark values that were missing or unparseable.
type NormalizedRecord struct {
	EnrollmentID     *int64
	RawEnrollmentID  string
	ParticipantID    string
	City             string
	EnrollmentDate   *time.Time
	ProgramCenter    string
	CompletionStatus string
}

// EnrollmentRecord is a canonical record: required fields are always populated.
// A nil EnrollmentDate means the date is unknown.
type EnrollmentRecord struct {
	EnrollmentID     int64      `db:"enrollment_id" json:"enrollment_id"`
	ParticipantID    string     `db:"participant_id" json:"participant_id"`
	City             string     `db:"city" json:"city"`
	EnrollmentDate   *time.Time `db:"enrollment_date" json:"enrollment_date"`
	ProgramCenter    string     `db:"program_center" json:"program_center"`
	CompletionStatus string     `db:"completion_status" json:"completion_status"`
}

// CityMetrics is the per-city rollup derived from the canonical record set.
type CityMetrics struct {
	City              string     `db:"city" json:"city"`
	TotalEnrollments  int        `db:"total_enrollments" json:"total_enrollments"`
	RepeatEnrollments int        `db:"repeat_enrollments" json:"repeat_enrollments"`
	FirstEnrollment   *time.Time `db:"first_enrollment" json:"first_enrollment"`
	LastEnrollment    *time.Time `db:"last_enrollment" json:"last_enrollment"`
}

// PipelineResult is the output of one normalization run.
type PipelineResult struct {
	RunID      string
	Records    []EnrollmentRecord
	RawCount   int
	CleanCount int
}

// Dropped returns the number of rows rejected by validation.
func (r PipelineResult) Dropped() int {
	return r.RawCount - r.CleanCount
}

// EnrollmentFilter scopes record listings in the read API.
type EnrollmentFilter struct {
	City          string
	ParticipantID string
	Page          int
	PageSize      int
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// PipelineRun is the stored summary of a normalization run.
type PipelineRun struct {
	RunID      string    `db:"run_id" json:"run_id"`
	RawCount   int       `db:"raw_count" json:"raw_count"`
	CleanCount int       `db:"clean_count" json:"clean_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Artifact describes a generated file available for download.
type Artifact struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}
