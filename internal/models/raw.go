package models

import "strings"

// Raw export column names.
const (
	ColumnRecordID         = "record_id"
	ColumnLeaderInfo       = "leader_info"
	ColumnCityData         = "city_data"
	ColumnCourseEnrollment = "course_enrollment"
	ColumnProgramCenter    = "program_center"
	ColumnCompletionStatus = "completion_status"
)

// RequiredRawColumns lists the columns the schema mapping depends on.
var RequiredRawColumns = []string{ColumnRecordID, ColumnLeaderInfo, ColumnCityData, ColumnCourseEnrollment}

// Dataset is an in-memory table as delivered by a reader: one header row and string cells.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// ColumnIndex returns the position of a header or -1.
func (d Dataset) ColumnIndex(name string) int {
	for i, header := range d.Headers {
		if header == name {
			return i
		}
	}
	return -1
}

// MissingColumns returns the names from want that the header row lacks, in want order.
func (d Dataset) MissingColumns(want []string) []string {
	var missing []string
	for _, name := range want {
		if d.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// RawRow is one input line decoded against the raw export schema. Empty strings mean the
// cell was blank or the optional column was absent.
type RawRow struct {
	RecordID         string
	LeaderInfo       string
	CityData         string
	CourseEnrollment string
	ProgramCenter    string
	CompletionStatus string
}

// RawSchema maps raw column names to positions in a particular Dataset.
type RawSchema struct {
	recordID         int
	leaderInfo       int
	cityData         int
	courseEnrollment int
	programCenter    int
	completionStatus int
}

// BindRawSchema resolves column positions once. Callers must have checked
// RequiredRawColumns with MissingColumns first.
func BindRawSchema(d Dataset) RawSchema {
	return RawSchema{
		recordID:         d.ColumnIndex(ColumnRecordID),
		leaderInfo:       d.ColumnIndex(ColumnLeaderInfo),
		cityData:         d.ColumnIndex(ColumnCityData),
		courseEnrollment: d.ColumnIndex(ColumnCourseEnrollment),
		programCenter:    d.ColumnIndex(ColumnProgramCenter),
		completionStatus: d.ColumnIndex(ColumnCompletionStatus),
	}
}

// Decode builds a RawRow from a record. Short records are treated as blank cells.
func (s RawSchema) Decode(record []string) RawRow {
	return RawRow{
		RecordID:         cell(record, s.recordID),
		LeaderInfo:       cell(record, s.leaderInfo),
		CityData:         cell(record, s.cityData),
		CourseEnrollment: cell(record, s.courseEnrollment),
		ProgramCenter:    cell(record, s.programCenter),
		CompletionStatus: cell(record, s.completionStatus),
	}
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	if strings.TrimSpace(record[idx]) == "" {
		return ""
	}
	return record[idx]
}
