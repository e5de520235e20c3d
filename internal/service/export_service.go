package service

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/export"
	"github.com/noah-isme/enrollment-pipeline/pkg/tabular"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Path(filename string) string
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title, summary string) ([]byte, error)
}

// MetricsHeaders is the header row of the city metrics table.
var MetricsHeaders = []string{"city", "total_enrollments", "repeat_enrollments", "first_enrollment", "last_enrollment"}

// ExportService persists the canonical record set, city metrics and the metrics report.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{storage: storage, csv: csv, pdf: pdf, logger: logger}
}

// RenderedFile is an artifact rendered in memory and not yet stored.
type RenderedFile struct {
	Path    string
	Payload []byte
}

// RenderCanonical renders records as the canonical delimited table.
func (s *ExportService) RenderCanonical(records []models.EnrollmentRecord) ([]byte, error) {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			strconv.FormatInt(rec.EnrollmentID, 10),
			rec.ParticipantID,
			rec.City,
			models.FormatDate(rec.EnrollmentDate),
			rec.ProgramCenter,
			rec.CompletionStatus,
		}
	}
	return s.csv.Render(export.Table{Headers: models.CanonicalHeaders, Rows: rows})
}

// SaveCanonical writes records as the canonical delimited table.
func (s *ExportService) SaveCanonical(path string, records []models.EnrollmentRecord) (string, error) {
	payload, err := s.RenderCanonical(records)
	if err != nil {
		return "", err
	}
	rel, err := s.storage.Save(path, payload)
	if err != nil {
		return "", err
	}
	s.logger.Info("canonical records written", zap.String("path", s.storage.Path(rel)), zap.Int("records", len(records)))
	return rel, nil
}

// WriteAll stores already rendered files in order and returns their stored paths.
func (s *ExportService) WriteAll(files []RenderedFile) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := s.storage.Save(f.Path, f.Payload)
		if err != nil {
			return paths, fmt.Errorf("store %s: %w", f.Path, err)
		}
		paths = append(paths, rel)
	}
	s.logger.Info("artifacts written", zap.Strings("paths", paths))
	return paths, nil
}

// LoadCanonical reads a table written by SaveCanonical. Dates compare equal to the originals by
// calendar value.
func (s *ExportService) LoadCanonical(path string) ([]models.EnrollmentRecord, error) {
	f, err := s.storage.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	dataset, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read canonical table %s: %w", path, err)
	}
	required := []string{models.FieldEnrollmentID, models.FieldParticipantID, models.FieldCity}
	if missing := dataset.MissingColumns(required); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingRequiredColumn, fmt.Sprintf("canonical table is missing column(s) %v", missing))
	}

	idx := make(map[string]int, len(models.CanonicalHeaders))
	for _, name := range models.CanonicalHeaders {
		idx[name] = dataset.ColumnIndex(name)
	}
	get := func(row []string, name string) string {
		i := idx[name]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]models.EnrollmentRecord, 0, len(dataset.Rows))
	for n, row := range dataset.Rows {
		id := parseEnrollmentID(get(row, models.FieldEnrollmentID))
		if id == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("canonical row %d: invalid enrollment_id %q", n+1, get(row, models.FieldEnrollmentID)))
		}
		date, err := parseCanonicalDate(get(row, models.FieldEnrollmentDate))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("canonical row %d: invalid enrollment_date", n+1))
		}
		records = append(records, models.EnrollmentRecord{
			EnrollmentID:     *id,
			ParticipantID:    get(row, models.FieldParticipantID),
			City:             get(row, models.FieldCity),
			EnrollmentDate:   date,
			ProgramCenter:    get(row, models.FieldProgramCenter),
			CompletionStatus: get(row, models.FieldCompletionStatus),
		})
	}
	return records, nil
}

// SaveMetrics writes the city metrics table.
func (s *ExportService) SaveMetrics(path string, metrics []models.CityMetrics) (string, error) {
	payload, err := s.RenderMetrics(metrics)
	if err != nil {
		return "", err
	}
	rel, err := s.storage.Save(path, payload)
	if err != nil {
		return "", err
	}
	s.logger.Info("city metrics written", zap.String("path", s.storage.Path(rel)), zap.Int("cities", len(metrics)))
	return rel, nil
}

// RenderMetrics renders the city metrics table.
func (s *ExportService) RenderMetrics(metrics []models.CityMetrics) ([]byte, error) {
	return s.csv.Render(metricsTable(metrics))
}

// RenderReport renders the city metrics as a PDF report.
func (s *ExportService) RenderReport(metrics []models.CityMetrics) ([]byte, error) {
	total := 0
	for _, m := range metrics {
		total += m.TotalEnrollments
	}
	summary := fmt.Sprintf("%d enrollments across %d cities, generated %s",
		total, len(metrics), time.Now().UTC().Format(time.RFC3339))
	return s.pdf.Render(metricsTable(metrics), "City enrollment metrics", summary)
}

// SaveReport renders the city metrics as a PDF report.
func (s *ExportService) SaveReport(path string, metrics []models.CityMetrics) (string, error) {
	payload, err := s.RenderReport(metrics)
	if err != nil {
		return "", err
	}
	rel, err := s.storage.Save(path, payload)
	if err != nil {
		return "", err
	}
	s.logger.Info("metrics report written", zap.String("path", s.storage.Path(rel)))
	return rel, nil
}

func metricsTable(metrics []models.CityMetrics) export.Table {
	rows := make([][]string, len(metrics))
	for i, m := range metrics {
		rows[i] = []string{
			m.City,
			strconv.Itoa(m.TotalEnrollments),
			strconv.Itoa(m.RepeatEnrollments),
			models.FormatDate(m.FirstEnrollment),
			models.FormatDate(m.LastEnrollment),
		}
	}
	return export.Table{Headers: MetricsHeaders, Rows: rows}
}

func parseCanonicalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", raw)
}
