package service

import (
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/pkg/export"
)

// Chart file names written by RenderCharts.
const (
	CityChartFile  = "enrollments_by_city.pdf"
	TrendChartFile = "enrollment_trends.pdf"
)

type chartRenderer interface {
	BarChart(title, valueAxis string, series export.Series) ([]byte, error)
	LineChart(title, valueAxis string, series export.Series) ([]byte, error)
}

// CityCount is the number of records for one city.
type CityCount struct {
	City  string
	Count int
}

// MonthCount is the number of dated records in one calendar month.
type MonthCount struct {
	Month time.Time
	Count int
}

// VisualizationService derives chart series from canonical records and renders them.
type VisualizationService struct {
	storage  fileStorage
	renderer chartRenderer
	logger   *zap.Logger
}

// NewVisualizationService constructs a VisualizationService.
func NewVisualizationService(storage fileStorage, renderer chartRenderer, logger *zap.Logger) *VisualizationService {
	if renderer == nil {
		renderer = export.NewChartRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisualizationService{storage: storage, renderer: renderer, logger: logger}
}

// CityCounts counts records per city, largest first, ties by city name.
func CityCounts(records []models.EnrollmentRecord) []CityCount {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.City]++
	}
	out := make([]CityCount, 0, len(counts))
	for city, n := range counts {
		out = append(out, CityCount{City: city, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	return out
}

// MonthlyCounts buckets dated records by calendar month, from the earliest to the latest month
// present, with empty months reported as zero. Months follow each date's own offset. Records
// without a date are skipped.
func MonthlyCounts(records []models.EnrollmentRecord) []MonthCount {
	counts := make(map[time.Time]int)
	var first, last time.Time
	for _, rec := range records {
		if rec.EnrollmentDate == nil {
			continue
		}
		d := *rec.EnrollmentDate
		month := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(counts) == 0 || month.Before(first) {
			first = month
		}
		if len(counts) == 0 || month.After(last) {
			last = month
		}
		counts[month]++
	}
	if len(counts) == 0 {
		return []MonthCount{}
	}

	var out []MonthCount
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, MonthCount{Month: m, Count: counts[m]})
	}
	return out
}

// RenderChartFiles renders the city bar chart and the monthly trend chart in memory, keyed
// for storage under dir.
func (s *VisualizationService) RenderChartFiles(dir string, records []models.EnrollmentRecord) ([]RenderedFile, error) {
	cities := CityCounts(records)
	citySeries := export.Series{Labels: make([]string, len(cities)), Values: make([]int, len(cities))}
	for i, c := range cities {
		citySeries.Labels[i] = c.City
		citySeries.Values[i] = c.Count
	}
	bar, err := s.renderer.BarChart("Enrollments by city", "Enrollments", citySeries)
	if err != nil {
		return nil, err
	}

	months := MonthlyCounts(records)
	trendSeries := export.Series{Labels: make([]string, len(months)), Values: make([]int, len(months))}
	for i, m := range months {
		trendSeries.Labels[i] = m.Month.Format("2006-01")
		trendSeries.Values[i] = m.Count
	}
	line, err := s.renderer.LineChart("Monthly enrollment trend", "Enrollments", trendSeries)
	if err != nil {
		return nil, err
	}
	return []RenderedFile{
		{Path: filepath.Join(dir, CityChartFile), Payload: bar},
		{Path: filepath.Join(dir, TrendChartFile), Payload: line},
	}, nil
}

// RenderCharts writes the city bar chart and the monthly trend chart under dir and returns
// their stored paths.
func (s *VisualizationService) RenderCharts(dir string, records []models.EnrollmentRecord) ([]string, error) {
	files, err := s.RenderChartFiles(dir, records)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := s.storage.Save(f.Path, f.Payload)
		if err != nil {
			return nil, err
		}
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	s.logger.Info("charts rendered", zap.Strings("paths", paths), zap.Int("records", len(records)))
	return paths, nil
}
