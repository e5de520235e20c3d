package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/logger"
	"github.com/noah-isme/enrollment-pipeline/pkg/tabular"
)

type pathResolver interface {
	Path(filename string) string
}

// RunPublisher stores a finished run for the read API.
type RunPublisher interface {
	Publish(ctx context.Context, result *models.PipelineResult, metrics []models.CityMetrics) error
}

// RunnerPaths locates the input and every artifact a run produces.
type RunnerPaths struct {
	InputPath   string
	InputSheet  string
	OutputPath  string
	MetricsPath string
	ReportPath  string
	VisualsDir  string
}

// RunSummary collects what a full run produced.
type RunSummary struct {
	Result    *models.PipelineResult
	Metrics   []models.CityMetrics
	Artifacts []string
	Uploads   []*UploadReport
	Published bool
}

// PipelineRunner drives the stages behind the command line: clean, analyze, visualize and upload.
// The uploader and publisher are optional.
type PipelineRunner struct {
	paths      RunnerPaths
	files      pathResolver
	normalizer *NormalizationService
	exporter   *ExportService
	visuals    *VisualizationService
	uploader   *UploadService
	publisher  RunPublisher
	logger     *zap.Logger
}

// NewPipelineRunner constructs a PipelineRunner.
func NewPipelineRunner(paths RunnerPaths, files pathResolver, normalizer *NormalizationService, exporter *ExportService,
	visuals *VisualizationService, uploader *UploadService, publisher RunPublisher, logger *zap.Logger) *PipelineRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineRunner{
		paths:      paths,
		files:      files,
		normalizer: normalizer,
		exporter:   exporter,
		visuals:    visuals,
		uploader:   uploader,
		publisher:  publisher,
		logger:     logger,
	}
}

// CanUpload reports whether an upload client is configured.
func (r *PipelineRunner) CanUpload() bool {
	return r.uploader != nil
}

// Clean reads the raw export, normalizes it and writes the canonical table.
func (r *PipelineRunner) Clean(ctx context.Context) (*models.PipelineResult, error) {
	result, err := r.normalize(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.exporter.SaveCanonical(r.paths.OutputPath, result.Records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write canonical table")
	}
	return result, nil
}

func (r *PipelineRunner) normalize(ctx context.Context) (*models.PipelineResult, error) {
	dataset, err := tabular.ReadFile(r.files.Path(r.paths.InputPath), r.paths.InputSheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read raw input")
	}
	return r.normalizer.Run(ctx, dataset)
}

// Analyze aggregates the canonical table and writes the metrics CSV and PDF report.
func (r *PipelineRunner) Analyze(ctx context.Context) ([]models.CityMetrics, error) {
	records, err := r.exporter.LoadCanonical(r.paths.OutputPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics := AggregateCities(records)
	if _, err := r.writeMetrics(metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// Visualize renders the charts for the canonical table.
func (r *PipelineRunner) Visualize(ctx context.Context) ([]string, error) {
	records, err := r.exporter.LoadCanonical(r.paths.OutputPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.visuals.RenderCharts(r.paths.VisualsDir, records)
}

// Upload hands the canonical table and its city metrics to the remote tables.
func (r *PipelineRunner) Upload(ctx context.Context) ([]*UploadReport, error) {
	records, err := r.exporter.LoadCanonical(r.paths.OutputPath)
	if err != nil {
		return nil, err
	}
	return r.upload(ctx, records, AggregateCities(records))
}

// Run executes every stage in order. Every artifact is rendered before the first one is
// stored, so a rendering failure leaves earlier outputs untouched. Upload is skipped when no
// uploader is configured and publishing is skipped without a publisher.
func (r *PipelineRunner) Run(ctx context.Context) (*RunSummary, error) {
	result, err := r.normalize(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.ForRun(r.logger, result.RunID)
	summary := &RunSummary{Result: result, Metrics: AggregateCities(result.Records)}

	files, err := r.renderArtifacts(result.Records, summary.Metrics)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary.Artifacts, err = r.exporter.WriteAll(files)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write run artifacts")
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, result, summary.Metrics); err != nil {
			return nil, err
		}
		summary.Published = true
	}

	if r.uploader == nil {
		log.Info("upload skipped, credentials not configured")
		return summary, nil
	}
	summary.Uploads, err = r.upload(ctx, result.Records, summary.Metrics)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *PipelineRunner) renderArtifacts(records []models.EnrollmentRecord, metrics []models.CityMetrics) ([]RenderedFile, error) {
	canonical, err := r.exporter.RenderCanonical(records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render canonical table")
	}
	table, err := r.exporter.RenderMetrics(metrics)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render city metrics")
	}
	report, err := r.exporter.RenderReport(metrics)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render metrics report")
	}
	charts, err := r.visuals.RenderChartFiles(r.paths.VisualsDir, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render charts")
	}
	files := []RenderedFile{
		{Path: r.paths.OutputPath, Payload: canonical},
		{Path: r.paths.MetricsPath, Payload: table},
		{Path: r.paths.ReportPath, Payload: report},
	}
	return append(files, charts...), nil
}

func (r *PipelineRunner) writeMetrics(metrics []models.CityMetrics) ([]string, error) {
	csvPath, err := r.exporter.SaveMetrics(r.paths.MetricsPath, metrics)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write city metrics")
	}
	reportPath, err := r.exporter.SaveReport(r.paths.ReportPath, metrics)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write metrics report")
	}
	return []string{csvPath, reportPath}, nil
}

// upload sends enrollments first and cities second. Batch failures from both tables are
// returned together after both uploads finish.
func (r *PipelineRunner) upload(ctx context.Context, records []models.EnrollmentRecord, metrics []models.CityMetrics) ([]*UploadReport, error) {
	if r.uploader == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfig, "upload credentials are not configured")
	}
	enrollments, err := r.uploader.UploadEnrollments(ctx, records)
	if err != nil {
		return nil, err
	}
	cities, err := r.uploader.UploadCities(ctx, metrics)
	if err != nil {
		return []*UploadReport{enrollments}, err
	}
	reports := []*UploadReport{enrollments, cities}
	return reports, errors.Join(enrollments.Err(), cities.Err())
}
