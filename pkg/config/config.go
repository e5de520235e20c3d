package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Canonical field names accepted in PIPELINE_REQUIRED_FIELDS.
const (
	FieldEnrollmentID   = "enrollment_id"
	FieldParticipantID  = "participant_id"
	FieldCity           = "city"
	FieldEnrollmentDate = "enrollment_date"
)

// DefaultBatchSize mirrors the upload API's per-request record limit.
const DefaultBatchSize = 10

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Pipeline PipelineConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Artifact ArtifactConfig
	Features FeatureConfig
	CORS     CORSConfig
	Log      LogConfig
}

// PipelineConfig holds the file locations and validation policy of a normalization run.
type PipelineConfig struct {
	InputPath      string
	InputSheet     string
	OutputPath     string
	MetricsPath    string
	ReportPath     string
	VisualsDir     string
	BatchSize      int
	RequiredFields []string
}

// UploadConfig configures the remote table API used for hand-off.
type UploadConfig struct {
	BaseURL           string
	Token             string
	BaseID            string
	EnrollmentsTable  string
	CitiesTable       string
	Timeout           time.Duration
	Workers           int
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

// Configured reports whether credentials are present.
func (u UploadConfig) Configured() bool {
	return u.Token != "" && u.BaseID != ""
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig tunes city metrics caching for the read API.
type CacheConfig struct {
	TTL time.Duration
}

// ArtifactConfig controls signed download links for generated files.
type ArtifactConfig struct {
	BaseDir       string
	SigningSecret string
	LinkTTL       time.Duration
}

// FeatureConfig toggles optional sinks.
type FeatureConfig struct {
	DatabaseSink bool
	Cache        bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Pipeline = PipelineConfig{
		InputPath:      v.GetString("PIPELINE_INPUT_PATH"),
		InputSheet:     v.GetString("PIPELINE_INPUT_SHEET"),
		OutputPath:     v.GetString("PIPELINE_OUTPUT_PATH"),
		MetricsPath:    v.GetString("PIPELINE_METRICS_PATH"),
		ReportPath:     v.GetString("PIPELINE_REPORT_PATH"),
		VisualsDir:     v.GetString("PIPELINE_VISUALS_DIR"),
		BatchSize:      v.GetInt("PIPELINE_BATCH_SIZE"),
		RequiredFields: splitAndTrim(v.GetString("PIPELINE_REQUIRED_FIELDS")),
	}

	cfg.Upload = UploadConfig{
		BaseURL:           v.GetString("AIRTABLE_URL"),
		Token:             v.GetString("AIRTABLE_TOKEN"),
		BaseID:            v.GetString("AIRTABLE_BASE_ID"),
		EnrollmentsTable:  v.GetString("AIRTABLE_ENROLLMENTS_TABLE"),
		CitiesTable:       v.GetString("AIRTABLE_CITIES_TABLE"),
		Timeout:           parseDuration(v.GetString("UPLOAD_TIMEOUT"), 30*time.Second),
		Workers:           v.GetInt("UPLOAD_WORKERS"),
		MaxRetries:        v.GetInt("UPLOAD_MAX_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("UPLOAD_RETRY_DELAY"), 2*time.Second),
		RequestsPerSecond: v.GetFloat64("UPLOAD_REQUESTS_PER_SECOND"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{TTL: parseDuration(v.GetString("CITY_METRICS_CACHE_TTL"), 10*time.Minute)}

	cfg.Artifact = ArtifactConfig{
		BaseDir:       v.GetString("ARTIFACT_BASE_DIR"),
		SigningSecret: v.GetString("ARTIFACT_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("ARTIFACT_LINK_TTL"), 15*time.Minute),
	}

	cfg.Features = FeatureConfig{
		DatabaseSink: v.GetBool("ENABLE_DATABASE_SINK"),
		Cache:        v.GetBool("ENABLE_CACHE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("PIPELINE_INPUT_PATH", "data/raw_enrollment.csv")
	v.SetDefault("PIPELINE_INPUT_SHEET", "")
	v.SetDefault("PIPELINE_OUTPUT_PATH", "data/clean_enrollment.csv")
	v.SetDefault("PIPELINE_METRICS_PATH", "data/city_metrics.csv")
	v.SetDefault("PIPELINE_REPORT_PATH", "data/city_metrics.pdf")
	v.SetDefault("PIPELINE_VISUALS_DIR", "visuals")
	v.SetDefault("PIPELINE_BATCH_SIZE", DefaultBatchSize)
	v.SetDefault("PIPELINE_REQUIRED_FIELDS", strings.Join(DefaultRequiredFields(), ","))

	v.SetDefault("AIRTABLE_URL", "https://api.airtable.com/v0")
	v.SetDefault("AIRTABLE_TOKEN", "")
	v.SetDefault("AIRTABLE_BASE_ID", "")
	v.SetDefault("AIRTABLE_ENROLLMENTS_TABLE", "Enrollments")
	v.SetDefault("AIRTABLE_CITIES_TABLE", "Cities")
	v.SetDefault("UPLOAD_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_WORKERS", 1)
	v.SetDefault("UPLOAD_MAX_RETRIES", 3)
	v.SetDefault("UPLOAD_RETRY_DELAY", "2s")
	v.SetDefault("UPLOAD_REQUESTS_PER_SECOND", 5)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollments")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CITY_METRICS_CACHE_TTL", "10m")

	v.SetDefault("ARTIFACT_BASE_DIR", ".")
	v.SetDefault("ARTIFACT_SIGNING_SECRET", "")
	v.SetDefault("ARTIFACT_LINK_TTL", "15m")

	v.SetDefault("ENABLE_DATABASE_SINK", false)
	v.SetDefault("ENABLE_CACHE", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// DefaultRequiredFields returns the canonical fields a record must carry to survive validation.
func DefaultRequiredFields() []string {
	return []string{FieldEnrollmentID, FieldParticipantID, FieldCity}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("PIPELINE_BATCH_SIZE must be positive, got %d", c.Pipeline.BatchSize)
	}
	if len(c.Pipeline.RequiredFields) == 0 {
		return errors.New("PIPELINE_REQUIRED_FIELDS must name at least one field")
	}
	for _, field := range c.Pipeline.RequiredFields {
		switch field {
		case FieldEnrollmentID, FieldParticipantID, FieldCity, FieldEnrollmentDate:
		default:
			return fmt.Errorf("PIPELINE_REQUIRED_FIELDS: unknown field %q", field)
		}
	}
	if c.Env == EnvProduction && c.Artifact.SigningSecret == "" {
		return errors.New("ARTIFACT_SIGNING_SECRET is required in production")
	}
	if c.Upload.Workers <= 0 {
		c.Upload.Workers = 1
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
