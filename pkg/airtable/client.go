// Package airtable is a minimal client for creating records in Airtable tables.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxRecordsPerRequest is the API's limit on records in a single create call.
const MaxRecordsPerRequest = 10

// Fields is the flat field map of one record.
type Fields map[string]interface{}

type record struct {
	Fields Fields `json:"fields"`
}

type createRequest struct {
	Records []record `json:"records"`
}

type createResponse struct {
	Records []struct {
		ID string `json:"id"`
	} `json:"records"`
}

// TransportError reports a failed create call: a non-2xx status or a network failure
// (Status is zero in that case).
type TransportError struct {
	Table  string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("airtable %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("airtable %s: status %d: %s", e.Table, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	Token             string
	BaseID            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client creates records through the REST API. It is safe for concurrent use; every request
// waits on a shared rate limiter.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	baseID  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a client. A non-positive RequestsPerSecond disables pacing.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" || cfg.BaseID == "" {
		return nil, errors.New("airtable token and base id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		baseID:  cfg.BaseID,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "airtable")),
	}, nil
}

// CreateRecords creates up to MaxRecordsPerRequest records in table and returns their IDs.
func (c *Client) CreateRecords(ctx context.Context, table string, fields []Fields) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > MaxRecordsPerRequest {
		return nil, fmt.Errorf("airtable accepts at most %d records per request, got %d", MaxRecordsPerRequest, len(fields))
	}

	body := createRequest{Records: make([]record, len(fields))}
	for i, f := range fields {
		body.Records[i] = record{Fields: f}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal airtable records: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Table: table, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Table: table, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Table: table, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var decoded createResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode airtable response: %w", err)
	}
	ids := make([]string, len(decoded.Records))
	for i, r := range decoded.Records {
		ids[i] = r.ID
	}
	c.logger.Debug("records created", zap.String("table", table), zap.Int("count", len(ids)))
	return ids, nil
}
