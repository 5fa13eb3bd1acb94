// Package platform is the HTTP client for the business platform that owns
// object metadata, mapping configurations, ingestion and job tracking.
package platform

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

	"golang.org/x/oauth2"

	"github.com/ignite/crm-import/internal/config"
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/httpretry"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

// ErrNotConfigured is returned by NewClient without a base URL.
var ErrNotConfigured = errors.New("platform base URL is not configured")

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the platform RPC surface. Reads go through a retrying
// transport; writes are sent once.
type Client struct {
	baseURL string
	reads   httpretry.HTTPDoer
	writes  httpretry.HTTPDoer
}

// NewClient creates a client authenticated with the configured bearer
// token.
func NewClient(cfg config.PlatformConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}
	hc := &http.Client{Timeout: cfg.Timeout(), Transport: transport}

	var opts []httpretry.Option
	if base, maxDelay := cfg.RetryBackoff(); base > 0 && maxDelay >= base {
		opts = append(opts, httpretry.WithBackoff(base, maxDelay))
	}
	return NewClientWithDoers(cfg.BaseURL, httpretry.NewRetryClient(hc, cfg.MaxRetries, opts...), hc), nil
}

// NewClientWithDoers builds a client on explicit HTTP doers for reads and
// writes.
func NewClientWithDoers(baseURL string, reads, writes httpretry.HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		reads:   reads,
		writes:  writes,
	}
}

// doRequest makes an HTTP request to the platform and returns the body of
// a 2xx response.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	doer := c.writes
	if method == http.MethodGet {
		doer = c.reads
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("platform request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// =============================================================================
// Metadata
// =============================================================================

type objectDTO struct {
	Label   string `json:"label"`
	APIName string `json:"apiName"`
}

type fieldDTO struct {
	Label    string `json:"label"`
	APIName  string `json:"apiName"`
	IsLookup bool   `json:"isLookup"`
}

type lookupDTO struct {
	FieldList        []fieldDTO `json:"fieldList"`
	LookupObjectName string     `json:"lookupObjectName"`
}

func toFields(in []fieldDTO) []domain.Field {
	out := make([]domain.Field, 0, len(in))
	for _, f := range in {
		out = append(out, domain.Field{Label: f.Label, APIName: f.APIName, IsLookup: f.IsLookup})
	}
	return out
}

// ListTargetObjects returns the objects available for import.
func (c *Client) ListTargetObjects(ctx context.Context) ([]domain.TargetObject, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/objects", nil)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}

	var dtos []objectDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("parsing objects response: %w", err)
	}
	out := make([]domain.TargetObject, 0, len(dtos))
	for _, o := range dtos {
		out = append(out, domain.TargetObject{Label: o.Label, APIName: o.APIName})
	}
	return out, nil
}

// ListFields returns the fields of object.
func (c *Client) ListFields(ctx context.Context, object string) ([]domain.Field, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/objects/"+url.PathEscape(object)+"/fields", nil)
	if err != nil {
		return nil, fmt.Errorf("listing fields of %s: %w", object, err)
	}

	var dtos []fieldDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("parsing fields response: %w", err)
	}
	return toFields(dtos), nil
}

// ResolveLookupFields returns the fields of the object a lookup field of
// parent points at.
func (c *Client) ResolveLookupFields(ctx context.Context, parent, field string) (domain.LookupFields, error) {
	path := "/objects/" + url.PathEscape(parent) + "/lookups/" + url.PathEscape(field)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.LookupFields{}, fmt.Errorf("resolving lookup %s.%s: %w", parent, field, err)
	}

	var dto lookupDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.LookupFields{}, fmt.Errorf("parsing lookup response: %w", err)
	}
	return domain.LookupFields{Fields: toFields(dto.FieldList), LookupObjectName: dto.LookupObjectName}, nil
}

// =============================================================================
// Configuration, ingestion and jobs
// =============================================================================

// SaveConfiguration persists a mapping configuration.
func (c *Client) SaveConfiguration(ctx context.Context, cfg domain.Configuration) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/configurations", cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

type batchRequest struct {
	JSONDataList []string `json:"jsonDataList"`
	FileName     string   `json:"fileName"`
}

// SubmitBatch sends one chunk of rows, each serialized as a JSON object.
func (c *Client) SubmitBatch(ctx context.Context, fileName string, records []string) error {
	req := batchRequest{JSONDataList: records, FileName: fileName}
	if _, err := c.doRequest(ctx, http.MethodPost, "/ingest/batches", req); err != nil {
		return fmt.Errorf("submitting batch of %d: %w", len(records), err)
	}
	return nil
}

// ReportJobStatus updates the platform's job tracker.
func (c *Client) ReportJobStatus(ctx context.Context, report domain.JobStatusReport) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/jobs/status", report); err != nil {
		return fmt.Errorf("reporting job status: %w", err)
	}
	return nil
}

type exportRequest struct {
	ObjectName string   `json:"objectName"`
	FieldNames []string `json:"fieldNames"`
}

// GenerateExportCSV asks the platform for a CSV of object with fields as
// columns.
func (c *Client) GenerateExportCSV(ctx context.Context, object string, fields []string) ([]byte, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/exports", exportRequest{ObjectName: object, FieldNames: fields})
	if err != nil {
		return nil, fmt.Errorf("generating export: %w", err)
	}
	return body, nil
}
