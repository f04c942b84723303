package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Experiment is a tenant-scoped experiment summary from the backend.
type Experiment struct {
	ID   string `json:"experiment_id"`
	Name string `json:"name"`
}

// Run is a single run within an experiment.
type Run struct {
	ID     string `json:"run_id"`
	Status string `json:"status"`
}

// Model is a registered model summary.
type Model struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TrainRequest asks the backend to start a training job.
type TrainRequest struct {
	ExperimentName string            `json:"experiment_name"`
	Parameters     map[string]string `json:"parameters,omitempty"`
}

// TrainJob describes a submitted training job.
type TrainJob struct {
	ID          string    `json:"job_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Client is the backend surface the gateway proxies. Every method takes
// the per-tenant config; implementations must not cache connections across
// configs keyed by anything other than the config itself.
type Client interface {
	ListExperiments(ctx context.Context, cfg ClientConfig) ([]Experiment, error)
	ListRuns(ctx context.Context, cfg ClientConfig, experimentID string) ([]Run, error)
	ListModels(ctx context.Context, cfg ClientConfig) ([]Model, error)
	SubmitTraining(ctx context.Context, cfg ClientConfig, req TrainRequest) (*TrainJob, error)
}

// HTTPClient forwards to a backend that speaks HTTP. Tenants whose
// tracking URI is not http(s), for example direct database URIs, cannot be
// served by this client and get an explicit error rather than a guess.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates the forwarding client.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// ListExperiments implements Client.
func (c *HTTPClient) ListExperiments(ctx context.Context, cfg ClientConfig) ([]Experiment, error) {
	var out struct {
		Experiments []Experiment `json:"experiments"`
	}
	if err := c.get(ctx, cfg, "/api/experiments", &out); err != nil {
		return nil, err
	}
	return out.Experiments, nil
}

// ListRuns implements Client.
func (c *HTTPClient) ListRuns(ctx context.Context, cfg ClientConfig, experimentID string) ([]Run, error) {
	var out struct {
		Runs []Run `json:"runs"`
	}
	path := "/api/experiments/" + url.PathEscape(experimentID) + "/runs"
	if err := c.get(ctx, cfg, path, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// ListModels implements Client.
func (c *HTTPClient) ListModels(ctx context.Context, cfg ClientConfig) ([]Model, error) {
	var out struct {
		Models []Model `json:"models"`
	}
	if err := c.get(ctx, cfg, "/api/models", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// SubmitTraining implements Client.
func (c *HTTPClient) SubmitTraining(ctx context.Context, cfg ClientConfig, req TrainRequest) (*TrainJob, error) {
	base, err := c.baseURL(cfg)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal training request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/train", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to build training request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	job := &TrainJob{
		ID:          uuid.New().String(),
		Status:      "submitted",
		SubmittedAt: time.Now().UTC(),
	}
	if err := json.NewDecoder(resp.Body).Decode(job); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	return job, nil
}

func (c *HTTPClient) get(ctx context.Context, cfg ClientConfig, path string, out interface{}) error {
	base, err := c.baseURL(cfg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build backend request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

func (c *HTTPClient) baseURL(cfg ClientConfig) (string, error) {
	u, err := url.Parse(cfg.TrackingURI)
	if err != nil {
		return "", fmt.Errorf("invalid tracking URI: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("tracking URI scheme %q is not proxyable over HTTP", u.Scheme)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
