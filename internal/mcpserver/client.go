package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the BehaviorGuard service.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// ServiceClient is a pure HTTP client for the BehaviorGuard service API.
type ServiceClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewServiceClient creates a new client for the BehaviorGuard service.
func NewServiceClient(cfg Config) *ServiceClient {
	return &ServiceClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the service.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the service and returns the response body.
func (c *ServiceClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ScoreSession submits a synthetic test session and returns its assessment.
func (c *ServiceClient) ScoreSession(ctx context.Context, profile string) (json.RawMessage, error) {
	q := url.Values{}
	if profile != "" {
		q.Set("profile", profile)
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/test-inference", q, nil)
}

// ListModels returns the IDs of all cached models.
func (c *ServiceClient) ListModels(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/models", nil, nil)
}

// ModelInfo returns metadata for a single cached model.
func (c *ServiceClient) ModelInfo(ctx context.Context, modelID string) (json.RawMessage, error) {
	path := "/v1/models/" + url.PathEscape(modelID) + "/info"
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// RefreshModel forces a reload of one model from disk.
func (c *ServiceClient) RefreshModel(ctx context.Context, modelID string) (json.RawMessage, error) {
	path := "/v1/models/" + url.PathEscape(modelID) + "/refresh"
	return c.doRequest(ctx, http.MethodPost, path, nil, nil)
}

// RecentHighRisk returns recent assessments at or above the high-risk threshold.
func (c *ServiceClient) RecentHighRisk(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/high-risk", q, nil)
}

// UserAssessments returns persisted assessment history for a user.
func (c *ServiceClient) UserAssessments(ctx context.Context, userID string, limit int, cursor string) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/assessments/" + url.PathEscape(userID)
	return c.doRequest(ctx, http.MethodGet, path, q, nil)
}

// ServiceHealth returns the aggregate health report.
func (c *ServiceClient) ServiceHealth(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// ServiceStats returns service-wide statistics.
func (c *ServiceClient) ServiceStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/stats", nil, nil)
}
