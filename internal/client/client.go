// Package client talks to the sentinel server API and push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"sentinel/internal/dto"
	"sentinel/internal/model"
)

const ctJSON = "application/json"

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected response code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected response code %d: %s", e.StatusCode, e.Message)
}

// Client is a sentinel API client.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends the API token as a Bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// New creates a Client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Status fetches the metrics snapshot.
func (c *Client) Status(ctx context.Context) (*model.MetricsSnapshot, error) {
	var snapshot model.MetricsSnapshot
	if err := c.getJSON(ctx, "/api/status", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PrivacyBudgets fetches per-round privacy metrics, newest first.
func (c *Client) PrivacyBudgets(ctx context.Context) ([]model.PrivacyMetrics, error) {
	var budgets []model.PrivacyMetrics
	if err := c.getJSON(ctx, "/api/privacy/budgets", &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// Anomalies fetches recent anomalies, newest first.
func (c *Client) Anomalies(ctx context.Context) ([]model.Anomaly, error) {
	var anomalies []model.Anomaly
	if err := c.getJSON(ctx, "/api/anomalies", &anomalies); err != nil {
		return nil, err
	}
	return anomalies, nil
}

// Uploads lists uploads, newest first.
func (c *Client) Uploads(ctx context.Context) ([]model.UploadedFile, error) {
	var uploads []model.UploadedFile
	if err := c.getJSON(ctx, "/api/uploads", &uploads); err != nil {
		return nil, err
	}
	return uploads, nil
}

// AIStatus fetches the inference pipeline status.
func (c *Client) AIStatus(ctx context.Context) (*model.AIStatus, error) {
	var status model.AIStatus
	if err := c.getJSON(ctx, "/api/ai/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Upload posts one file as multipart form data with the fields "file" and "uploadedBy".
func (c *Client) Upload(ctx context.Context, filename, mimeType string, content io.Reader, uploadedBy string) (*model.UploadedFile, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if uploadedBy != "" {
		if err := writer.WriteField("uploadedBy", uploadedBy); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	data, err := c.processRequest(ctx, http.MethodPost, "/api/upload", writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}

	var upload model.UploadedFile
	if err := json.Unmarshal(data, &upload); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &upload, nil
}

// Fetch downloads a server-relative resource such as an upload's imageUrl.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	return c.processRequest(ctx, http.MethodGet, path, "", nil)
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	data, err := c.processRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) processRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	reqURL, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", ctJSON)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// resolve joins a server-relative path to the base URL.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return "", fmt.Errorf("path %q must be relative to the server", path)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func errorMessage(data []byte) string {
	var body dto.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
