package stylize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"photofx-bot/internal/config"
	apperrors "photofx-bot/internal/errors"
)

// Options selects how the backend should process an image
type Options struct {
	Style     string
	AllowNSFW bool
}

// Backend converts an input photo to a styled output photo. It is
// opaque beyond this contract: the result is either the transformed
// bytes or an error.
type Backend interface {
	Stylize(ctx context.Context, photo []byte, opts Options) ([]byte, error)
}

// HealthChecker reports whether the backend is reachable, for admin
// diagnostics.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Client handles communication with the stylize service API
type Client struct {
	baseURL    string
	wsURL      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new stylize service client
func NewClient(cfg config.StylizeConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		wsURL:   cfg.WebSocketURL,
		timeout: cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Stylize is the main entry point for photo transformation. The whole
// submit/wait/fetch sequence is bounded by the configured timeout.
func (c *Client) Stylize(ctx context.Context, photo []byte, opts Options) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Create job monitor with unique client ID
	monitor := newJobMonitor(c.wsURL, c.logger)

	jobID, err := c.SubmitJob(ctx, photo, opts, monitor.ClientID())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrTransformTimeout
		}
		return nil, fmt.Errorf("submit job: %w", err)
	}

	c.logger.Debug("job submitted", "job_id", jobID, "style", opts.Style)

	if err := monitor.WaitForCompletion(ctx, jobID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrTransformTimeout
		}
		return nil, fmt.Errorf("wait for completion: %w", err)
	}

	result, err := c.FetchResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	if len(result) == 0 {
		return nil, apperrors.ErrEmptyResult
	}

	return result, nil
}

// SubmitJob queues a photo for processing and returns the job ID
func (c *Client) SubmitJob(ctx context.Context, photo []byte, opts Options, clientID string) (string, error) {
	req := JobRequest{
		Image:     photo,
		Style:     opts.Style,
		AllowNSFW: opts.AllowNSFW,
		ClientID:  clientID,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var jobResp JobResponse
	if err := json.Unmarshal(respBody, &jobResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if jobResp.Error != "" {
		return "", fmt.Errorf("stylize service error: %s", jobResp.Error)
	}

	return jobResp.JobID, nil
}

// FetchResult downloads the output image for a completed job
func (c *Client) FetchResult(ctx context.Context, jobID string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/jobs/%s/result", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// CheckHealth verifies the stylize service is accessible
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
