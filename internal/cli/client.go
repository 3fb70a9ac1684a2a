package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/server/handlers"
)

const defaultServerURL = "http://localhost:5000"

// errStillProcessing is returned by result lookups for jobs with no outcome yet.
var errStillProcessing = errors.New("job is still processing")

// apiClient talks to a running broker over its HTTP API.
type apiClient struct {
	baseURL string
	client  *http.Client
}

// newAPIClient resolves the server URL from the flag, then AETHER_SERVER_URL.
func newAPIClient(serverURL string) *apiClient {
	if serverURL == "" {
		serverURL = os.Getenv("AETHER_SERVER_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	return &apiClient{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *apiClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// SubmitJob posts a job and returns the assigned job id.
func (c *apiClient) SubmitJob(ctx context.Context, req jobs.SubmitRequest) (*handlers.SubmitJobResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/jobs", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var out handlers.SubmitJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// Result fetches the outcome of jobID. A job without an outcome returns
// errStillProcessing.
func (c *apiClient) Result(ctx context.Context, jobID string) (*jobs.Result, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/results/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errStillProcessing
	default:
		return nil, handleErrorResponse(resp)
	}

	var out jobs.Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// WaitResult polls Result every interval until the job completes or ctx ends.
func (c *apiClient) WaitResult(ctx context.Context, jobID string, interval time.Duration) (*jobs.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := c.Result(ctx, jobID)
		if !errors.Is(err, errStillProcessing) {
			return res, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Code != "" {
			return fmt.Errorf("server error (%s): %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("server error: %s", errResp.Error)
	}

	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
