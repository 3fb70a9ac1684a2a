package dispatch

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

	"github.com/Praises003/aether/internal/registry"
)

// maxResponseSize caps how much of a remote response body is kept.
const maxResponseSize = 4 << 20

type remoteInvoker struct {
	timeout    time.Duration
	httpClient *http.Client
}

func newRemoteInvoker(timeout time.Duration) *remoteInvoker {
	return &remoteInvoker{
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type remoteRequest struct {
	Input json.RawMessage `json:"input"`
}

func (r *remoteInvoker) invoke(ctx context.Context, target registry.RemoteTarget, input json.RawMessage) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := r.buildRequest(ctx, target, input)
	if err != nil {
		return failure(err.Error())
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure(fmt.Sprintf("remote call timed out after %s", r.timeout))
		}
		return failure(fmt.Sprintf("remote call failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure(fmt.Sprintf("remote call timed out after %s", r.timeout))
		}
		return failure(fmt.Sprintf("reading remote response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 512)))
	}

	return Outcome{Success: true, Output: toJSON(body)}
}

func (r *remoteInvoker) buildRequest(ctx context.Context, target registry.RemoteTarget, input json.RawMessage) (*http.Request, error) {
	if len(input) == 0 {
		input = json.RawMessage("null")
	}

	switch target.Method {
	case http.MethodGet:
		u, err := url.Parse(target.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing endpoint: %w", err)
		}
		q := u.Query()
		q.Set("input", queryValue(input))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil

	case http.MethodPost, "":
		payload, err := json.Marshal(remoteRequest{Input: input})
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	return nil, fmt.Errorf("unsupported HTTP method %q", target.Method)
}

// queryValue renders input for a query string: JSON strings are sent
// unquoted, anything else as its JSON text.
func queryValue(input json.RawMessage) string {
	var s string
	if err := json.Unmarshal(input, &s); err == nil {
		return s
	}
	return string(input)
}

// toJSON keeps a JSON body as-is and wraps anything else as a JSON string.
func toJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(string(body))
	return wrapped
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
