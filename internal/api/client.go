// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emberwatch/firecommand/pkg/core"
)

// DefaultTimeout bounds a single collaborator call when none is configured.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a reply is read.
const maxBody = 64 << 20

// Client is the shared JSON-over-HTTP transport for the external collaborators
// (execution engine, GIS provider, command parser). Every failure is returned
// as a *core.CollaboratorError tagged with the calling operation.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the collaborator root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the collaborator is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// GetJSON issues GET {base}{path}?{query} and decodes the reply into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.NewCollaboratorError(op, core.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

// PostJSON issues POST {base}{path} with body encoded as JSON and decodes the
// reply into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return core.NewCollaboratorError(op, core.ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.NewCollaboratorError(op, core.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return core.NewCollaboratorError(op, core.ErrNetworkFailure, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.NewCollaboratorError(op, core.ErrNetworkFailure,
			fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewCollaboratorError(op, core.ErrMalformedResponse, err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
