// Package sync is the client side of LAN replication. A client node holds no
// data: every job operation is one fresh HTTP round trip to the master, with
// no retry and no cache. An unreachable master means no data operations;
// there is no offline mode.
package sync

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

	"github.com/floorsync/floorsync/internal/api"
	"github.com/floorsync/floorsync/internal/config"
	"github.com/floorsync/floorsync/internal/job"
)

// Client proxies job CRUD to a master.
type Client struct {
	baseURL string
	// keyFn supplies the current shared LAN key per call, so a key change in
	// settings applies immediately.
	keyFn      func() string
	httpClient *http.Client
}

// Health is the master's /health payload.
type Health struct {
	OK      bool   `json:"ok"`
	Role    string `json:"role"`
	Version string `json:"version"`
	Port    int    `json:"port"`
	Time    string `json:"time"`
}

// New returns a client for the master at addr. addr may be a bare host/IP
// (the fixed LAN port is appended) or a host:port pair.
func New(addr string, keyFn func() string) *Client {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, config.DefaultPort)
	}
	if keyFn == nil {
		keyFn = func() string { return "" }
	}
	return &Client{
		baseURL:    "http://" + addr,
		keyFn:      keyFn,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// envelope is the master's response shape. OK/Error cover the error contract;
// the rest are per-endpoint payloads.
type envelope struct {
	OK        bool       `json:"ok"`
	Error     string     `json:"error"`
	Jobs      []*job.Job `json:"jobs"`
	Job       *job.Job   `json:"job"`
	RemovedID string     `json:"removedId"`
}

// do performs one round trip and decodes the response. A non-2xx status or a
// transport failure comes back as a single error carrying the server-provided
// message, or an HTTP-status fallback when the body is not parseable.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.keyFn()); key != "" {
		req.Header.Set(api.AuthHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("master unreachable: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Error != "" {
			return nil, fmt.Errorf("%s", env.Error)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &env, nil
}

// Ping probes the master's /health endpoint.
func (c *Client) Ping(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("master unreachable: %w", err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return &h, nil
}

// GetJobs fetches the full job list from the master.
func (c *Client) GetJobs(ctx context.Context) ([]*job.Job, error) {
	env, err := c.do(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}
	if env.Jobs == nil {
		return []*job.Job{}, nil
	}
	return env.Jobs, nil
}

// AddJob creates j on the master and returns the stored record.
func (c *Client) AddJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	env, err := c.do(ctx, http.MethodPost, "/jobs", map[string]any{"job": j})
	if err != nil {
		return nil, err
	}
	return env.Job, nil
}

// UpdateJob patches the job with the given id on the master.
func (c *Client) UpdateJob(ctx context.Context, id string, p *job.Patch) (*job.Job, error) {
	env, err := c.do(ctx, http.MethodPut, "/jobs/"+url.PathEscape(id), map[string]any{"patch": p})
	if err != nil {
		return nil, err
	}
	return env.Job, nil
}

// DeleteJob removes the job with the given id on the master and returns the
// removed id.
func (c *Client) DeleteJob(ctx context.Context, id string) (string, error) {
	env, err := c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	return env.RemovedID, nil
}
