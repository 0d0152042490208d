package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dougsko/qamd/pkg/protocol"
	"github.com/dougsko/qamd/pkg/qam"
)

// ErrNotFound is returned for unknown jobs
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the daemon
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qamd: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Unwrap maps HTTP status codes back to codec errors
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return qam.ErrInvalidParameter
	case http.StatusUnprocessableEntity:
		return qam.ErrCorruptSignal
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Client talks to a running qamd daemon
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the daemon at baseURL, e.g. http://localhost:8080
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ModulateOptions are the query parameters of a modulation
type ModulateOptions struct {
	Bits    int      // 0 uses the daemon default
	SNRDB   *float64 // nil uses the daemon default
	NoNoise bool     // overrides SNRDB
	Seed    int64    // 0 uses the daemon seed
}

// Modulation is the signal returned by the daemon
type Modulation struct {
	Signal  []byte // binary records
	Symbols int
	JobID   int64
	Seed    int64
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reach qamd: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read error: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var response protocol.Response
		if json.Unmarshal(data, &response) == nil && response.Error != "" {
			apiErr.Message = response.Error
		}
		return nil, nil, apiErr
	}

	return resp, data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	_, data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *Client) GetStatus(ctx context.Context) (*protocol.Status, error) {
	var status protocol.Status
	if err := c.getJSON(ctx, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Modulate sends data to the daemon and returns the binary signal
func (c *Client) Modulate(ctx context.Context, data []byte, opts ModulateOptions) (*Modulation, error) {
	query := url.Values{}
	if opts.Bits != 0 {
		query.Set("bits", strconv.Itoa(opts.Bits))
	}
	switch {
	case opts.NoNoise:
		query.Set("snr", "none")
	case opts.SNRDB != nil:
		query.Set("snr", strconv.FormatFloat(*opts.SNRDB, 'g', -1, 64))
	}
	if opts.Seed != 0 {
		query.Set("seed", strconv.FormatInt(opts.Seed, 10))
	}

	resp, signal, err := c.do(ctx, http.MethodPost, "/api/v1/modulate", query, data)
	if err != nil {
		return nil, err
	}

	result := &Modulation{Signal: signal}
	result.Symbols, _ = strconv.Atoi(resp.Header.Get("X-Symbol-Count"))
	result.JobID, _ = strconv.ParseInt(resp.Header.Get("X-Job-ID"), 10, 64)
	result.Seed, _ = strconv.ParseInt(resp.Header.Get("X-Noise-Seed"), 10, 64)
	return result, nil
}

// Demodulate sends a binary signal to the daemon and returns the bytes
func (c *Client) Demodulate(ctx context.Context, signal []byte, bits int) ([]byte, error) {
	query := url.Values{}
	if bits != 0 {
		query.Set("bits", strconv.Itoa(bits))
	}

	_, data, err := c.do(ctx, http.MethodPost, "/api/v1/demodulate", query, signal)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetJobs gets recent jobs, newest first. mode may be empty.
func (c *Client) GetJobs(ctx context.Context, limit int, mode string) ([]protocol.Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if mode != "" {
		query.Set("mode", mode)
	}

	var resp struct {
		Jobs []protocol.Job `json:"jobs"`
	}
	if err := c.getJSON(ctx, "/api/v1/jobs", query, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob gets one job
func (c *Client) GetJob(ctx context.Context, id int64) (*protocol.Job, error) {
	var job protocol.Job
	if err := c.getJSON(ctx, "/api/v1/jobs/"+strconv.FormatInt(id, 10), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Ping tests the connection
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}

// IsConnected tests if the daemon is reachable
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Watch streams job events until ctx is done or the connection drops
func (c *Client) Watch(ctx context.Context, fn func(protocol.Event)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var event protocol.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("event stream error: %w", err)
		}
		fn(event)
	}
}
