// Package rpc provides a JSON-RPC 2.0 client over HTTP with classified
// retry and bounded exponential backoff.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/relayer/internal/relay/metrics"
)

// Error is a JSON-RPC error response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Client is a JSON-RPC HTTP client bound to one endpoint.
type Client struct {
	name     string
	endpoint string
	httpc    *http.Client
	retry    RetryConfig
	log      *slog.Logger
	nextID   atomic.Uint64
}

// NewClient creates a client for the given endpoint. name labels the
// endpoint in logs and metrics.
func NewClient(name, endpoint string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		name:     name,
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		retry:    DefaultRetryConfig,
		log:      log,
	}
}

// WithRetry overrides the retry configuration.
func (c *Client) WithRetry(cfg RetryConfig) *Client {
	c.retry = cfg
	return c
}

// Name returns the endpoint label.
func (c *Client) Name() string {
	return c.name
}

// Call executes one JSON-RPC call. Retryable failures are retried with
// exponential backoff up to the configured attempt budget; fatal
// JSON-RPC codes fail immediately.
func (c *Client) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	backoff := retry.WithMaxRetries(c.retry.MaxAttempts,
		retry.WithCappedDuration(c.retry.MaxDelay, retry.NewExponential(c.retry.InitialDelay)))

	var result json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.call(ctx, method, params)
		if err != nil {
			metrics.RPCErrorsTotal.WithLabelValues(c.name, method).Inc()
			if ClassifyError(err) == ActionFatal {
				return err
			}
			c.log.Debug("Retryable RPC failure", "endpoint", c.name, "method", method, "error", err)
			return retry.RetryableError(err)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, method, err)
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	metrics.RPCCallsTotal.WithLabelValues(c.name, method).Inc()
	metrics.RPCLatency.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return r.Result, nil
}
