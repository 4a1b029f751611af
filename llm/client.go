// Package llm provides a resilient worker invoker. It turns "send this prompt
// to this worker" into a best-effort non-empty response, masking transient
// zero-output and transport failures behind retry, backoff, and per-attempt
// decoding-parameter escalation.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/sleuthbench/model"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Invoker is the contract the summarization pipeline depends on. It never
// returns a Go error: failure is data in the InvocationResult.
type Invoker interface {
	Invoke(ctx context.Context, worker string, messages []Message) InvocationResult
}

// Client implements Invoker over HTTP providers with retry, decoding
// escalation, and circuit-breaker integration.
type Client struct {
	registry   *model.Registry
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger

	// sleep is injectable so backoff schedules are testable with a fake
	// clock.
	sleep func(context.Context, time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) ClientOption {
	return func(client *Client) {
		client.sleep = sleep
	}
}

// NewClient creates an invoker backed by the given worker registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry: registry,
		retry:    DefaultRetryConfig(),
		// No transport-level timeout here: per-call budgets come from the
		// endpoint config and are applied via context.
		httpClient: &http.Client{},
		logger:     slog.Default(),
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Invoke sends the messages to the worker, retrying zero responses, timeouts,
// and transport errors up to the class's attempt budget. Decoding parameters
// escalate with the attempt index per the class schedule.
//
// Outcome classification follows the final attempt:
//   - non-empty content: returned immediately, no terminal kind
//   - a healthy zero response on the final attempt: empty result with no
//     terminal kind, even when earlier attempts hit transient errors; the
//     caller applies its local fallback policy
//   - a timeout on the final attempt: TerminalTimeout
//   - a transport/API error on the final attempt, or any fatal rejection:
//     TerminalTransport
func (c *Client) Invoke(ctx context.Context, worker string, messages []Message) InvocationResult {
	endpoint := c.registry.GetWorker(worker)
	if endpoint == nil {
		return InvocationResult{
			AttemptCount: 1,
			TerminalKind: TerminalTransport,
			Err:          fmt.Errorf("worker %q is not configured", worker),
		}
	}

	// Every invocation gets a request id so retries and the eventual outcome
	// correlate in the logs.
	log := c.logger.With("worker", worker, "request_id", uuid.NewString())

	if !c.registry.IsWorkerAvailable(worker) {
		log.Warn("Worker circuit open, refusing invocation")
		return InvocationResult{
			AttemptCount: 1,
			TerminalKind: TerminalTransport,
			Err:          fmt.Errorf("worker %q circuit open", worker),
		}
	}

	class := c.registry.ClassOf(worker)
	schedule := c.registry.ScheduleFor(class)
	maxAttempts := c.retry.AttemptsFor(class)

	timeout := endpoint.Timeout()
	if timeout <= 0 {
		timeout = c.retry.RequestTimeout
	}

	// Only the most recent attempt's outcome survives: an endpoint that
	// recovers from a transient error into healthy zero responses is still
	// healthy, and the run must continue on the fallback path.
	var lastErr error
	lastTimeout := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		opts := schedule.Options(attempt)

		resp, err := c.doRequest(ctx, endpoint, messages, opts, timeout)
		switch {
		// Whitespace-only completions count as zero responses.
		case err == nil && strings.TrimSpace(resp.Content) != "":
			c.registry.MarkWorkerSuccess(worker)
			if attempt > 0 {
				log.Debug("Recovered on retry",
					"attempt", attempt+1,
					"chars", len(resp.Content))
			}
			return InvocationResult{Content: resp.Content, AttemptCount: attempt + 1}

		case err == nil:
			// Zero response: the call succeeded but produced no text.
			// Common with small local models; retried silently.
			lastErr = nil
			lastTimeout = false
			log.Debug("Zero response",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"temperature", opts.Temperature)
			if attempt+1 < maxAttempts {
				if serr := c.sleep(ctx, c.retry.EmptyBackoff); serr != nil {
					// A dead context must not masquerade as a retryable
					// empty result.
					return InvocationResult{
						AttemptCount: attempt + 1,
						TerminalKind: TerminalTransport,
						Err:          fmt.Errorf("invocation cancelled: %w", serr),
					}
				}
			}

		case IsFatal(err):
			log.Warn("Fatal worker error, not retrying", "error", err)
			return InvocationResult{
				AttemptCount: attempt + 1,
				TerminalKind: TerminalTransport,
				Err:          err,
			}

		case IsTimeout(err):
			lastErr = err
			lastTimeout = true
			log.Warn("Worker timeout",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"budget", timeout)
			if attempt+1 < maxAttempts {
				if serr := c.sleep(ctx, c.retry.TimeoutBackoff); serr != nil {
					return c.exhausted(worker, attempt+1, lastErr, lastTimeout)
				}
			}

		default:
			lastErr = err
			lastTimeout = false
			backoff := c.retry.transportBackoff(attempt)
			log.Warn("Worker request failed",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"backoff", backoff,
				"error", err)
			if attempt+1 < maxAttempts {
				if serr := c.sleep(ctx, backoff); serr != nil {
					return c.exhausted(worker, attempt+1, lastErr, lastTimeout)
				}
			}
		}
	}

	if lastErr == nil {
		// The final attempt was a healthy zero response. Not a terminal
		// failure: the caller substitutes fallback content.
		log.Warn("Attempts exhausted on zero responses", "attempts", maxAttempts)
		return InvocationResult{AttemptCount: maxAttempts}
	}

	return c.exhausted(worker, maxAttempts, lastErr, lastTimeout)
}

// exhausted builds the terminal result for a spent attempt budget and marks
// the worker unhealthy. The kind reflects the last failing attempt.
func (c *Client) exhausted(worker string, attempts int, lastErr error, timedOut bool) InvocationResult {
	c.registry.MarkWorkerFailure(worker)

	kind := TerminalTransport
	if timedOut {
		kind = TerminalTimeout
	}
	return InvocationResult{
		AttemptCount: attempts,
		TerminalKind: kind,
		Err:          lastErr,
	}
}

// doRequest executes a single HTTP request against the worker endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, messages []Message, opts model.DecodingOptions, timeout time.Duration) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)

	body, err := provider.BuildRequestBody(ep.Model, messages, opts)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError(fmt.Errorf("request timed out after %s: %w", timeout, err))
		}
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody)
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("worker API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusGatewayTimeout:
		return NewTimeoutError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest:
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
