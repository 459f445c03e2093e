package keynotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/keynotify/internal/logging"
	"github.com/MrEthical07/keynotify/internal/retry"
)

const maxResponseBytes = 4 << 20

// Request carries the optional query and JSON body of a call.
//
// Query values may be nested maps and slices; nested keys are joined with
// dots and slice elements get bracketed indices (filter.tags[0]=a).
type Request struct {
	Query map[string]any
	Body  any
}

// Send performs one logical API call and decodes the payload into out.
//
// The payload is the envelope data member when the response carries one and
// the whole body otherwise. A nil out discards the payload. Every failure is
// an *APIError; see ErrorKind for how failures are classified.
func (c *Client) Send(ctx context.Context, method, path string, req Request, out any) error {
	env, err := c.Do(ctx, method, path, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	payload := env.Payload()
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode response payload",
			"method", method,
			"path", path,
			"error", err,
		)
		return &APIError{
			Kind:    KindEnvelope,
			Message: ErrMalformedResponse.Error(),
			Err:     fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}
	return nil
}

// Do performs one logical API call and returns the decoded envelope.
//
// Network failures and 5xx responses are re-sent up to Retry.MaxRetries
// times, the N-th retry waiting N × Retry.Step. A 401 clears the credential
// slot, publishes one Revocation and sends the navigator to LoginPath.
func (c *Client) Do(ctx context.Context, method, path string, req Request) (*Envelope, error) {
	if c == nil || c.httpClient == nil {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reqID, ok := logging.RequestID(ctx)
	if !ok {
		reqID = logging.NewRequestID()
		ctx = logging.WithRequestID(ctx, reqID)
	}

	endpoint, err := c.endpoint(path, req.Query)
	if err != nil {
		return nil, validationError(err)
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, validationError(fmt.Errorf("encode request body: %w", err))
		}
	}

	policy := retry.Policy{
		MaxRetries: c.cfg.Retry.MaxRetries,
		Step:       c.cfg.Retry.Step,
		Clock:      c.clock,
		OnRetry: func(n int, err error, delay time.Duration) {
			c.metrics.Inc(MetricRequestRetry)
			c.logger.WarnContext(ctx, "retrying request",
				"method", method,
				"path", path,
				"retry", n,
				"delay", delay,
				"error", err,
			)
		},
	}

	start := c.clock.Now()
	env, err := retry.Do(ctx, policy, classifyAttempt, func(ctx context.Context) (*Envelope, error) {
		return c.attempt(ctx, method, path, endpoint, body, reqID)
	})
	c.metrics.Observe(MetricRequestLatency, c.clock.Since(start))

	if err != nil {
		apiErr := c.finishError(err)
		c.metrics.Inc(MetricRequestFailure)
		c.logger.ErrorContext(ctx, "request failed",
			"method", method,
			"path", path,
			"kind", apiErr.Kind.String(),
			"status", apiErr.Status,
			"code", apiErr.Code,
			"retries", apiErr.Retries,
			"error", apiErr.Error(),
		)
		return nil, apiErr
	}

	c.metrics.Inc(MetricRequestSuccess)
	return env, nil
}

func (c *Client) attempt(ctx context.Context, method, path, endpoint string, body []byte, reqID string) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, &APIError{Kind: KindTransient, Message: "request cancelled", Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, endpoint, rdr)
	if err != nil {
		return nil, validationError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", reqID)
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if token := c.slot.Token(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.networkError(ctx, attemptCtx, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.networkError(ctx, attemptCtx, method, path, err)
	}

	env, decErr := decodeEnvelope(raw)
	status := resp.StatusCode

	switch {
	case status == http.StatusUnauthorized:
		apiErr := envelopeError(KindAuthentication, status, env)
		c.revoke(ctx, path, apiErr.Code, reqID)
		return nil, apiErr

	case status >= 500:
		apiErr := envelopeError(KindTransient, status, env)
		c.logger.WarnContext(ctx, "server error",
			"method", method,
			"path", path,
			"status", status,
		)
		return nil, apiErr

	case status < 200 || status >= 300:
		return nil, envelopeError(KindClient, status, env)
	}

	if decErr != nil {
		return nil, &APIError{
			Kind:    KindEnvelope,
			Status:  status,
			Message: ErrMalformedResponse.Error(),
			Err:     fmt.Errorf("%w: %v", ErrMalformedResponse, decErr),
		}
	}
	if env.Failed() {
		c.metrics.Inc(MetricEnvelopeFailure)
		return nil, envelopeError(KindEnvelope, status, env)
	}
	return env, nil
}

func (c *Client) networkError(ctx, attemptCtx context.Context, method, path string, err error) *APIError {
	if ctx.Err() != nil {
		return &APIError{Kind: KindTransient, Message: "request cancelled", Err: ctx.Err()}
	}

	timeout := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}

	msg := "network error"
	if timeout {
		msg = "request timed out"
	}
	c.logger.WarnContext(ctx, msg,
		"method", method,
		"path", path,
		"error", err,
	)
	return &APIError{Kind: KindTransient, Message: msg, Timeout: timeout, Err: err}
}

// revoke clears both credential tiers, signals the session store and moves
// the navigator to the login view.
func (c *Client) revoke(ctx context.Context, path, code, reqID string) {
	c.metrics.Inc(MetricUnauthorized)

	// The caller's context may already be cancelled; the purge must still run.
	clearCtx := context.WithoutCancel(ctx)
	if err := c.slot.Clear(clearCtx); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear credentials after 401", "error", err)
	}

	c.bus.Publish(Revocation{
		Status:    http.StatusUnauthorized,
		Code:      code,
		Path:      path,
		RequestID: reqID,
		At:        c.clock.Now(),
	})

	if nav := c.navigator(); nav != nil && nav.CurrentPath() != LoginPath {
		nav.Navigate(LoginPath)
	}
}

func (c *Client) finishError(err error) *APIError {
	retries := 0
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		retries = exhausted.Retries
		if retries > 0 {
			c.metrics.Inc(MetricRequestExhausted)
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		out := *apiErr
		out.Retries = retries
		return &out
	}
	// Cancelled while waiting between attempts.
	return &APIError{Kind: KindTransient, Message: "request cancelled", Err: err}
}

func classifyAttempt(err error) retry.Action {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindTransient || apiErr.Timeout {
		return retry.Stop
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}

func envelopeError(kind ErrorKind, status int, env *Envelope) *APIError {
	apiErr := &APIError{Kind: kind, Status: status}
	if env != nil {
		apiErr.Code = env.FailureCode()
		apiErr.Message = env.FailureMessage()
		apiErr.Errors = env.Errors
	}
	return apiErr
}

func (c *Client) endpoint(path string, query map[string]any) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")

	vals := rel.Query()
	for _, k := range sortedKeys(query) {
		flattenQuery(vals, k, query[k])
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

func flattenQuery(vals url.Values, key string, v any) {
	switch t := v.(type) {
	case nil:
	case string:
		vals.Add(key, t)
	case bool:
		vals.Add(key, strconv.FormatBool(t))
	case fmt.Stringer:
		vals.Add(key, t.String())
	case map[string]any:
		for _, k := range sortedKeys(t) {
			flattenQuery(vals, key+"."+k, t[k])
		}
	case map[string]string:
		for _, k := range sortedKeys(t) {
			vals.Add(key+"."+k, t[k])
		}
	case []string:
		for i, s := range t {
			vals.Add(key+"["+strconv.Itoa(i)+"]", s)
		}
	case []any:
		for i, e := range t {
			flattenQuery(vals, key+"["+strconv.Itoa(i)+"]", e)
		}
	default:
		vals.Add(key, fmt.Sprint(t))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
