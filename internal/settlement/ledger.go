package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/damas-online/pkg/damasdto"
	"github.com/valyala/fasthttp"
)

// Ledger moves the wager once a match is decided.
type Ledger interface {
	Settle(ctx context.Context, o damasdto.Outcome) (*Receipt, error)
}

// Receipt is the ledger's acknowledgement. Status is "duplicate" when the
// ledger had already processed the same idempotency key.
type Receipt struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// HeaderProvider injects per-request headers such as service credentials.
type HeaderProvider func() map[string]string

// HTTPLedger posts outcomes to the ledger service as JSON.
type HTTPLedger struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type LedgerOption func(*HTTPLedger)

func WithTimeout(d time.Duration) LedgerOption {
	return func(c *HTTPLedger) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) LedgerOption {
	return func(c *HTTPLedger) { c.retryMax = max }
}

func WithHeaderProvider(h HeaderProvider) LedgerOption {
	return func(c *HTTPLedger) { c.headers = h }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) LedgerOption {
	return func(c *HTTPLedger) { c.http.Dial = dial }
}

func NewHTTPLedger(baseURL string, opts ...LedgerOption) *HTTPLedger {
	c := &HTTPLedger{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IdempotencyKey is stable per match so every retry and every client maps to
// the same ledger entry.
func IdempotencyKey(matchID string) string { return "damas-settle-" + strings.TrimSpace(matchID) }

func (c *HTTPLedger) Settle(ctx context.Context, o damasdto.Outcome) (*Receipt, error) {
	var rcpt Receipt
	status, err := c.doJSON(ctx, fasthttp.MethodPost, "/settle", IdempotencyKey(o.MatchID), o, &rcpt)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusConflict {
		rcpt.Status = "duplicate"
	}
	return &rcpt, nil
}

func (c *HTTPLedger) doJSON(ctx context.Context, method, path, idemKey string, in any, out any) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("ledger request failed: %w", err)
			if attempt == attempts {
				return 0, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return 0, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusConflict {
			return status, nil
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("ledger api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return status, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return status, lastErr
			}
			continue
		}

		if out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return status, fmt.Errorf("decode response: %w", err)
			}
		}
		return status, nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return 0, lastErr
}

func (c *HTTPLedger) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and caps at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
