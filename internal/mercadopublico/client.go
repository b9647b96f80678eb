// Package mercadopublico talks to the public tender listing API. One Fetch
// call walks every page for a selector and retries transient failures with
// exponential backoff, so callers get either the whole listing or an error.
package mercadopublico

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"tenderradar/internal/dedupe"
)

const maxBackoff = 60 * time.Second

// Client is a single-endpoint HTTP client for the listing API.
type Client struct {
	baseURL    string
	ticket     string
	userAgent  string
	maxRetries int
	backoff    float64
	maxPages   int
	http       *http.Client
	log        *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Options configure a Client. Zero fields fall back to defaults.
type Options struct {
	BaseURL    string
	Ticket     string
	UserAgent  string
	MaxRetries int
	Backoff    float64
	MaxPages   int
	Timeout    time.Duration
}

// New builds a Client. The ticket is required: the API rejects anonymous
// requests, so a missing credential is a usage error, not a retry case.
func New(opts Options, log *slog.Logger) (*Client, error) {
	if opts.Ticket == "" {
		return nil, errors.New("missing API ticket")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("missing base URL")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 6
	}
	if opts.Backoff <= 1 {
		opts.Backoff = 2.0
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tenderradar/1.0"
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    opts.BaseURL,
		ticket:     opts.Ticket,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxPages:   opts.MaxPages,
		http:       &http.Client{Timeout: opts.Timeout},
		log:        log,
		sleep:      sleepCtx,
	}, nil
}

// statusError is a non-2xx response. 429 and 5xx are retryable, everything
// else fails the run immediately.
type statusError struct {
	code       int
	retryAfter time.Duration
	hasHint    bool
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api returned HTTP %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// ShapeError reports a payload whose structure the parser does not know.
// Retrying cannot help, so it is always fatal.
type ShapeError struct {
	Shape string
}

func (e *ShapeError) Error() string {
	return "unexpected payload shape: " + e.Shape
}

// Fetch retrieves the full listing for a selector. With MaxPages > 1 it walks
// successive pages and stops on the first page that adds no new records, so
// endpoints that ignore the page parameter terminate after two calls.
func (c *Client) Fetch(ctx context.Context, sel Selector) ([]map[string]any, error) {
	if !sel.Valid() {
		return nil, errors.New("empty selector: use ByDate or ByStatus")
	}

	seen := dedupe.NewSet(100000)
	var all []map[string]any

	for page := 1; page <= c.maxPages; page++ {
		batch, err := c.fetchPage(ctx, sel, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		added := 0
		for _, rec := range batch {
			if code := recordCode(rec); code != "" {
				if seen.Seen(code) {
					continue
				}
				seen.Add(code)
			}
			all = append(all, rec)
			added++
		}

		c.log.Debug("page fetched",
			slog.Int("page", page),
			slog.Int("records", len(batch)),
			slog.Int("new", added),
		)

		if len(batch) == 0 || added == 0 {
			break
		}
	}

	return all, nil
}

// fetchPage runs the per-request retry loop: request, then on a retryable
// failure wait and go again, up to maxRetries attempts in total.
func (c *Client) fetchPage(ctx context.Context, sel Selector, page int) ([]map[string]any, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		records, err := c.doRequest(ctx, sel, page)
		if err == nil {
			return records, nil
		}

		var shape *ShapeError
		if errors.As(err, &shape) {
			return nil, err
		}

		wait := c.delay(attempt)
		var status *statusError
		if errors.As(err, &status) {
			if !status.retryable() {
				return nil, err
			}
			if status.hasHint {
				wait = status.retryAfter
			}
		}

		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		c.log.Warn("transient fetch failure",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
			slog.Duration("retry_in", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, sel Selector, page int) ([]map[string]any, error) {
	params := sel.Params()
	params.Set("ticket", c.ticket)
	if c.maxPages > 1 {
		params.Set("pagina", strconv.Itoa(page))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		se := &statusError{code: resp.StatusCode}
		if raw := resp.Header.Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
				se.retryAfter = time.Duration(secs) * time.Second
				se.hasHint = true
			}
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, se
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return ParseListing(payload)
}

// ParseListing accepts the listing shapes the API has been seen to produce:
// a bare array, {"Listado": [...]}, {"Listado": {"Licitacion": [...]}},
// {"Licitacion": [...]} and {"Resultados": [...]}.
func ParseListing(payload any) ([]map[string]any, error) {
	switch p := payload.(type) {
	case []any:
		return toRecords(p)
	case map[string]any:
		if listado, ok := p["Listado"]; ok {
			switch l := listado.(type) {
			case []any:
				return toRecords(l)
			case map[string]any:
				if inner, ok := l["Licitacion"].([]any); ok {
					return toRecords(inner)
				}
				return nil, &ShapeError{Shape: "Listado object without Licitacion array, keys " + joinKeys(l)}
			case nil:
				return nil, nil
			default:
				return nil, &ShapeError{Shape: fmt.Sprintf("Listado is %T", listado)}
			}
		}
		if inner, ok := p["Licitacion"].([]any); ok {
			return toRecords(inner)
		}
		if inner, ok := p["Resultados"].([]any); ok {
			return toRecords(inner)
		}
		return nil, &ShapeError{Shape: "object with keys " + joinKeys(p)}
	case nil:
		return nil, &ShapeError{Shape: "null payload"}
	default:
		return nil, &ShapeError{Shape: fmt.Sprintf("%T", payload)}
	}
}

func toRecords(items []any) ([]map[string]any, error) {
	records := make([]map[string]any, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &ShapeError{Shape: fmt.Sprintf("listing element %d is %T, not an object", i, item)}
		}
		records = append(records, rec)
	}
	return records, nil
}

// delay computes the exponential backoff for an attempt, capped at 60s.
func (c *Client) delay(attempt int) time.Duration {
	secs := math.Pow(c.backoff, float64(attempt))
	d := time.Duration(secs * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func recordCode(rec map[string]any) string {
	if code, ok := rec["CodigoExterno"].(string); ok {
		return code
	}
	return ""
}

func joinKeys(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
