package shopapi

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Client talks to the shopping API. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     TokenSource
	userAgent string
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	Token     TokenSource
	Timeout   time.Duration
	UserAgent string
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	Breaker   BreakerConfig
	Logger    zerolog.Logger
	// HTTPClient overrides the underlying transport (tests).
	HTTPClient *http.Client
}

const (
	defaultBaseURL   = "http://127.0.0.1:5000"
	defaultUserAgent = "basket/0.1"
	requestTimeout   = 10 * time.Second
	apiPrefix        = "/api"
	maxErrorBody     = 1 << 20
)

// ErrCircuitOpen is returned while the circuit breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

// NewClient builds a Client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	token := opts.Token
	if token == nil {
		token = StaticToken("")
	}

	c := &Client{
		baseURL:   base,
		http:      httpClient,
		token:     token,
		userAgent: userAgent,
		log:       opts.Logger,
	}
	c.breaker = newBreaker(opts.Breaker, c.log)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// Get issues a GET request and decodes the JSON response into dest.
func (c *Client) Get(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPut, path, body, dest)
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPatch, path, body, dest)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodDelete, path, nil, dest)
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	rel = withPrefix(rel)
	route := routeLabel(method, rel.Path)

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	token, err := c.token.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader = http.NoBody
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		// 5xx trips the breaker; 4xx is a valid answer from a healthy server.
		if resp.StatusCode >= 500 {
			return nil, parseError(resp, method, rel.Path)
		}
		return resp, nil
	})
	if err != nil {
		observeRequest(route, outcomeOf(err), start)
		c.log.Debug().Err(err).Str("route", route).Str("request_id", requestID).Msg("api request failed")
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := parseError(resp, method, rel.Path)
		observeRequest(route, outcomeOf(apiErr), start)
		c.log.Debug().Err(apiErr).Str("route", route).Str("request_id", requestID).Msg("api request rejected")
		return apiErr
	}
	observeRequest(route, outcomeOK, start)

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// withPrefix roots relative paths under /api, leaving already prefixed paths alone.
func withPrefix(rel *url.URL) *url.URL {
	out := *rel
	p := out.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != apiPrefix && !strings.HasPrefix(p, apiPrefix+"/") {
		p = apiPrefix + p
	}
	out.Path = p
	return &out
}

// routeLabel collapses numeric path segments so metrics keep bounded cardinality.
func routeLabel(method, path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		numeric := true
		for _, r := range seg {
			if r < '0' || r > '9' {
				numeric = false
				break
			}
		}
		if numeric {
			segments[i] = ":id"
		}
	}
	return method + " " + strings.Join(segments, "/")
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return outcomeRejected
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return outcomeServerError
		}
		return outcomeClientError
	}
	return outcomeTransport
}
