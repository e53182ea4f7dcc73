package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// DefaultMinRemaining is the remaining-calls floor below which the client
// reports itself off quota.
const DefaultMinRemaining = 50

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("github: not found")

// ErrGone is returned for 410 responses, such as deleted issues.
var ErrGone = errors.New("github: gone")

// APIError is a non-2xx response other than 404 and 410.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Client talks to the GitHub REST API.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	limiter      *rate.Limiter
	minRemaining int
	logger       *slog.Logger

	mu        sync.Mutex
	remaining int // -1 until the first response
	reset     time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, GHE).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sets the bearer token. Without one requests are anonymous.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRate limits outgoing requests to r per second with the given burst.
func WithRate(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithMinRemaining sets the remaining-calls floor used by OffQuota.
func WithMinRemaining(n int) Option {
	return func(c *Client) { c.minRemaining = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. Defaults: DefaultBaseURL, 10 requests per second
// with a burst of 10, DefaultMinRemaining.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		http:         &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(10), 10),
		minRemaining: DefaultMinRemaining,
		logger:       slog.Default(),
		remaining:    -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OffQuota reports whether the last known remaining-calls count is below
// the floor. Before any response it is false.
func (c *Client) OffQuota() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining >= 0 && c.remaining < c.minRemaining
}

// Remaining returns the last X-RateLimit-Remaining seen, or -1.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Reset returns when the rate limit window resets, if known.
func (c *Client) Reset() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reset
}

// get issues a GET for p (relative to the base URL) and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, p string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("github: rate limiter: %w", err)
	}

	u := c.baseURL + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: GET %s: %w", p, err)
	}
	defer resp.Body.Close()
	c.track(resp.Header)

	c.logger.Debug("github request",
		"path", p,
		"status", resp.StatusCode,
		"remaining", c.Remaining())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", p, ErrNotFound)
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("GET %s: %w", p, ErrGone)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{
			Status:  resp.StatusCode,
			Method:  http.MethodGet,
			Path:    p,
			Message: errorMessage(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode %s: %w", p, err)
	}
	return nil
}

// track records the rate limit headers of a response.
func (c *Client) track(h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.reset = time.Unix(sec, 0).UTC()
		}
	}
}

func errorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsGone reports whether err is a 410.
func IsGone(err error) bool {
	return errors.Is(err, ErrGone)
}

func repoPath(fullName string) (string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("github: bad repository name %q", fullName)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

func matchName(pattern, name string) bool {
	ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && ok
}
