package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/concrawl/internal/domain"
)

var (
	// ErrRateLimited is returned when the service answers 429.
	ErrRateLimited = errors.New("timeline rate limited")

	// ErrUnknownHandle is returned when the service has no such account.
	ErrUnknownHandle = errors.New("unknown timeline handle")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status from timeline service")
)

const maxBody = 4 << 20

// RateLimitError carries the server's Retry-After hint.
type RateLimitError struct {
	Handle     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("timeline rate limited for %s, retry after %s", e.Handle, e.RetryAfter)
	}
	return fmt.Sprintf("timeline rate limited for %s", e.Handle)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Client fetches timelines through a rate gate.
type Client struct {
	baseURL string
	token   string
	gate    *Gate
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a timeline client. The gate may be shared with other
// clients talking to the same service.
func NewClient(baseURL, token string, gate *Gate, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid timeline url %q", baseURL)
	}
	if gate == nil {
		return nil, errors.New("timeline gate cannot be nil")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		gate:    gate,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "timeline"),
	}, nil
}

type timelineResponse struct {
	Posts []domain.Post `json:"posts"`
}

// Timeline returns up to limit of the most recent posts of handle. A limit of
// zero leaves the page size to the service.
func (c *Client) Timeline(ctx context.Context, handle string, limit int) ([]domain.Post, error) {
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrUnknownHandle)
	}

	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/users/" + url.PathEscape(handle) + "/posts"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline of %s: %w", handle, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rlErr := &RateLimitError{Handle: handle, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
		c.logger.WarnContext(ctx, "timeline rate limited", "handle", handle, "retry_after", rlErr.RetryAfter)
		return nil, rlErr
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, handle, resp.Status)
	}

	var body timelineResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode timeline of %s: %w", handle, err)
	}

	posts := make([]domain.Post, 0, len(body.Posts))
	for _, p := range body.Posts {
		if err := p.Validate(); err != nil {
			c.logger.DebugContext(ctx, "dropping invalid post", "handle", handle, "error", err)
			continue
		}
		posts = append(posts, p)
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	c.logger.DebugContext(ctx, "fetched timeline", "handle", handle, "posts", len(posts))
	return posts, nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
