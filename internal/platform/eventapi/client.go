package eventapi

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
	"time"

	"github.com/phrazzld/concrawl/internal/domain"
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status from event api")

	// ErrMalformedPage is returned when a page cannot be decoded.
	ErrMalformedPage = errors.New("malformed event page")

	// ErrPageLoop is returned when the API points back to a page already read.
	ErrPageLoop = errors.New("event api pagination loops")
)

// maxBody caps how much of a single response is read.
const maxBody = 8 << 20

// Page is one page of the event listing.
type Page struct {
	Events []domain.ConEvent `json:"events"`

	// Next is the following page number, nil on the last page
	Next *int `json:"next"`
}

// ProgressFunc is called after each page with the number of pages and events
// read so far.
type ProgressFunc func(pages, events int)

// Client reads the event API.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, pageSize int, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid event api url %q", baseURL)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With("component", "eventapi"),
	}, nil
}

// FetchPage reads a single page. Pages are numbered from 1.
func (c *Client) FetchPage(ctx context.Context, page int) (Page, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Page{}, fmt.Errorf("invalid event api url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("%w: page %d: %s", ErrUnexpectedStatus, page, resp.Status)
	}

	var p Page
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&p); err != nil {
		return Page{}, fmt.Errorf("%w: page %d: %v", ErrMalformedPage, page, err)
	}
	for i, ev := range p.Events {
		if err := ev.Validate(); err != nil {
			return Page{}, fmt.Errorf("%w: page %d event %d: %w", ErrMalformedPage, page, i, err)
		}
	}

	c.logger.DebugContext(ctx, "fetched event page", "page", page, "events", len(p.Events))
	return p, nil
}

// FetchAll walks the listing from page 1 until the API reports no next page.
// progress may be nil.
func (c *Client) FetchAll(ctx context.Context, progress ProgressFunc) ([]domain.ConEvent, error) {
	var all []domain.ConEvent
	seen := make(map[int]bool)

	for page := 1; ; {
		seen[page] = true
		p, err := c.FetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Events...)
		if progress != nil {
			progress(len(seen), len(all))
		}

		if p.Next == nil {
			break
		}
		if seen[*p.Next] {
			return nil, fmt.Errorf("%w: page %d points to page %d", ErrPageLoop, page, *p.Next)
		}
		page = *p.Next
	}

	c.logger.InfoContext(ctx, "fetched event listing", "pages", len(seen), "events", len(all))
	return all, nil
}
