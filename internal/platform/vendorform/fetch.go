package vendorform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/phrazzld/concrawl/internal/domain"
)

// ErrUnexpectedStatus is returned when the vendor page is not served.
var ErrUnexpectedStatus = errors.New("unexpected status from vendor page")

const maxPage = 16 << 20

// Fetcher downloads and parses the vendor page.
type Fetcher struct {
	pageURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewFetcher creates a fetcher for the page at pageURL.
func NewFetcher(pageURL string, timeout time.Duration, logger *slog.Logger) (*Fetcher, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid vendor page url %q", pageURL)
	}
	return &Fetcher{
		pageURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "vendorform"),
	}, nil
}

// Fetch downloads the page and returns its valid vendors. Dropped forms are
// logged, not returned as an error.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Vendor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vendor page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	vendors, err := ParseWithBase(io.LimitReader(resp.Body, maxPage), f.pageURL)
	if vendors == nil && err != nil {
		var entryErr *EntryError
		if !errors.As(err, &entryErr) {
			return nil, err
		}
	}
	if err != nil {
		f.logger.WarnContext(ctx, "dropped vendor forms", "error", err)
	}

	f.logger.InfoContext(ctx, "fetched vendor page", "vendors", len(vendors))
	return vendors, nil
}
