package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/concrawl/internal/domain"
	"github.com/phrazzld/concrawl/internal/platform/eventapi"
	"github.com/phrazzld/concrawl/internal/platform/gemini"
	"github.com/phrazzld/concrawl/internal/store"
	"github.com/phrazzld/concrawl/internal/task"
)

// EventSource lists convention events.
type EventSource interface {
	FetchAll(ctx context.Context, progress eventapi.ProgressFunc) ([]domain.ConEvent, error)
}

// VendorSource lists registered vendors.
type VendorSource interface {
	Fetch(ctx context.Context) ([]domain.Vendor, error)
}

// TimelineSource reads a vendor's recent posts.
type TimelineSource interface {
	Timeline(ctx context.Context, handle string, limit int) ([]domain.Post, error)
}

// Deps are the collaborators every crawl task reads through the session's
// ambient context.
type Deps struct {
	Events  EventSource
	Vendors VendorSource

	// Timeline is optional; without it timeline tasks are skipped
	Timeline TimelineSource

	// Classifier is optional; without it classification tasks are skipped
	Classifier gemini.Classifier

	// Checkpoints is read when Resume is set
	Checkpoints store.CheckpointStore
	Resume      bool

	Retry             task.RetryOptions
	VendorConcurrency int
	TimelineLimit     int

	// Now defaults to time.Now
	Now func() time.Time
}

// ErrMissingSource is returned by Validate when a required source is nil.
var ErrMissingSource = errors.New("crawl source not configured")

// Validate checks that the required collaborators are present.
func (d Deps) Validate() error {
	switch {
	case d.Events == nil:
		return fmt.Errorf("%w: events", ErrMissingSource)
	case d.Vendors == nil:
		return fmt.Errorf("%w: vendors", ErrMissingSource)
	case d.Resume && d.Checkpoints == nil:
		return fmt.Errorf("%w: checkpoints are required to resume", ErrMissingSource)
	}
	if d.VendorConcurrency < 1 {
		return task.ErrInvalidConcurrency
	}
	return d.Retry.Validate()
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
