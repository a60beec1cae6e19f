package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/concrawl/internal/domain"
	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/phrazzld/concrawl/internal/store"
	"github.com/phrazzld/concrawl/internal/task"
)

// Checkpoint collections written by the pipeline.
const (
	CollectionEvents    = "events"
	CollectionVendors   = "vendors"
	CollectionTimelines = "timelines"
	CollectionSummaries = "summaries"
	CollectionReports   = "reports"
)

// TimelineGatewayKey serializes requests to the timeline API across every
// vendor tree: the gateway allows one request in flight per token.
var TimelineGatewayKey = task.Key{"timeline"}

// Task names.
const (
	EventsTaskName  = "events"
	VendorsTaskName = "vendors"
	CrawlTaskName   = "crawl-vendors"
	RootTaskName    = "crawl"
)

// PageProgress is the progress value reported while the event listing is
// read.
type PageProgress struct {
	Pages  int `json:"pages"`
	Events int `json:"events"`
}

// FetchEvents reads the whole event listing.
func FetchEvents() task.Task[[]domain.ConEvent] {
	return task.New(EventsTaskName, fetchEvents).
		WithPersist(task.PersistSpec{Collection: CollectionEvents, Key: "all"})
}

func fetchEvents(y *task.Yielder) task.Result[[]domain.ConEvent] {
	d, err := task.Ambient[Deps](y)
	if err != nil {
		return task.Err[[]domain.ConEvent](err)
	}
	if events, ok := restore[[]domain.ConEvent](y, d, CollectionEvents, "all"); ok {
		return task.Ok(events)
	}

	return task.From[[]domain.ConEvent](task.Do(y, func(ctx context.Context, w task.WorkContext) ([]domain.ConEvent, error) {
		w.Description("fetching event listing")
		return task.ExecuteWithRetry(ctx, d.Retry, func(ctx context.Context) ([]domain.ConEvent, error) {
			return d.Events.FetchAll(ctx, func(pages, events int) {
				w.Progress(PageProgress{Pages: pages, Events: events})
			})
		})
	}))
}

// FetchVendors reads the vendor registration page.
func FetchVendors() task.Task[[]domain.Vendor] {
	return task.New(VendorsTaskName, fetchVendors).
		WithPersist(task.PersistSpec{Collection: CollectionVendors, Key: "all"})
}

func fetchVendors(y *task.Yielder) task.Result[[]domain.Vendor] {
	d, err := task.Ambient[Deps](y)
	if err != nil {
		return task.Err[[]domain.Vendor](err)
	}
	if vendors, ok := restore[[]domain.Vendor](y, d, CollectionVendors, "all"); ok {
		return task.Ok(vendors)
	}

	return task.From[[]domain.Vendor](task.Do(y, func(ctx context.Context, w task.WorkContext) ([]domain.Vendor, error) {
		w.Description("reading vendor page")
		return task.ExecuteWithRetry(ctx, d.Retry, d.Vendors.Fetch)
	}))
}

// Timeline reads the posts of one social handle. Readers of the same handle
// share one run; requests for different handles take turns on
// TimelineGatewayKey.
func Timeline(handle string) task.Task[[]domain.Post] {
	return task.New("timeline:"+handle, func(y *task.Yielder) task.Result[[]domain.Post] {
		d, err := task.Ambient[Deps](y)
		if err != nil {
			return task.Err[[]domain.Post](err)
		}
		if d.Timeline == nil {
			return task.Skip[[]domain.Post]()
		}
		if posts, ok := restore[[]domain.Post](y, d, CollectionTimelines, handle); ok {
			return task.Ok(posts)
		}

		posts, err := task.WithLock(y, TimelineGatewayKey, func() ([]domain.Post, error) {
			return task.Do(y, func(ctx context.Context, w task.WorkContext) ([]domain.Post, error) {
				w.Description("reading @" + handle)
				return task.ExecuteWithRetry(ctx, d.Retry, func(ctx context.Context) ([]domain.Post, error) {
					return d.Timeline.Timeline(ctx, handle, d.TimelineLimit)
				})
			})
		})
		return task.From[[]domain.Post](posts, err)
	}).WithPersist(task.PersistSpec{Collection: CollectionTimelines, Key: handle})
}

// Classify labels one image. Classification is not retried.
func Classify(imageURL string) task.Task[domain.ImageLabel] {
	return task.New("classify:"+imageURL, func(y *task.Yielder) task.Result[domain.ImageLabel] {
		d, err := task.Ambient[Deps](y)
		if err != nil {
			return task.Err[domain.ImageLabel](err)
		}
		if d.Classifier == nil {
			return task.Skip[domain.ImageLabel]()
		}
		return task.From[domain.ImageLabel](task.Do(y, func(ctx context.Context, w task.WorkContext) (domain.ImageLabel, error) {
			w.Description("classifying " + imageURL)
			return d.Classifier.Classify(ctx, imageURL)
		}))
	})
}

// VendorTree collects everything for one vendor: its timeline, then a label
// for every image on the form or in the posts. Sub-task failures are recorded
// in the report; the tree itself only fails on a missing context.
func VendorTree(v domain.Vendor) task.Task[domain.VendorReport] {
	return task.New("vendor:"+v.ID, func(y *task.Yielder) task.Result[domain.VendorReport] {
		if _, err := task.Ambient[Deps](y); err != nil {
			return task.Err[domain.VendorReport](err)
		}

		report := domain.VendorReport{Vendor: v}
		images := slices.Clone(v.Images)

		if v.HasTimeline() {
			posts, err := task.Await(y, Timeline(v.Handle))
			if err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("timeline @%s: %v", v.Handle, err))
			}
			report.Posts = posts
			for _, p := range posts {
				images = append(images, p.Media...)
			}
		}

		images = dedupe(images)
		if len(images) == 0 {
			return task.Ok(report)
		}

		classify := make([]task.Task[domain.ImageLabel], len(images))
		for i, img := range images {
			classify[i] = Classify(img)
		}
		for i, r := range task.Gather(y, classify...) {
			switch {
			case !r.OK():
				report.Failures = append(report.Failures, fmt.Sprintf("classify %s: %v", images[i], r.Err()))
			case r.Skipped():
			default:
				report.Labels = append(report.Labels, r.Data())
			}
		}
		return task.Ok(report)
	})
}

// CrawlVendors runs a vendor tree per vendor with bounded concurrency. A
// failed tree is reported with its error instead of failing the crawl.
func CrawlVendors() task.Task[[]domain.VendorReport] {
	return task.New(CrawlTaskName, func(y *task.Yielder) task.Result[[]domain.VendorReport] {
		d, err := task.Ambient[Deps](y)
		if err != nil {
			return task.Err[[]domain.VendorReport](err)
		}
		vendors, err := task.Await(y, FetchVendors())
		if err != nil {
			return task.Err[[]domain.VendorReport](fmt.Errorf("vendors: %w", err))
		}

		trees := make([]task.Task[domain.VendorReport], len(vendors))
		for i, v := range vendors {
			trees[i] = VendorTree(v)
		}
		results, err := task.Bounded(y, d.VendorConcurrency, trees...)
		if err != nil {
			return task.Err[[]domain.VendorReport](err)
		}

		reports := make([]domain.VendorReport, len(results))
		for i, r := range results {
			if r.OK() {
				reports[i] = r.Data()
				continue
			}
			reports[i] = domain.VendorReport{Vendor: vendors[i], Failures: []string{r.Err().Error()}}
		}
		return task.Ok(reports)
	})
}

// Root is the whole crawl: the event listing, then every vendor. A failed
// event listing is counted in the summary; failing to list vendors fails the
// crawl.
func Root(sessionID uuid.UUID) task.Task[domain.CrawlSummary] {
	return task.New(RootTaskName, func(y *task.Yielder) task.Result[domain.CrawlSummary] {
		d, err := task.Ambient[Deps](y)
		if err != nil {
			return task.Err[domain.CrawlSummary](err)
		}
		summary := domain.CrawlSummary{SessionID: sessionID, StartedAt: d.now()}

		events, err := task.Await(y, FetchEvents())
		if err != nil {
			summary.Failures++
		}
		summary.Events = len(events)

		reports, err := task.Await(y, CrawlVendors())
		if err != nil {
			return task.Err[domain.CrawlSummary](err)
		}
		for _, r := range reports {
			summary.Add(r)
		}
		if err := saveReports(y, d, reports); err != nil {
			return task.Err[domain.CrawlSummary](fmt.Errorf("save vendor reports: %w", err))
		}

		summary.FinishedAt = d.now()
		return task.Ok(summary)
	}).WithPersist(task.PersistSpec{Collection: CollectionSummaries, Key: sessionID.String()})
}

// saveReports checkpoints every vendor report in one batch, keyed by vendor
// ID.
func saveReports(y *task.Yielder, d Deps, reports []domain.VendorReport) error {
	if d.Checkpoints == nil || len(reports) == 0 {
		return nil
	}
	_, err := task.Do(y, func(ctx context.Context, w task.WorkContext) (int, error) {
		w.Description(fmt.Sprintf("saving %d vendor reports", len(reports)))
		cps := make([]*store.Checkpoint, len(reports))
		for i, r := range reports {
			cp, err := store.NewCheckpoint(CollectionReports, r.Vendor.ID, r)
			if err != nil {
				return 0, err
			}
			cps[i] = cp
		}
		return len(cps), store.SaveAll(ctx, d.Checkpoints, cps)
	})
	return err
}

type restored[T any] struct {
	value T
	ok    bool
}

// restore returns the checkpointed value of collection/key when resuming.
// A checkpoint that cannot be read is logged and treated as absent.
func restore[T any](y *task.Yielder, d Deps, collection, key string) (T, bool) {
	if !d.Resume || d.Checkpoints == nil {
		var zero T
		return zero, false
	}
	log := slog.Default()
	r, err := task.Do(y, func(ctx context.Context, w task.WorkContext) (restored[T], error) {
		log = logger.FromContext(ctx)
		w.Description("restoring " + collection + "/" + key)
		v, ok, err := store.Load[T](ctx, d.Checkpoints, collection, key)
		if err != nil {
			log.WarnContext(ctx, "ignoring unreadable checkpoint",
				"collection", collection,
				"key", key,
				"error", err)
			return restored[T]{}, nil
		}
		return restored[T]{value: v, ok: ok}, nil
	})
	if err != nil {
		log.Warn("checkpoint restore failed, fetching instead",
			"collection", collection,
			"key", key,
			"error", err)
		var zero T
		return zero, false
	}
	return r.value, r.ok
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
