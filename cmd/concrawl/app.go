package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/concrawl/internal/api"
	"github.com/phrazzld/concrawl/internal/config"
	"github.com/phrazzld/concrawl/internal/crawl"
	"github.com/phrazzld/concrawl/internal/domain"
	"github.com/phrazzld/concrawl/internal/events"
	"github.com/phrazzld/concrawl/internal/platform/eventapi"
	"github.com/phrazzld/concrawl/internal/platform/gemini"
	"github.com/phrazzld/concrawl/internal/platform/postgres"
	"github.com/phrazzld/concrawl/internal/platform/timeline"
	"github.com/phrazzld/concrawl/internal/platform/vendorform"
	"github.com/phrazzld/concrawl/internal/render"
	"github.com/phrazzld/concrawl/internal/store"
	"github.com/phrazzld/concrawl/internal/task"
	"github.com/phrazzld/concrawl/internal/tracker"
	"github.com/sourcegraph/conc"
)

// statusShutdownTimeout bounds the graceful shutdown of the status API.
const statusShutdownTimeout = 10 * time.Second

// application holds the wired collaborators of one crawl.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	checkpoints store.CheckpointStore
	deps        crawl.Deps
}

// runOptions are the per-invocation crawl flags.
type runOptions struct {
	resume  bool
	verbose bool
	details bool
}

// newApplication opens the checkpoint store and builds every source client
// from cfg. Optional collaborators are left nil when unconfigured.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runOptions) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, "up", logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		app.db = db
		app.checkpoints = postgres.NewPostgresCheckpointStore(db, logger)
		logger.Info("using database checkpoints", "database_url", postgres.MaskURL(cfg.Database.URL))
	} else {
		app.checkpoints = store.NewMemoryCheckpointStore()
		if opts.resume {
			logger.Warn("resume requested without database.url; nothing to resume from")
		}
	}

	if err := app.buildDeps(ctx, opts); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

func (app *application) buildDeps(ctx context.Context, opts runOptions) error {
	cfg := app.config

	eventsClient, err := eventapi.NewClient(cfg.Crawl.EventAPIURL, cfg.Crawl.PageSize, cfg.Crawl.RequestTimeout, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create event api client: %w", err)
	}
	vendors, err := vendorform.NewFetcher(cfg.Crawl.VendorFormURL, cfg.Crawl.RequestTimeout, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create vendor page fetcher: %w", err)
	}

	app.deps = crawl.Deps{
		Events:      eventsClient,
		Vendors:     vendors,
		Checkpoints: app.checkpoints,
		Resume:      opts.resume,
		Retry: task.RetryOptions{
			Retries: cfg.Crawl.Retries,
			Backoff: task.BackoffKind(cfg.Crawl.Backoff),
			Delay:   cfg.Crawl.RetryDelay,
		},
		VendorConcurrency: cfg.Crawl.VendorConcurrency,
		TimelineLimit:     cfg.Crawl.TimelineLimit,
	}

	if cfg.Timeline.BaseURL != "" {
		gate := timeline.NewGate(cfg.Timeline.RequestsPerSecond, cfg.Timeline.Burst)
		tl, err := timeline.NewClient(cfg.Timeline.BaseURL, cfg.Timeline.Token, gate, cfg.Crawl.RequestTimeout, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create timeline client: %w", err)
		}
		app.deps.Timeline = tl
	} else {
		app.logger.Info("timeline.base_url not set; timeline tasks will be skipped")
	}

	if cfg.LLM.GeminiAPIKey != "" {
		classifier, err := gemini.NewClassifier(ctx, app.logger, cfg.LLM)
		if err != nil {
			return fmt.Errorf("failed to create image classifier: %w", err)
		}
		app.deps.Classifier = classifier
	} else {
		app.logger.Info("llm.gemini_api_key not set; classification tasks will be skipped")
	}

	return app.deps.Validate()
}

// run executes the crawl, rendering progress to out, and returns the final
// summary. The status API, when configured, serves for the whole run.
func (app *application) run(ctx context.Context, out io.Writer, opts runOptions) (domain.CrawlSummary, error) {
	sess := task.NewSession(task.Options{
		Context:   app.deps,
		Persister: store.NewPersister(app.checkpoints),
		Logger:    app.logger,
	})
	defer sess.Close()

	log := app.logger.With("session_id", sess.ID())
	log.Info("crawl started")

	tr := tracker.New()
	rd := render.New(out, render.Options{Verbose: opts.verbose, Details: opts.details})
	ex := task.Run(ctx, sess, crawl.Root(sess.ID()))

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		ex.Events().Dispatch(context.Background(), events.Handlers{tr, rd})
	})
	if addr := app.config.Server.StatusAddr; addr != "" {
		router := api.NewRouter(api.NewStatusHandler(sess.ID(), tr), log)
		wg.Go(func() { app.serveStatus(addr, router, ex.Done(), log) })
	}

	res := ex.Wait()
	wg.Wait()

	_, _ = fmt.Fprintln(out)
	render.Summary(out, tr.Snapshot())

	summary, err := res.Unwrap()
	if err != nil {
		log.Error("crawl failed", "error", err)
		return summary, fmt.Errorf("crawl failed: %w", err)
	}
	log.Info("crawl finished",
		"events", summary.Events,
		"vendors", summary.Vendors,
		"posts", summary.Posts,
		"labels", summary.Labels,
		"failures", summary.Failures,
		"duration_ms", summary.FinishedAt.Sub(summary.StartedAt).Milliseconds())
	return summary, nil
}

// serveStatus serves the status API until done is closed, then shuts the
// server down gracefully.
func (app *application) serveStatus(addr string, router http.Handler, done <-chan struct{}, log *slog.Logger) {
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	failed := make(chan struct{})
	go func() {
		log.Info("starting status server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server failed", "error", err)
			close(failed)
		}
	}()

	select {
	case <-done:
	case <-failed:
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("status server shutdown failed", "error", err)
		return
	}
	log.Info("status server stopped")
}

// cleanup releases the database connection, if any.
func (app *application) cleanup() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}
