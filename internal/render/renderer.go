// Package render prints a session's progress as styled terminal lines.
//
// The renderer is a pure event consumer: it subscribes to the session bus
// and never influences execution.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/phrazzld/concrawl/internal/events"
	"github.com/phrazzld/concrawl/internal/tracker"
)

// Options controls how much the renderer prints.
type Options struct {
	// Verbose also prints task starts and work progress
	Verbose bool

	// Details prints the wrapped error chain under each failure
	Details bool
}

// Renderer writes one line per interesting event. It implements
// events.Handler.
type Renderer struct {
	out    io.Writer
	opts   Options
	styles Styles

	mu      sync.Mutex
	started map[string]time.Time
}

var _ events.Handler = (*Renderer)(nil)

// New creates a renderer writing to out. The color profile is detected from
// out, so plain buffers get unstyled text.
func New(out io.Writer, opts Options) *Renderer {
	return &Renderer{
		out:     out,
		opts:    opts,
		styles:  NewStyles(lipgloss.NewRenderer(out)),
		started: make(map[string]time.Time),
	}
}

// Watch renders the subscription until it is drained or ctx is done.
func (r *Renderer) Watch(ctx context.Context, sub *events.Subscription) {
	sub.Dispatch(ctx, r)
}

// HandleEvent renders a single event.
func (r *Renderer) HandleEvent(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case events.TaskStart:
		r.started[ev.Task] = ev.Time
		if r.opts.Verbose {
			r.line(r.styles.Running.Render("▸ " + ev.Task))
		}
	case events.TaskEnd:
		r.renderEnd(ev)
	case events.WorkStart:
		if ev.Description != "" {
			r.line(r.styles.Work.Render("  " + ev.Task + ": " + ev.Description))
		}
	case events.WorkProgress:
		if !r.opts.Verbose {
			return
		}
		switch {
		case ev.Description != "":
			r.line(r.styles.Work.Render("  " + ev.Task + ": " + ev.Description))
		case ev.Value != nil:
			r.line(r.styles.Work.Render(fmt.Sprintf("  %s: %v", ev.Task, ev.Value)))
		}
	}
}

func (r *Renderer) renderEnd(ev events.Event) {
	elapsed := ""
	if start, ok := r.started[ev.Task]; ok && !ev.Time.IsZero() {
		elapsed = " (" + ev.Time.Sub(start).Round(time.Millisecond).String() + ")"
		delete(r.started, ev.Task)
	}

	res := ev.Result
	switch {
	case res == nil || res.OK && !res.Skipped:
		r.line(r.styles.Done.Render("✓ " + ev.Task + elapsed))
	case res.OK:
		r.line(r.styles.Skipped.Render("↷ " + ev.Task + " skipped"))
	default:
		msg := "failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		r.line(r.styles.Failed.Render("✗ " + ev.Task + ": " + msg))
		if r.opts.Details && res.Err != nil {
			for _, cause := range chain(res.Err)[1:] {
				r.line(r.styles.Detail.Render("caused by: " + cause))
			}
		}
	}
}

func (r *Renderer) line(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// chain returns the messages of err and every error it wraps, depth first.
func chain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, e.Error())
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		default:
			walk(errors.Unwrap(e))
		}
	}
	walk(err)
	return out
}

// Summary writes a table of final task states grouped by status.
func Summary(out io.Writer, states []tracker.TaskState) {
	styles := NewStyles(lipgloss.NewRenderer(out))

	groups := []struct {
		status tracker.Status
		title  string
		style  lipgloss.Style
	}{
		{tracker.StatusError, "Failed", styles.Failed},
		{tracker.StatusSkipped, "Skipped", styles.Skipped},
		{tracker.StatusDone, "Done", styles.Done},
		{tracker.StatusRunning, "Unfinished", styles.Running},
		{tracker.StatusPending, "Never started", styles.Skipped},
	}

	for _, g := range groups {
		var names []string
		for _, s := range states {
			if s.Status == g.status {
				names = append(names, s.Name)
			}
		}
		if len(names) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(out, styles.Heading.Render(fmt.Sprintf("%s (%d)", g.title, len(names))))
		_, _ = fmt.Fprintln(out, g.style.Render("  "+strings.Join(names, "\n  ")))
	}
}
