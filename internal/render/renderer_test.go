package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/concrawl/internal/events"
	"github.com/phrazzld/concrawl/internal/tracker"
	"github.com/stretchr/testify/assert"
)

func render(opts Options, evs ...events.Event) string {
	var buf bytes.Buffer
	r := New(&buf, opts)
	for _, ev := range evs {
		r.HandleEvent(context.Background(), ev)
	}
	return buf.String()
}

func TestRendererLines(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	out := render(Options{},
		events.Event{Type: events.TaskStart, Task: "events", Time: t0},
		events.Event{Type: events.WorkStart, Task: "events", Description: "fetching listing"},
		events.Event{Type: events.WorkProgress, Task: "events", Value: 3},
		events.Event{Type: events.TaskEnd, Task: "events", Time: t0.Add(1500 * time.Millisecond),
			Result: &events.Outcome{OK: true}},
		events.Event{Type: events.TaskEnd, Task: "vendor:v-1", Result: &events.Outcome{OK: true, Skipped: true}},
		events.Event{Type: events.TaskEnd, Task: "vendor:v-2", Result: &events.Outcome{Err: errors.New("timeout")}},
	)

	assert.Contains(t, out, "events: fetching listing")
	assert.Contains(t, out, "✓ events (1.5s)")
	assert.Contains(t, out, "↷ vendor:v-1 skipped")
	assert.Contains(t, out, "✗ vendor:v-2: timeout")
	assert.NotContains(t, out, "▸")
	assert.NotContains(t, out, "events: 3")
	assert.NotContains(t, out, "\x1b[", "a buffer gets no ANSI styling")
}

func TestRendererVerbose(t *testing.T) {
	t.Parallel()

	out := render(Options{Verbose: true},
		events.Event{Type: events.TaskStart, Task: "events"},
		events.Event{Type: events.WorkProgress, Task: "events", Value: 3},
		events.Event{Type: events.WorkProgress, Task: "events", Description: "page 2"},
	)

	assert.Contains(t, out, "▸ events")
	assert.Contains(t, out, "events: 3")
	assert.Contains(t, out, "events: page 2")
}

func TestRendererDetails(t *testing.T) {
	t.Parallel()

	root := errors.New("connection reset")
	err := fmt.Errorf("fetch timeline: %w", root)
	out := render(Options{Details: true},
		events.Event{Type: events.TaskEnd, Task: "timeline:inkfox", Result: &events.Outcome{Err: err}},
	)

	assert.Contains(t, out, "✗ timeline:inkfox: fetch timeline: connection reset")
	assert.Contains(t, out, "caused by: connection reset")
}

func TestChainJoined(t *testing.T) {
	t.Parallel()

	joined := errors.Join(errors.New("a"), errors.New("b"))
	assert.Equal(t, []string{"a\nb", "a", "b"}, chain(joined))
	assert.Nil(t, chain(nil))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Summary(&buf, []tracker.TaskState{
		{Name: "root", Status: tracker.StatusDone},
		{Name: "vendor:v-1", Status: tracker.StatusError},
		{Name: "vendor:v-2", Status: tracker.StatusDone},
	})
	out := buf.String()

	assert.Contains(t, out, "Failed (1)")
	assert.Contains(t, out, "Done (2)")
	assert.NotContains(t, out, "Skipped")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Failed")), bytes.Index(buf.Bytes(), []byte("Done")))
	assert.Contains(t, out, "vendor:v-2")
}
