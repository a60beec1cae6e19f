// Package events provides the lifecycle event types and the in-process event
// bus the task runner publishes to.
//
// Events are produced only by the runner, never by task bodies. Consumers
// (the terminal renderer, the status tracker, tests) subscribe to a [Bus] and
// receive every event published after they subscribed, in publication order,
// through their own unbounded FIFO queue.
//
// The primary components are:
//   - Event: a single lifecycle event (task.start, work.progress, ...)
//   - Bus: fan-out publisher with one queue per subscriber
//   - Subscription: a subscriber's queue, readable with Next, Events or All
//   - Handler: callback interface for components that consume events
//
// Subscriber queues are unbounded. That is fine for a CLI-lifetime process;
// long-lived consumers must keep pace or detach with Close.
package events
