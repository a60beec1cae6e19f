// Package timeline reads vendors' social timelines.
//
// Every request passes through a shared [Gate] first, so the process never
// exceeds the configured request rate no matter how many vendor crawls are
// in flight. The service answering 429 anyway is reported as
// [ErrRateLimited], which callers treat as retryable.
package timeline
