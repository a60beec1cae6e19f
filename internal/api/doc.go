// Package api serves the read-only status API of a running crawl.
//
// The API exposes the task tracker's view of the session:
//
//	GET /healthz        liveness probe
//	GET /tasks          every task in first-seen order, with status counts
//	GET /tasks/{name}   a single task
//
// Error messages carried by task states are passed through the redact
// package before they leave the process.
package api
