// Package store defines the checkpoint persistence contract used by the crawl
// engine, an in-memory implementation, and the adapter that plugs a
// CheckpointStore into the task runner as its Persister.
//
// The PostgreSQL implementation lives in internal/platform/postgres.
package store
