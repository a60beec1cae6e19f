// Package postgres provides the PostgreSQL implementation of
// store.CheckpointStore, the database connection helper and the embedded
// goose migrations that create its schema.
package postgres
