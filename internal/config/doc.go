// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings the crawler, its external clients and the status
// server need, while keeping configuration details separate from the pipeline.
package config
