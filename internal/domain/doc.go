// Package domain contains the entities the crawler collects: convention
// events, vendors, their social posts and image labels, and the summary of a
// crawl. Entities are plain values with JSON tags so they can be persisted as
// checkpoints and served by the status API.
package domain
