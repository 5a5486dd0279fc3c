// Package storage persists scraped forum content to SQLite. The SQLiteSink
// commits each fetched page as one transaction with primary-key upserts, so
// re-committing a page after a crash-resume is harmless.
package storage
