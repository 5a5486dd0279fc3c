// Package progress tracks scraping throughput for a session: items per second
// over a rolling window, estimated time remaining when a target is known, and
// milestone crossings (25/50/75/100 percent) that fire exactly once.
package progress
