// Package session manages the lifecycle of scrape sessions. A Manager owns
// the fetch loop for each running session: it waits on the platform's shared
// rate limiter, fetches pages through the retry policy, commits batches to
// the content sink, then advances counters and the resume token in that
// order before persisting. Sessions move pending -> running -> {paused,
// completed, failed, cancelled}, with paused resumable from the persisted
// resume token. A session persisted as running with no in-process owner is a
// crashed session and may be started again from its last committed cursor.
package session
