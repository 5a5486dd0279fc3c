// Package ratelimit provides sliding window rate limiting for outbound
// platform requests.
//
// A SlidingWindow keeps a log of request timestamps and allows a new request
// only while fewer than the configured maximum fall inside the trailing
// window. A MultiLimiter composes per-second, per-minute and per-hour windows
// for one platform: a request proceeds only when every window allows it, so
// concurrent sessions against the same platform share a single budget.
//
// Limiter state is process-lifetime only. Losing it on restart just makes the
// limiter briefly more permissive; the real limits are enforced server-side.
package ratelimit
