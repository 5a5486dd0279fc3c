package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
)

// Page is one fetched page of platform items
type Page struct {
	// Items are the records carried by this page
	Items []models.Item
	// NextResumeToken is the opaque cursor for the next page. Empty when
	// HasMore is false.
	NextResumeToken string
	// HasMore is false once the platform's pagination is exhausted
	HasMore bool
}

// Client fetches successive pages from one platform for one query. The core
// treats implementations as opaque: errors are classified and retried by the
// retry policy, and the resume token round-trips through the session store.
type Client interface {
	// Name returns the platform name (reddit, hackernews)
	Name() string
	// FetchPage fetches the page after resumeToken. An empty token means the
	// first page.
	FetchPage(ctx context.Context, resumeToken string, pageSize int) (*Page, error)
}

// httpJSON is the shared HTTP helper for platform clients: it performs GET
// requests, decodes JSON, and maps failures onto the errors taxonomy.
type httpJSON struct {
	client    *http.Client
	userAgent string
	logger    logger.Logger
}

func newHTTPJSON(timeout time.Duration, userAgent string, log logger.Logger) *httpJSON {
	if log == nil {
		log = logger.GetLogger()
	}
	return &httpJSON{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    log,
	}
}

// get fetches url and decodes the JSON response body into target
func (h *httpJSON) get(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeParsing, 0, fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		h.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		// Timeouts and connection failures are transient
		return errs.New(errs.ErrorTypeNetwork, 0, fmt.Sprintf("network error: %v", err))
	}
	defer resp.Body.Close()

	logger.LogRequest(http.MethodGet, url, resp.StatusCode, float64(duration.Milliseconds()))

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		apiErr := errs.FromStatusCode(resp.StatusCode, http.StatusText(resp.StatusCode))
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, fmt.Sprintf("decoding response: %v", err))
	}

	return nil
}

// parseRetryAfter interprets a Retry-After header value, either delay-seconds
// or an HTTP date. Returns zero when absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
