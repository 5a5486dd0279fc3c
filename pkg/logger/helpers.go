package logger

// LogRequest logs HTTP request information
func LogRequest(method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	if statusCode >= 200 && statusCode < 300 {
		GetLogger().DebugWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		GetLogger().WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		GetLogger().ErrorWithFields("HTTP request server error", fields)
	}
}

// LogFetch logs page fetch operations during a scrape session
func LogFetch(sessionID, platform string, itemCount int, hasMore bool, err error) {
	fields := map[string]interface{}{
		"session_id": sessionID,
		"platform":   platform,
		"item_count": itemCount,
		"has_more":   hasMore,
	}

	log := GetLogger().WithFields(fields)

	if err != nil {
		log.WithError(err).Error("Page fetch failed")
	} else {
		log.Debug("Page fetched")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(platform string, waitSeconds float64) {
	GetLogger().WithFields(map[string]interface{}{
		"platform":     platform,
		"wait_seconds": waitSeconds,
		"action":       "rate_limited",
	}).Warn("Rate limit reached, backing off")
}
