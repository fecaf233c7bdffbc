package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when the backend sends no Expires header.
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry builds a CacheEntry from an already-read response.
// fallbackTTL applies when the Expires header is missing or invalid; values
// <= 0 select DefaultTTL.
func ResponseToEntry(status int, header http.Header, body []byte, fallbackTTL time.Duration) *CacheEntry {
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultTTL
	}

	data := make([]byte, len(body))
	copy(data, body)

	entry := &CacheEntry{
		Data:       data,
		ETag:       header.Get("ETag"),
		StatusCode: status,
		CachedAt:   time.Now(),
		Expires:    parseExpires(header, fallbackTTL),
	}

	if lastModStr := header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry
}

// parseExpires parses the Expires header.
// Returns now + fallback when the header is absent or unparseable.
func parseExpires(headers http.Header, fallback time.Duration) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(fallback)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(fallback)
	}

	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}

// ShouldMakeConditionalRequest reports whether entry carries a validator
// (ETag or Last-Modified) usable for a conditional request.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	return entry.ETag != "" || !entry.LastModified.IsZero()
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since headers
// to the request if the cache entry supports conditional requests.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}

	// ETag wins over Last-Modified
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
