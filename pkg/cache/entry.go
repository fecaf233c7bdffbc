package cache

import (
	"time"
)

// CacheEntry is one stored list response together with the validators the
// client replays on the next request for the same page.
type CacheEntry struct {
	Data       []byte `json:"data"`
	StatusCode int    `json:"status_code"`

	// Validators sent back as If-None-Match / If-Modified-Since.
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Expires bounds how long the page may be replayed after a 304.
	Expires  time.Time `json:"expires"`
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired reports whether the entry is past its Expires moment.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the remaining lifetime, never negative.
func (e *CacheEntry) TTL() time.Duration {
	if ttl := time.Until(e.Expires); ttl > 0 {
		return ttl
	}
	return 0
}
