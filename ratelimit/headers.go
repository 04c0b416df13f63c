package ratelimit

import (
	"math"
	"net/http"
	"strconv"
)

// Response headers written by [WriteHeaders].
const (
	// HeaderLimit carries the ceiling that applied to the request.
	HeaderLimit = "X-RateLimit-Limit"
	// HeaderRemaining carries the requests left in the current window.
	HeaderRemaining = "X-RateLimit-Remaining"
	// HeaderReset carries the window end as Unix seconds.
	HeaderReset = "X-RateLimit-Reset"
	// HeaderRetryAfter carries whole seconds until the window resets; set only on rejection.
	HeaderRetryAfter = "Retry-After"
)

// WriteHeaders sets the X-RateLimit-* headers, plus Retry-After on rejection.
func WriteHeaders(h http.Header, d Decision) {
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set(HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds(d)))
	}
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below 1.
func RetryAfterSeconds(d Decision) int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
