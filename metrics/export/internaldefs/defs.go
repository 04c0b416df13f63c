package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/gatekeep"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   gatekeep.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   gatekeep.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: gatekeep.MetricAuthSuccess, Name: "gatekeep_auth_success_total", Help: "Requests that resolved to an identity."},
	{ID: gatekeep.MetricAuthMissingToken, Name: "gatekeep_auth_missing_token_total", Help: "Protected requests without an Authorization header."},
	{ID: gatekeep.MetricAuthMalformedToken, Name: "gatekeep_auth_malformed_token_total", Help: "Requests with a malformed Authorization header or token."},
	{ID: gatekeep.MetricAuthTokenNotFound, Name: "gatekeep_auth_token_not_found_total", Help: "Opaque tokens with no live session."},
	{ID: gatekeep.MetricAuthInvalidToken, Name: "gatekeep_auth_invalid_token_total", Help: "Signed tokens that failed verification."},
	{ID: gatekeep.MetricAuthTokenExpired, Name: "gatekeep_auth_token_expired_total", Help: "Signed tokens past their expiry."},
	{ID: gatekeep.MetricAuthStorageError, Name: "gatekeep_auth_storage_error_total", Help: "Identity store failures during authentication."},
	{ID: gatekeep.MetricRoleDenied, Name: "gatekeep_role_denied_total", Help: "Requests rejected by a role check."},
	{ID: gatekeep.MetricOwnerDenied, Name: "gatekeep_owner_denied_total", Help: "Requests rejected by an ownership check."},
	{ID: gatekeep.MetricRateLimitHit, Name: "gatekeep_rate_limit_hit_total", Help: "Requests rejected by the rate limiter."},
	{ID: gatekeep.MetricRateLimitError, Name: "gatekeep_rate_limit_error_total", Help: "Rate limiter backend failures."},
	{ID: gatekeep.MetricSessionIssued, Name: "gatekeep_session_issued_total", Help: "Tokens issued at login."},
	{ID: gatekeep.MetricSessionRevoked, Name: "gatekeep_session_revoked_total", Help: "Tokens revoked at logout."},
	{ID: gatekeep.MetricRenewSuccess, Name: "gatekeep_renew_success_total", Help: "Sliding-expiration renewals that refreshed a TTL."},
	{ID: gatekeep.MetricRenewFailure, Name: "gatekeep_renew_failure_total", Help: "Renewals that failed, found no session, or were dropped."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: gatekeep.MetricValidateLatency, Name: "gatekeep_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the Prometheus le labels matching gatekeep.LatencyBounds, in
// seconds, followed by "+Inf".
var HistogramBounds = boundLabels(func(sec string) string { return sec }, "+Inf")

// HistogramBoundSuffix are instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = boundLabels(func(sec string) string {
	return strings.ReplaceAll(sec, ".", "_")
}, "inf")

func boundLabels(format func(string) string, overflow string) []string {
	out := make([]string, 0, gatekeep.LatencyBucketCount)
	for _, bound := range gatekeep.LatencyBounds {
		out = append(out, format(strconv.FormatFloat(bound.Seconds(), 'f', -1, 64)))
	}
	return append(out, overflow)
}

// Buckets is one histogram's per-bucket counts.
type Buckets [gatekeep.LatencyBucketCount]uint64

// NormalizeBuckets copies raw into a fixed bucket array; missing buckets are zero.
func NormalizeBuckets(raw []uint64) Buckets {
	var out Buckets
	copy(out[:], raw)
	return out
}

// Cumulative converts per-bucket counts into the running totals exporters publish.
// The last element is the sample count.
func (b Buckets) Cumulative() Buckets {
	var (
		out     Buckets
		running uint64
	)
	for i, n := range b {
		running += n
		out[i] = running
	}
	return out
}
