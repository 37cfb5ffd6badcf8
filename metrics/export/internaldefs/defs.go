package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricTokenIssued, Name: "gosession_token_issued_total", Help: "Tokens signed by the lifecycle cache."},
	{ID: goSession.MetricTokenReused, Name: "gosession_token_reused_total", Help: "Requests answered with a fresh cached token."},
	{ID: goSession.MetricTokenReplacedStale, Name: "gosession_token_replaced_stale_total", Help: "Cached tokens replaced inside the refresh buffer."},
	{ID: goSession.MetricTokenReplacedExpired, Name: "gosession_token_replaced_expired_total", Help: "Expired cached tokens replaced."},
	{ID: goSession.MetricTokenRefreshed, Name: "gosession_token_refreshed_total", Help: "Forced token refreshes."},
	{ID: goSession.MetricTokenInvalidated, Name: "gosession_token_invalidated_total", Help: "Invalidations that removed a cached token."},
	{ID: goSession.MetricTokenIssueFailure, Name: "gosession_token_issue_failure_total", Help: "Token signing failures."},
	{ID: goSession.MetricCacheUnavailable, Name: "gosession_cache_unavailable_total", Help: "Operations served without the token cache."},
	{ID: goSession.MetricCacheEvictedCapacity, Name: "gosession_cache_evicted_capacity_total", Help: "Cached tokens evicted to stay under MaxEntries."},
	{ID: goSession.MetricCacheEvictedTTL, Name: "gosession_cache_evicted_ttl_total", Help: "Cached tokens dropped after the hard TTL."},
	{ID: goSession.MetricCacheEvictedExpired, Name: "gosession_cache_evicted_expired_total", Help: "Expired cached tokens removed by the sweeper."},
	{ID: goSession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Bearer tokens accepted."},
	{ID: goSession.MetricVerifyExpired, Name: "gosession_verify_expired_total", Help: "Bearer tokens rejected as expired."},
	{ID: goSession.MetricVerifyMalformed, Name: "gosession_verify_malformed_total", Help: "Bearer tokens rejected as malformed."},
	{ID: goSession.MetricVerifySignatureInvalid, Name: "gosession_verify_signature_invalid_total", Help: "Bearer tokens rejected for a bad signature."},
	{ID: goSession.MetricVerifyRevoked, Name: "gosession_verify_revoked_total", Help: "Superseded bearer tokens rejected in strict mode."},
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: goSession.MetricLoginThrottled, Name: "gosession_login_throttled_total", Help: "Logins refused by the failed-attempt throttle."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout calls."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token refresh requests."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed token refresh requests."},
}

// HistogramDefs lists exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "Bearer token authentication latency."},
}

// HistogramBounds are the upper bounds of the engine latency buckets, in seconds.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside metric names.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_025",
	"inf",
}

// Names of values exported outside the counter table.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped by dispatcher backpressure."
	CacheEntriesName = "gosession_cache_entries"
	CacheEntriesHelp = "Tokens currently held by the lifecycle cache."
)

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
