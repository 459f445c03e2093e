package internaldefs

import (
	"github.com/MrEthical07/keynotify"
)

// CounterDef defines a public type used by keynotify APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   keynotify.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by keynotify APIs.
type HistogramDef struct {
	ID   keynotify.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for events the audit dispatcher could not queue.
const AuditDroppedName = "keynotify_audit_dropped_total"

// CounterDefs lists every client counter in export order.
var CounterDefs = []CounterDef{
	{ID: keynotify.MetricRequestSuccess, Name: "keynotify_request_success_total", Help: "API calls that resolved."},
	{ID: keynotify.MetricRequestFailure, Name: "keynotify_request_failure_total", Help: "API calls that rejected."},
	{ID: keynotify.MetricRequestRetry, Name: "keynotify_request_retry_total", Help: "Individual re-sends after a transient failure."},
	{ID: keynotify.MetricRequestExhausted, Name: "keynotify_request_exhausted_total", Help: "API calls that failed after every retry."},
	{ID: keynotify.MetricEnvelopeFailure, Name: "keynotify_envelope_failure_total", Help: "Successful HTTP responses carrying an error code."},
	{ID: keynotify.MetricUnauthorized, Name: "keynotify_unauthorized_total", Help: "Responses with status 401."},
	{ID: keynotify.MetricSessionRevoked, Name: "keynotify_session_revoked_total", Help: "Revocations applied to the local session."},
	{ID: keynotify.MetricLogin, Name: "keynotify_login_total", Help: "Tokens stored by a successful login."},
	{ID: keynotify.MetricLoginFailure, Name: "keynotify_login_failure_total", Help: "Rejected login-or-register submissions."},
	{ID: keynotify.MetricLogout, Name: "keynotify_logout_total", Help: "Explicit logouts."},
	{ID: keynotify.MetricVerifySuccess, Name: "keynotify_verify_success_total", Help: "Startup verifications confirmed by the server."},
	{ID: keynotify.MetricVerifyRejected, Name: "keynotify_verify_rejected_total", Help: "Startup verifications that purged the stored token."},
	{ID: keynotify.MetricVerifyDegraded, Name: "keynotify_verify_degraded_total", Help: "Startup verifications that kept the token after a transient failure."},
	{ID: keynotify.MetricUsernameCheck, Name: "keynotify_username_check_total", Help: "Username registration checks issued by the login flow."},
	{ID: keynotify.MetricUsernameCheckStale, Name: "keynotify_username_check_stale_total", Help: "Username check responses discarded as out of date."},
}

// HistogramDefs lists every latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: keynotify.MetricRequestLatency, Name: "keynotify_request_latency_seconds", Help: "Per-call API latency including retries."},
}

// HistogramBounds are the bucket upper bounds in seconds, as rendered in le labels.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramUpperBounds mirrors HistogramBounds without the +Inf bucket.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket for exporters that cannot carry an le label.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero filling missing entries.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last entry is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// ApproximateSum estimates the observed total in seconds from bucket midpoints.
// The +Inf bucket is counted at the last finite bound.
func ApproximateSum(raw [8]uint64) float64 {
	var sum float64
	lower := 0.0
	for i, n := range raw {
		upper := HistogramUpperBounds[len(HistogramUpperBounds)-1]
		if i < len(HistogramUpperBounds) {
			upper = HistogramUpperBounds[i]
		}
		sum += float64(n) * (lower + upper) / 2
		lower = upper
	}
	return sum
}
