// Package prometheus renders goSession engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [goSession.Engine] and exposes an
// [http.Handler] suitable for mounting at /metrics. Counters are named
// gosession_*_total; the verification latency histogram is
// gosession_verify_latency_seconds and is only rendered when latency
// histograms are enabled. The exporter never registers with a global
// registry and never mutates engine state.
package prometheus
