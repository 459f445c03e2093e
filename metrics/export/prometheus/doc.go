// Package prometheus exposes keynotify client metrics to Prometheus.
//
// [NewPrometheusExporter] wraps a [keynotify.Client] in a prometheus.Collector
// registered on a private registry. Counter names follow keynotify_*_total and
// the request latency histogram is keynotify_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount [PrometheusExporter.Handler]
//     or register the exporter themselves.
//   - Mutate client state.
package prometheus
