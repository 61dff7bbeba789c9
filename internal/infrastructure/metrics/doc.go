// Package metrics exposes expvar-published counters and gauges used by the
// stepflow runtime (entity graph, flow sessions, import/export and stores).
// It is consumed by stepflow-server for the /debug/vars and /metrics endpoints.
package metrics
