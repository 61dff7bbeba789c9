// Package stepflow provides a public façade over the scenario runtime: the
// entity graph, the plugin registry, the flow session and import/export.
// It re-exports the core types so callers never import internal packages.
//
// New wires in-memory components and is suitable for local usage and tests.
// Open wires the stores and session cache named by a config.Config.
package stepflow
