package main

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type meta struct {
	typ, help string
	isMap     bool
	label     string
}

var metas = map[string]meta{
	"stepflow_graph_mutations_total":     {typ: "counter", help: "Entity graph mutations", isMap: true, label: "kind"},
	"stepflow_session_transitions_total": {typ: "counter", help: "Flow session transitions", isMap: true, label: "transition"},
	"stepflow_imports_total":             {typ: "counter", help: "Documents imported", isMap: true, label: "mode"},
	"stepflow_store_operations_total":    {typ: "counter", help: "Successful store operations", isMap: true, label: "provider"},
	"stepflow_store_failures_total":      {typ: "counter", help: "Failed store operations", isMap: true, label: "provider"},
	"stepflow_state_version":             {typ: "gauge", help: "Current state version", isMap: false},
	"stepflow_active_sessions":           {typ: "gauge", help: "Flow sessions currently playing", isMap: false},
}

// promMetricsHandler renders expvar-published metrics in Prometheus text format.
// Unknown integer vars are emitted as untyped gauges.
// nolint:funlen // Straightforward formatter
func promMetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := metas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if !m.isMap {
			_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			_, _ = fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
