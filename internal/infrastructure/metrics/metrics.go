package metrics

import (
	"expvar"
)

// Counters keyed by mutation kind, session transition, import mode and store provider.
var (
	graphMutations     = expvar.NewMap("stepflow_graph_mutations_total")
	sessionTransitions = expvar.NewMap("stepflow_session_transitions_total")
	importsTotal       = expvar.NewMap("stepflow_imports_total")
	storeOperations    = expvar.NewMap("stepflow_store_operations_total")
	storeFailures      = expvar.NewMap("stepflow_store_failures_total")
)

// Gauges.
var (
	stateVersion   = new(expvar.Int)
	activeSessions = new(expvar.Int)
)

func init() {
	expvar.Publish("stepflow_state_version", stateVersion)
	expvar.Publish("stepflow_active_sessions", activeSessions)
}

// Graph helpers
func GraphMutation(kind string) { graphMutations.Add(kind, 1) }
func SetStateVersion(v int64) { stateVersion.Set(v) }

// Session helpers
func SessionTransition(transition string) { sessionTransitions.Add(transition, 1) }
func AddActiveSessions(n int64) { activeSessions.Add(n) }

// Import/store helpers
func Import(mode string) { importsTotal.Add(mode, 1) }
func StoreOperation(provider string) { storeOperations.Add(provider, 1) }
func StoreFailure(provider string) { storeFailures.Add(provider, 1) }

// Value returns the current value of a published scalar or map entry, or 0.
// An empty key reads a scalar.
func Value(name, key string) int64 {
	v := expvar.Get(name)
	switch x := v.(type) {
	case *expvar.Int:
		return x.Value()
	case *expvar.Map:
		if iv, ok := x.Get(key).(*expvar.Int); ok {
			return iv.Value()
		}
	}
	return 0
}
