package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := Value("stepflow_graph_mutations_total", "add_node")
	GraphMutation("add_node")
	GraphMutation("add_node")
	assert.Equal(t, before+2, Value("stepflow_graph_mutations_total", "add_node"))

	SetStateVersion(42)
	assert.Equal(t, int64(42), Value("stepflow_state_version", ""))

	Import("new-workspace")
	assert.GreaterOrEqual(t, Value("stepflow_imports_total", "new-workspace"), int64(1))

	assert.Equal(t, int64(0), Value("stepflow_missing_metric", ""))
}
