package plugin

import (
	"sync/atomic"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// ContextReader is the read side of the context store handed to viewers
type ContextReader interface {
	Get(path string) interface{}
	Interpolate(tmpl string) string
}

// CompleteFunc receives a step's result. It reports whether the result was
// accepted; results for a step that is no longer current are dropped.
type CompleteFunc func(result interface{}, conversation []Message) bool

// Envelope is the execution envelope for one activation of one step
type Envelope struct {
	Step     *graph.Node
	Index    int
	Context  ContextReader
	complete CompleteFunc
	done     atomic.Bool
}

// NewEnvelope wraps a step for activation
func NewEnvelope(step *graph.Node, index int, ctx ContextReader, complete CompleteFunc) *Envelope {
	return &Envelope{Step: step, Index: index, Context: ctx, complete: complete}
}

// Complete delivers the step result. Only the first call per activation is
// forwarded; it returns false for later calls and for stale activations.
func (e *Envelope) Complete(result interface{}, conversation ...Message) bool {
	if !e.done.CompareAndSwap(false, true) {
		return false
	}
	if e.complete == nil {
		return false
	}
	return e.complete(result, conversation)
}

// Done reports whether Complete has been called
func (e *Envelope) Done() bool {
	return e.done.Load()
}

// ConfigString returns a string config value of the step, or ""
func (e *Envelope) ConfigString(key string) string {
	if e.Step == nil {
		return ""
	}
	s, _ := e.Step.Config[key].(string)
	return s
}
