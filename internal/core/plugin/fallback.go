package plugin

import (
	"context"
	"fmt"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// Missing returns the placeholder plugin rendered when a step's type is not
// registered. Its viewer never completes, so the session does not advance.
func Missing(t Type) *Plugin {
	return &Plugin{
		Type:          t,
		Name:          fmt.Sprintf("Unknown step (%s)", t),
		Category:      CategoryUnknown,
		DefaultConfig: map[string]interface{}{},
		Capabilities: Capabilities{
			Editor:         missingEditor{},
			Viewer:         missingViewer{typ: t},
			ResultRenderer: missingRenderer{typ: t},
		},
	}
}

type missingEditor struct{}

func (missingEditor) Fields(*graph.Node) []Field { return nil }

type missingViewer struct{ typ Type }

func (v missingViewer) Activate(_ context.Context, env *Envelope) error {
	if v.typ == "" {
		return ErrUnconfiguredStep
	}
	return fmt.Errorf("%w: %q", ErrPluginNotFound, v.typ)
}

type missingRenderer struct{ typ Type }

func (r missingRenderer) RenderResult(*graph.Node, interface{}, []Message) string {
	if r.typ == "" {
		return "Step is not configured"
	}
	return fmt.Sprintf("Step type %q is not available", r.typ)
}
