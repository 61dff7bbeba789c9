package builtin

import (
	"context"
	"fmt"

	"github.com/stepflow/stepflow/internal/core/contextstore"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
)

// message shows interpolated text and completes on activation
type message struct{}

func messagePlugin() *plugin.Plugin {
	m := message{}
	return &plugin.Plugin{
		Type:          TypeMessage,
		Name:          "Message",
		Category:      plugin.CategoryContent,
		DefaultConfig: map[string]interface{}{"text": "Welcome"},
		ConfigSchema:  map[string]interface{}{"text": "required"},
		Capabilities:  plugin.Capabilities{Editor: m, Viewer: m, ResultRenderer: plainRenderer{}},
	}
}

func (message) Fields(*graph.Node) []plugin.Field {
	return []plugin.Field{{Key: "text", Label: "Text", Kind: "textarea", Required: true}}
}

func (message) Activate(_ context.Context, env *plugin.Envelope) error {
	text := env.Context.Interpolate(env.ConfigString("text"))
	env.Complete(text, plugin.Message{Role: "assistant", Content: text})
	return nil
}

// plainRenderer renders any result as a single line
type plainRenderer struct{}

func (plainRenderer) RenderResult(step *graph.Node, result interface{}, _ []plugin.Message) string {
	label := step.Label
	if label == "" {
		label = step.PluginKey
	}
	if result == nil {
		return fmt.Sprintf("%s: (no result)", label)
	}
	return fmt.Sprintf("%s: %s", label, contextstore.Stringify(result))
}
