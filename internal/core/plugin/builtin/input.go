package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
)

// input asks a question and waits for a free-text answer
type input struct{}

func inputPlugin() *plugin.Plugin {
	in := input{}
	return &plugin.Plugin{
		Type:          TypeInput,
		Name:          "Input",
		Category:      plugin.CategoryInput,
		DefaultConfig: map[string]interface{}{"prompt": "Your answer", "placeholder": ""},
		ConfigSchema:  map[string]interface{}{"prompt": "required"},
		Capabilities:  plugin.Capabilities{Editor: in, Viewer: in, ResultRenderer: plainRenderer{}},
	}
}

func (input) Fields(*graph.Node) []plugin.Field {
	return []plugin.Field{
		{Key: "prompt", Label: "Prompt", Kind: "text", Required: true},
		{Key: "placeholder", Label: "Placeholder", Kind: "text"},
	}
}

// Activate leaves the envelope open until Respond
func (input) Activate(context.Context, *plugin.Envelope) error {
	return nil
}

func (input) Respond(_ context.Context, env *plugin.Envelope, answer interface{}) error {
	text, ok := answer.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: a non-empty text answer is required", plugin.ErrInvalidAnswer)
	}
	prompt := env.Context.Interpolate(env.ConfigString("prompt"))
	if !env.Complete(text,
		plugin.Message{Role: "assistant", Content: prompt},
		plugin.Message{Role: "user", Content: text},
	) {
		return plugin.ErrAlreadyCompleted
	}
	return nil
}
