package builtin

import (
	"context"
	"fmt"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
)

// choice asks a question with a fixed set of options
type choice struct{}

func choicePlugin() *plugin.Plugin {
	c := choice{}
	return &plugin.Plugin{
		Type:     TypeChoice,
		Name:     "Choice",
		Category: plugin.CategoryInput,
		DefaultConfig: map[string]interface{}{
			"question": "Pick one",
			"options":  []interface{}{"Yes", "No"},
		},
		ConfigSchema: map[string]interface{}{
			"question": "required",
			"options":  "required,min=1",
		},
		Capabilities: plugin.Capabilities{Editor: c, Viewer: c, ResultRenderer: plainRenderer{}},
	}
}

func (choice) Fields(*graph.Node) []plugin.Field {
	return []plugin.Field{
		{Key: "question", Label: "Question", Kind: "text", Required: true},
		{Key: "options", Label: "Options", Kind: "list", Required: true},
	}
}

func (choice) Activate(context.Context, *plugin.Envelope) error {
	return nil
}

func (choice) Respond(_ context.Context, env *plugin.Envelope, answer interface{}) error {
	picked, ok := answer.(string)
	if !ok || !containsOption(env.Step.Config["options"], picked) {
		return fmt.Errorf("%w: %v is not one of the options", plugin.ErrInvalidAnswer, answer)
	}
	question := env.Context.Interpolate(env.ConfigString("question"))
	if !env.Complete(picked,
		plugin.Message{Role: "assistant", Content: question},
		plugin.Message{Role: "user", Content: picked},
	) {
		return plugin.ErrAlreadyCompleted
	}
	return nil
}

func containsOption(options interface{}, picked string) bool {
	switch opts := options.(type) {
	case []interface{}:
		for _, o := range opts {
			if s, ok := o.(string); ok && s == picked {
				return true
			}
		}
	case []string:
		for _, s := range opts {
			if s == picked {
				return true
			}
		}
	}
	return false
}
