package builtin

import (
	"context"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
)

// template renders its template against the context and completes with the
// rendered text, typically written back through contextDataPath.
type template struct{}

func templatePlugin() *plugin.Plugin {
	t := template{}
	return &plugin.Plugin{
		Type:          TypeTemplate,
		Name:          "Template",
		Category:      plugin.CategoryLogic,
		DefaultConfig: map[string]interface{}{"template": "{{input}}"},
		ConfigSchema:  map[string]interface{}{"template": "required"},
		Capabilities:  plugin.Capabilities{Editor: t, Viewer: t, ResultRenderer: plainRenderer{}},
	}
}

func (template) Fields(*graph.Node) []plugin.Field {
	return []plugin.Field{{Key: "template", Label: "Template", Kind: "textarea", Required: true, Placeholder: "Hello {{user.name}}"}}
}

func (template) Activate(_ context.Context, env *plugin.Envelope) error {
	env.Complete(env.Context.Interpolate(env.ConfigString("template")))
	return nil
}
