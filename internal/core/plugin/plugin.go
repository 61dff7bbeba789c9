// Package plugin maps step-type names to step capabilities. A step type is a
// closed variant behind three capability interfaces: Editor describes its
// configuration, Viewer runs it, ResultRenderer displays what it produced.
package plugin

import (
	"context"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// Type names a step type, e.g. "message"
type Type string

// Category groups step types in pickers
type Category string

const (
	CategoryContent Category = "content"
	CategoryInput   Category = "input"
	CategoryLogic   Category = "logic"
	CategoryUnknown Category = "unknown"
)

// Message is one turn of the conversation a step may capture
type Message struct {
	Role    string `json:"role" msgpack:"role"`
	Content string `json:"content" msgpack:"content"`
}

// Field describes one editable configuration key
type Field struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Kind        string `json:"kind"` // text, textarea, list
	Required    bool   `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Editor describes how a step's configuration is edited
type Editor interface {
	Fields(step *graph.Node) []Field
}

// Viewer runs a step. Activate may complete the envelope immediately or
// leave it open for a later answer.
type Viewer interface {
	Activate(ctx context.Context, env *Envelope) error
}

// Responder is implemented by viewers that accept answers from the user
type Responder interface {
	Respond(ctx context.Context, env *Envelope, answer interface{}) error
}

// ResultRenderer renders a recorded result for display
type ResultRenderer interface {
	RenderResult(step *graph.Node, result interface{}, conversation []Message) string
}

// Capabilities bundles the per-type implementations
type Capabilities struct {
	Editor         Editor
	Viewer         Viewer
	ResultRenderer ResultRenderer
}

// Plugin is a registered step type. ConfigSchema holds validator rules per
// config key and is checked against DefaultConfig at registration time.
type Plugin struct {
	Type          Type
	Name          string
	Category      Category
	DefaultConfig map[string]interface{}
	ConfigSchema  map[string]interface{}
	Capabilities  Capabilities
}

// Editor returns the editor capability or the fallback
func (p *Plugin) Editor() Editor {
	if p.Capabilities.Editor == nil {
		return missingEditor{}
	}
	return p.Capabilities.Editor
}

// Viewer returns the viewer capability or the fallback
func (p *Plugin) Viewer() Viewer {
	if p.Capabilities.Viewer == nil {
		return missingViewer{typ: p.Type}
	}
	return p.Capabilities.Viewer
}

// ResultRenderer returns the result renderer capability or the fallback
func (p *Plugin) ResultRenderer() ResultRenderer {
	if p.Capabilities.ResultRenderer == nil {
		return missingRenderer{typ: p.Type}
	}
	return p.Capabilities.ResultRenderer
}

// clone copies the plugin with independent config maps
func (p *Plugin) clone() *Plugin {
	c := *p
	c.DefaultConfig = graph.CopyMap(p.DefaultConfig)
	c.ConfigSchema = graph.CopyMap(p.ConfigSchema)
	return &c
}
