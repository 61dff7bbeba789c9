// Package builtin provides the step types shipped with stepflow.
package builtin

import (
	"github.com/stepflow/stepflow/internal/core/plugin"
)

const (
	TypeMessage  plugin.Type = "message"
	TypeInput    plugin.Type = "input"
	TypeTemplate plugin.Type = "template"
	TypeChoice   plugin.Type = "choice"
)

// Plugins returns fresh instances of every built-in step type
func Plugins() []*plugin.Plugin {
	return []*plugin.Plugin{
		messagePlugin(),
		inputPlugin(),
		templatePlugin(),
		choicePlugin(),
	}
}

// Register adds every built-in step type to reg
func Register(reg *plugin.Registry) {
	for _, p := range Plugins() {
		reg.Register(p)
	}
}
