// Package dto holds the types that cross the application boundary: the
// serialized interchange document and the user-facing error taxonomy.
package dto

import (
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/session"
)

// DocumentKey is the top-level key of the nested interchange shape
const DocumentKey = "flowchart-app-state"

// FormatVersion is the interchange version written on export
const FormatVersion = 1

// Document is the nested interchange shape
type Document struct {
	AppState *Envelope `json:"flowchart-app-state"`
}

// Envelope wraps the exported state with its format version
type Envelope struct {
	State   StateDTO `json:"state"`
	Version int      `json:"version"`
}

// StateDTO is the exported application state
type StateDTO struct {
	Items        []*graph.Workspace `json:"items"`
	Selected     Selection          `json:"selected"`
	StateVersion int64              `json:"stateVersion"`
	FlowSession  session.Snapshot   `json:"flowSession"`
}

// Selection is the currently selected workspace, scenario and node
type Selection struct {
	Workspace string `json:"workspace"`
	Scenario  string `json:"scenario"`
	Node      string `json:"node"`
}

// FlatDocument is the legacy import shape
type FlatDocument struct {
	Items []*graph.Workspace `json:"items"`
}
