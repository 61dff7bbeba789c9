// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - defined once, compared with errors.Is
var (
	// Workspace errors
	ErrInvalidWorkspaceID = errors.New("invalid workspace ID")
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrDuplicateWorkspace = errors.New("duplicate workspace ID")

	// Scenario errors
	ErrNilScenario       = errors.New("scenario cannot be nil")
	ErrInvalidScenarioID = errors.New("invalid scenario ID")
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrDuplicateScenario = errors.New("duplicate scenario ID")

	// Node errors
	ErrNilNode       = errors.New("node cannot be nil")
	ErrInvalidNodeID = errors.New("invalid node ID")
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("duplicate node ID")

	// Edge errors
	ErrNilEdge            = errors.New("edge cannot be nil")
	ErrInvalidEdgeID      = errors.New("invalid edge ID")
	ErrInvalidSource      = errors.New("invalid source node")
	ErrInvalidTarget      = errors.New("invalid target node")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
	ErrDuplicateEdge      = errors.New("duplicate edge")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrSelfLoop           = errors.New("self-loops are not allowed")

	// Context item errors
	ErrNilContextItem       = errors.New("context item cannot be nil")
	ErrInvalidContextItemID = errors.New("invalid context item ID")
	ErrContextItemNotFound  = errors.New("context item not found")
)
