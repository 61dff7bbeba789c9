package transfer

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/session"
)

// Export encodes the state in the nested, versioned shape
func Export(items []*graph.Workspace, sel dto.Selection, stateVersion int64, flow session.Snapshot) ([]byte, error) {
	if items == nil {
		items = []*graph.Workspace{}
	}
	if flow.TemporarySteps == nil {
		flow.TemporarySteps = []session.StepRecord{}
	}
	doc := dto.Document{AppState: &dto.Envelope{
		State: dto.StateDTO{
			Items:        items,
			Selected:     sel,
			StateVersion: stateVersion,
			FlowSession:  flow,
		},
		Version: dto.FormatVersion,
	}}
	out, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return out, nil
}
