package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
	"github.com/stepflow/stepflow/internal/core/plugin/builtin"
)

func newState(t *testing.T) *State {
	t.Helper()
	reg := plugin.NewRegistry(nil)
	builtin.Register(reg)
	return New(reg, nil)
}

// seed builds one workspace with one scenario holding nodes a (order 2) and b (order 1)
func seed(t *testing.T, s *State) (string, string) {
	t.Helper()
	wsID, err := s.AddWorkspace(&graph.Workspace{Title: "W1"})
	require.NoError(t, err)
	scID, err := s.AddScenario(wsID, &graph.Scenario{Title: "S1"})
	require.NoError(t, err)
	_, err = s.AddNode(scID, &graph.Node{ID: "a", Order: 2, PluginKey: "message", Config: map[string]interface{}{"text": "A"}})
	require.NoError(t, err)
	_, err = s.AddNode(scID, &graph.Node{ID: "b", Order: 1})
	require.NoError(t, err)
	return wsID, scID
}

func assertEdgesIntact(t *testing.T, s *State) {
	t.Helper()
	for _, w := range s.Workspaces() {
		for _, sc := range w.Children {
			for _, e := range sc.Edges {
				assert.NotNil(t, sc.Node(e.Source), "edge %s source", e.ID)
				assert.NotNil(t, sc.Node(e.Target), "edge %s target", e.ID)
			}
		}
	}
}

func TestState_EveryMutationBumpsVersion(t *testing.T) {
	s := newState(t)
	assert.Equal(t, int64(0), s.Version())

	wsID, scID := seed(t, s)
	assert.Equal(t, int64(4), s.Version())

	title := "Renamed"
	steps := []func() error{
		func() error { return s.UpdateWorkspace(wsID, WorkspacePatch{Title: &title}) },
		func() error { return s.UpdateScenario(scID, ScenarioPatch{Title: &title}) },
		func() error { _, err := s.AddEdge(scID, &graph.Edge{Source: "b", Target: "a"}); return err },
		func() error { return s.Select(dto.Selection{Workspace: wsID, Scenario: scID}) },
		func() error { return s.DeleteNode(scID, "a") },
	}
	for i, step := range steps {
		before := s.Version()
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, before+1, s.Version(), "step %d", i)
	}
}

func TestState_FailedMutationLeavesVersion(t *testing.T) {
	s := newState(t)
	_, scID := seed(t, s)
	before := s.Version()

	_, err := s.AddEdge(scID, &graph.Edge{Source: "a", Target: "missing"})
	assert.ErrorIs(t, err, graph.ErrTargetNodeNotFound)
	assert.ErrorIs(t, s.DeleteNode(scID, "missing"), graph.ErrNodeNotFound)
	assert.ErrorIs(t, s.DeleteScenario("missing"), graph.ErrScenarioNotFound)
	assert.Equal(t, before, s.Version())
}

func TestState_ActiveScenarioDataSortedByOrder(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)
	_, err := s.AddNode(scID, &graph.Node{ID: "c", Order: 1})
	require.NoError(t, err)

	_, err = s.ActiveScenarioData()
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, s.Select(dto.Selection{Workspace: wsID, Scenario: scID}))
	data, err := s.ActiveScenarioData()
	require.NoError(t, err)

	ids := make([]string, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, wsID, data.WorkspaceID)
}

func TestState_DeleteNodeDropsIncidentEdges(t *testing.T) {
	s := newState(t)
	_, scID := seed(t, s)
	_, err := s.AddNode(scID, &graph.Node{ID: "c", Order: 3})
	require.NoError(t, err)
	_, err = s.AddEdge(scID, &graph.Edge{ID: "e1", Source: "b", Target: "a"})
	require.NoError(t, err)
	_, err = s.AddEdge(scID, &graph.Edge{ID: "e2", Source: "a", Target: "c"})
	require.NoError(t, err)
	_, err = s.AddEdge(scID, &graph.Edge{ID: "e3", Source: "b", Target: "c"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(scID, "a"))

	data, err := s.ScenarioData(scID)
	require.NoError(t, err)
	require.Len(t, data.Edges, 1)
	assert.Equal(t, "e3", data.Edges[0].ID)
	assertEdgesIntact(t, s)

	require.NoError(t, s.DeleteEdge(scID, "e3"))
	assert.ErrorIs(t, s.DeleteEdge(scID, "e3"), graph.ErrEdgeNotFound)
}

func TestState_DeleteScenarioCascadesContextItems(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)
	other, err := s.AddScenario(wsID, &graph.Scenario{Title: "S2"})
	require.NoError(t, err)

	_, err = s.AddContextItem(wsID, &graph.ContextItem{ID: "global", Payload: map[string]interface{}{"name": "g"}})
	require.NoError(t, err)
	_, err = s.AddContextItem(wsID, &graph.ContextItem{ID: "scoped", ScenarioID: scID})
	require.NoError(t, err)
	_, err = s.AddContextItem(wsID, &graph.ContextItem{ID: "kept", ScenarioID: other})
	require.NoError(t, err)

	_, err = s.AddContextItem(wsID, &graph.ContextItem{ID: "bad", ScenarioID: "missing"})
	assert.ErrorIs(t, err, graph.ErrScenarioNotFound)

	require.NoError(t, s.Select(dto.Selection{Workspace: wsID, Scenario: scID, Node: "a"}))
	require.NoError(t, s.DeleteScenario(scID))

	w, err := s.Workspace(wsID)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range w.ContextItems {
		ids = append(ids, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
	}
	assert.ElementsMatch(t, []string{"global", "kept"}, ids)
	assert.Equal(t, dto.Selection{Workspace: wsID}, s.Selection())
}

func TestState_DeleteWorkspace(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)
	require.NoError(t, s.Select(dto.Selection{Workspace: wsID, Scenario: scID}))

	require.NoError(t, s.DeleteWorkspace(wsID))
	assert.Empty(t, s.Workspaces())
	assert.Equal(t, dto.Selection{}, s.Selection())
	assert.ErrorIs(t, s.DeleteWorkspace(wsID), graph.ErrWorkspaceNotFound)

	_, _, err := s.Scenario(scID)
	assert.ErrorIs(t, err, graph.ErrScenarioNotFound)
}

func TestState_AddNodeRequiresRegisteredType(t *testing.T) {
	s := newState(t)
	_, scID := seed(t, s)

	_, err := s.AddNode(scID, &graph.Node{PluginKey: "nonexistent-type"})
	assert.ErrorIs(t, err, ErrUnknownStepType)

	_, err = s.AddStep(scID, "nonexistent-type")
	assert.ErrorIs(t, err, ErrUnknownStepType)

	step, err := s.AddStep(scID, "input")
	require.NoError(t, err)
	assert.Equal(t, 3.0, step.Order)
	assert.Equal(t, graph.StepStatusPending, step.Status)
	assert.Equal(t, "Your answer", step.Config["prompt"])
}

func TestState_UpdateNode(t *testing.T) {
	s := newState(t)
	_, scID := seed(t, s)

	key := "input"
	require.NoError(t, s.UpdateNode(scID, "b", NodePatch{PluginKey: &key}))
	sc, _, err := s.Scenario(scID)
	require.NoError(t, err)
	assert.Equal(t, "Your answer", sc.Node("b").Config["prompt"])

	err = s.UpdateNode(scID, "b", NodePatch{Config: map[string]interface{}{"prompt": ""}})
	assert.Error(t, err)
	sc, _, _ = s.Scenario(scID)
	assert.Equal(t, "Your answer", sc.Node("b").Config["prompt"], "failed update must not apply")

	unknown := "nonexistent-type"
	assert.ErrorIs(t, s.UpdateNode(scID, "b", NodePatch{PluginKey: &unknown}), ErrUnknownStepType)

	path := "answers.name"
	order := 0.5
	require.NoError(t, s.UpdateNode(scID, "b", NodePatch{ContextDataPath: &path, Order: &order}))
	sc, _, _ = s.Scenario(scID)
	assert.Equal(t, path, sc.Node("b").ContextDataPath)
	assert.Equal(t, 0.5, sc.Node("b").Order)
}

func TestState_SelectValidation(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)

	assert.ErrorIs(t, s.Select(dto.Selection{Scenario: scID}), ErrInvalidSelection)
	assert.ErrorIs(t, s.Select(dto.Selection{Workspace: wsID, Scenario: "missing"}), ErrInvalidSelection)
	assert.ErrorIs(t, s.Select(dto.Selection{Workspace: wsID, Scenario: scID, Node: "missing"}), ErrInvalidSelection)
	require.NoError(t, s.Select(dto.Selection{Workspace: wsID, Scenario: scID, Node: "a"}))
}

func TestState_MergeWorkspacesIsAllOrNothing(t *testing.T) {
	s := newState(t)
	wsID, _ := seed(t, s)
	before := s.Version()

	err := s.MergeWorkspaces([]*graph.Workspace{
		{ID: "fresh", Children: []*graph.Scenario{{ID: "fresh-s"}}},
		{ID: wsID},
	})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, s.Workspaces(), 1)
	assert.Equal(t, before, s.Version())

	require.NoError(t, s.MergeWorkspaces([]*graph.Workspace{{ID: "fresh", Children: []*graph.Scenario{{ID: "fresh-s"}}}}))
	assert.Len(t, s.Workspaces(), 2)
}

func TestState_MergeIntoWorkspace(t *testing.T) {
	s := newState(t)
	wsID, _ := seed(t, s)

	sc := &graph.Scenario{ID: "imported", Children: []*graph.Node{{ID: "x"}}}
	items := []*graph.ContextItem{{ID: "i1", ScenarioID: "imported"}, {ID: "i2"}}
	require.NoError(t, s.MergeIntoWorkspace(wsID, []*graph.Scenario{sc}, items))

	w, err := s.Workspace(wsID)
	require.NoError(t, err)
	assert.Len(t, w.Children, 2)
	assert.Len(t, w.ContextItems, 2)

	err = s.MergeIntoWorkspace(wsID, nil, []*graph.ContextItem{{ID: "i3", ScenarioID: "nowhere"}})
	assert.ErrorIs(t, err, graph.ErrScenarioNotFound)
	w, _ = s.Workspace(wsID)
	assert.Len(t, w.ContextItems, 2)

	assert.ErrorIs(t, s.MergeIntoWorkspace("missing", nil, nil), graph.ErrWorkspaceNotFound)
}

func TestState_ReplaceValidatesAndClearsStaleSelection(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)
	items := s.Workspaces()

	bad := s.Workspaces()
	bad[0].Children[0].Edges = []*graph.Edge{{ID: "e", Source: "a", Target: "ghost"}}
	assert.Error(t, s.Replace(bad, dto.Selection{}))

	require.NoError(t, s.Replace(items, dto.Selection{Workspace: wsID, Scenario: scID}))
	assert.Equal(t, scID, s.Selection().Scenario)

	require.NoError(t, s.Replace(items, dto.Selection{Workspace: "gone"}))
	assert.Equal(t, dto.Selection{}, s.Selection())
}

func TestState_ReadersGetCopies(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)

	w, err := s.Workspace(wsID)
	require.NoError(t, err)
	w.Title = "mutated"
	w.Children[0].Children[0].Config["text"] = "mutated"

	fresh, err := s.Workspace(wsID)
	require.NoError(t, err)
	assert.Equal(t, "W1", fresh.Title)
	sc, _, err := s.Scenario(scID)
	require.NoError(t, err)
	assert.Equal(t, "A", sc.Node("a").Config["text"])
}

func TestState_AddWorkspaceRejectsDuplicateIDs(t *testing.T) {
	s := newState(t)
	wsID, scID := seed(t, s)

	_, err := s.AddWorkspace(&graph.Workspace{ID: wsID})
	assert.ErrorIs(t, err, ErrDuplicateID)
	_, err = s.AddWorkspace(&graph.Workspace{Children: []*graph.Scenario{{ID: scID}}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	_, err = s.AddScenario(wsID, &graph.Scenario{ID: wsID})
	assert.ErrorIs(t, err, ErrDuplicateID)
}
