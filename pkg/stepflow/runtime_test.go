package stepflow

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/internal/infrastructure/config"
)

const w1 = `{"items":[{"id":"W1","title":"W1","children":[
	{"id":"S1","title":"S1","children":[
		{"id":"n1","order":0,"pluginKey":"message","config":{"text":"Hi {{items.user.first}}"}},
		{"id":"n2","order":1,"pluginKey":"choice","config":{"question":"Tea or coffee?","options":["tea","coffee"]},"contextDataPath":"drink"}
	],"edges":[]},
	{"id":"S2","title":"S2","children":[{"id":"n1","order":0}],"edges":[]}
],"contextItems":[{"id":"c1","name":"user","first":"Ada"}]}]}`

func TestRuntime_ImportTwiceYieldsDisjointWorkspaces(t *testing.T) {
	rt := NewRuntime()

	for i := 0; i < 2; i++ {
		_, err := rt.Import([]byte(w1), ImportOptions{Mode: ModeNewWorkspace})
		require.NoError(t, err)
	}

	items := rt.Workspaces()
	require.Len(t, items, 2)
	ids := map[string]struct{}{}
	for _, w := range items {
		require.Len(t, w.Children, 2)
		s1 := w.Children[0]
		require.Len(t, s1.Edges, 1)
		nodes := s1.SortedNodes()
		assert.Equal(t, nodes[0].ID, s1.Edges[0].Source)
		assert.Equal(t, nodes[1].ID, s1.Edges[0].Target)
		for _, n := range s1.Children {
			ids[n.ID] = struct{}{}
		}
	}
	assert.Len(t, ids, 4)
}

func TestRuntime_PlayImportedScenario(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime()
	res, err := rt.Import([]byte(w1), ImportOptions{})
	require.NoError(t, err)
	scenarioID := res.IDs["S1"]

	view, err := rt.Play(ctx, scenarioID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
	assert.True(t, view.Interactive)

	_, err = rt.Submit(ctx, "juice")
	require.Error(t, err)
	assert.Equal(t, "configuration", ErrorKind(err))
	assert.Contains(t, UserMessage(err), "not one of the options")

	view, err = rt.Submit(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, SessionStatus("completed"), view.Status)
	assert.Equal(t, "tea", rt.Context("drink"))

	results := rt.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "Hi Ada", results[0].Result)
}

func TestRuntime_UnconfiguredStepIsANotice(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime()
	res, err := rt.Import([]byte(w1), ImportOptions{})
	require.NoError(t, err)

	view, err := rt.Play(ctx, res.IDs["S2"])
	require.NoError(t, err)
	require.Error(t, view.Notice)
	assert.Equal(t, "configuration", ErrorKind(view.Notice))
	assert.Equal(t, 0, view.Index)
}

func TestRuntime_Catalog(t *testing.T) {
	catalog := `
plugins:
  - type: greeting
    kind: message
    name: Greeting
    defaultConfig:
      text: "Hello there"
`
	rt, err := New(Options{Catalog: strings.NewReader(catalog)})
	require.NoError(t, err)
	p := rt.Registry().Get("greeting")
	require.NotNil(t, p)
	assert.Equal(t, "Greeting", p.Name)

	_, err = New(Options{Catalog: strings.NewReader("plugins: [{type: x, kind: nope}]")})
	assert.Error(t, err)
}

func TestOpen_LocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Environment: "test",
		LogLevel:    "info",
		Store: config.StoreConfig{
			LocalDB:     filepath.Join(t.TempDir(), "stepflow.db"),
			Compression: "zstd",
			StateItem:   "app-state",
		},
		Session: config.SessionConfig{TTL: time.Minute},
	}

	rt, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Provider{ProviderLocal, ProviderMemory}, rt.Providers())

	_, err = rt.Import([]byte(w1), ImportOptions{})
	require.NoError(t, err)
	id, err := rt.Save(ctx, SaveOptions{Provider: ProviderLocal, ItemTitle: "backup"})
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	reopened, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.List(ctx, ProviderLocal, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "backup", items[0].Title)
	assert.Equal(t, "msgpack+zstd", items[0].Format)

	require.NoError(t, reopened.Load(ctx, ProviderLocal, id))
	assert.Len(t, reopened.Workspaces(), 1)

	require.NoError(t, reopened.Delete(ctx, ProviderLocal, id))
	err = reopened.Load(ctx, ProviderLocal, id)
	assert.Equal(t, "io", ErrorKind(err))
}
