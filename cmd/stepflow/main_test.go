package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDoc = `{"items":[{"id":"W1","title":"Onboarding","children":[
	{"id":"S1","title":"Greeting","children":[
		{"id":"n1","order":0,"pluginKey":"message","config":{"text":"Welcome"}},
		{"id":"n2","order":1,"pluginKey":"input","config":{"prompt":"Name?"},"contextDataPath":"name"},
		{"id":"n3","order":2,"pluginKey":"message","config":{"text":"Bye {{name}}"}}
	],"edges":[]}
]}]}`

// setupEnv points the CLI at a fresh local store
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STEPFLOW_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STEPFLOW_LOCAL_DB", filepath.Join(dir, "stepflow.db"))
	t.Setenv("STEPFLOW_REMOTE_DSN", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("STEPFLOW_PLUGIN_CATALOG", "")

	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(scenarioDoc), 0o644))
	return path
}

// run executes the root command with args and returns its output
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// scenarioIDs reads the scenario ids printed by the workspaces command
func scenarioIDs(t *testing.T) []string {
	t.Helper()
	out, err := run(t, "", "workspaces")
	require.NoError(t, err)
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  ") {
			ids = append(ids, strings.Fields(line)[0])
		}
	}
	return ids
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		commit    string
		buildTime string
		want      string
	}{
		{
			name:      "dev defaults",
			version:   "dev",
			commit:    "unknown",
			buildTime: "unknown",
			want:      "stepflow dev (commit: unknown, built: unknown)\n",
		},
		{
			name:      "release values",
			version:   "v1.0.0",
			commit:    "abc123",
			buildTime: "2024-01-01",
			want:      "stepflow v1.0.0 (commit: abc123, built: 2024-01-01)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit, oldBuildTime := Version, Commit, BuildTime
			defer func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuildTime }()
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			out, err := run(t, "", "version")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
	assert.NotEmpty(t, BuildTime)
}

func TestImportAndWorkspaces(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "", "workspaces")
	require.NoError(t, err)
	assert.Equal(t, "no workspaces\n", out)

	out, err = run(t, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported workspace")
	assert.Contains(t, out, "(1 scenarios)")

	_, err = run(t, "", "import", path)
	require.NoError(t, err)

	out, err = run(t, "", "workspaces")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Onboarding"))
	assert.Equal(t, 2, strings.Count(out, "3 steps"))

	ids := scenarioIDs(t)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotContains(t, ids, "S1")
}

func TestImportErrors(t *testing.T) {
	path := setupEnv(t)
	bad := filepath.Join(filepath.Dir(path), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"items":`), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unreadable document", []string{"import", bad}, "could not read import file"},
		{"into without target", []string{"import", path, "--mode", "into-workspace"}, "target"},
		{"unknown mode", []string{"import", path, "--mode", "sideways"}, "mode"},
		{"missing file", []string{"import", filepath.Join(filepath.Dir(path), "nope.json")}, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	out, err := run(t, "", "workspaces")
	require.NoError(t, err)
	assert.Equal(t, "no workspaces\n", out)
}

func TestExport(t *testing.T) {
	path := setupEnv(t)
	_, err := run(t, "", "import", path)
	require.NoError(t, err)

	out, err := run(t, "", "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"temporarySteps"`)
	assert.Contains(t, out, "Onboarding")

	target := filepath.Join(t.TempDir(), "out.json")
	_, err = run(t, "", "export", "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Greeting")

	// an export imports back as another workspace
	_, err = run(t, "", "import", target)
	require.NoError(t, err)
	assert.Len(t, scenarioIDs(t), 2)
}

func TestPlayPausesAndResumes(t *testing.T) {
	path := setupEnv(t)
	_, err := run(t, "", "import", path)
	require.NoError(t, err)
	ids := scenarioIDs(t)
	require.Len(t, ids, 1)

	out, err := run(t, "", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "[2/3] Name?>")
	assert.Contains(t, out, "session paused")

	out, err = run(t, "", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "[2/3] Name?>", "resumes at the paused step")

	out, err = run(t, "\nAda\n", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Bye Ada")
	assert.Contains(t, out, "scenario completed")
}

func TestPlaySkipsSteps(t *testing.T) {
	path := setupEnv(t)
	_, err := run(t, "", "import", path)
	require.NoError(t, err)
	ids := scenarioIDs(t)

	out, err := run(t, ":skip\n", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Bye")
	assert.Contains(t, out, "scenario completed")
}

func TestPlaySkipsStepThatCannotRun(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	doc := `{"items":[{"id":"W1","title":"Drafts","children":[
	{"id":"S1","title":"Broken","children":[
		{"id":"blank","order":0},
		{"id":"after","order":1,"pluginKey":"message","config":{"text":"Done"}}
	],"edges":[]}
]}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := run(t, "", "import", path)
	require.NoError(t, err)
	ids := scenarioIDs(t)
	require.Len(t, ids, 1)

	out, err := run(t, "", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "step 1 cannot run")
	assert.Contains(t, out, "session paused")

	out, err = run(t, "anything\n:skip\n", "play", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "scenario completed")
}

func TestPlayUnknownScenario(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "", "play", "missing")
	assert.Error(t, err)
}

func TestPluginsAndStore(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "", "plugins")
	require.NoError(t, err)
	for _, typ := range []string{"message", "input", "choice"} {
		assert.Contains(t, out, typ+"\t")
	}

	_, err = run(t, "", "import", path)
	require.NoError(t, err)

	out, err = run(t, "", "store", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "workspace\t")
	assert.Contains(t, out, "Working state")

	out, err = run(t, "", "store", "list", "--type", "unrelated")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "", "store", "list", "--provider", "remote")
	assert.Error(t, err)

	out, err = run(t, "", "store", "delete", "workspace")
	require.NoError(t, err)
	assert.Equal(t, "deleted workspace\n", out)

	out, err = run(t, "", "workspaces")
	require.NoError(t, err)
	assert.Equal(t, "no workspaces\n", out)
}
