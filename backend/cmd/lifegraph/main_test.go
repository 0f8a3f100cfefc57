package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// cli runs the command line against a store under dir
func cli(t *testing.T, dir string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, log: zap.NewNop()}
	full := append([]string{"--storage-path", filepath.Join(dir, "kg")}, args...)
	code := runApp(a, full)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func setupEnv(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("STORAGE_TYPE", "json")
	t.Setenv("LLM_URL", "")
	t.Setenv("LOG_LEVEL", "")
}

// ingestExample writes the example memory file and processes it
func ingestExample(t *testing.T, dir string, extra ...string) string {
	t.Helper()
	path := filepath.Join(dir, "examples", "person-memory.md")

	res := cli(t, dir, "create-example", "--path", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Example memory file created at")

	res = cli(t, dir, append([]string{"process", path}, extra...)...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Successfully processed")
	assert.Contains(t, res.stdout, "Entities:")
	return path
}

func TestCreateExample_Idempotent(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ex.md")

	first := cli(t, dir, "create-example", "--path", path)
	require.Equal(t, 0, first.code)
	second := cli(t, dir, "create-example", "--path", path)
	require.Equal(t, 0, second.code)
	assert.Contains(t, second.stdout, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exampleMemory, string(data))
}

func TestProcessAndQuery(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir)

	res := cli(t, dir, "query", "Daisy")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "🔍 Context for: Daisy")
	assert.Contains(t, res.stdout, "Type: Person")
	assert.Contains(t, res.stdout, "is_knows_of:")
	assert.Contains(t, res.stdout, "• Will Wade (Person)")

	res = cli(t, dir, "query", "daisy", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var ctx map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &ctx))
	assert.Equal(t, "Daisy", ctx["entity"].(map[string]interface{})["name"])
	assert.Contains(t, ctx["relationships"], "is_knows_of")
	assert.Contains(t, ctx["related_entities"], "Will Wade")
}

func TestQuery_NotFoundExitsZero(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir)

	res := cli(t, dir, "query", "Nobody")
	assert.Equal(t, 0, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Entity 'Nobody' not found")

	res = cli(t, dir, "suggest", "Nobody")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stderr, "Entity 'Nobody' not found")
}

func TestProcess_Failures(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	res := cli(t, dir, "process", filepath.Join(dir, "missing.md"))
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "❌ Error")

	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("## Identity\n- Name: A\n"), 0o644))

	res = cli(t, dir, "process", path, "--source-type", "myspace")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown source type")

	res = cli(t, dir, "--storage-type", "cassandra", "process", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "cassandra")
}

func TestStats(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	res := cli(t, dir, "stats")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Total Entities: 0")

	ingestExample(t, dir)
	res = cli(t, dir, "stats", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &stats))
	assert.Greater(t, stats["total_entities"], float64(5))
	assert.Equal(t, "markdown", stats["metadata"].(map[string]interface{})["source"])
}

func TestListCommands(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir)

	res := cli(t, dir, "list-entities", "--entity-type", "Person")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "• Will Wade (Person)")
	assert.Contains(t, res.stdout, "pronouns: he/him")
	assert.NotContains(t, res.stdout, "(Place)")

	res = cli(t, dir, "list-entities", "--name-pattern", "zzz")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "No entities found")

	res = cli(t, dir, "list-entities", "--entity-type", "Spaceship")
	assert.Equal(t, 1, res.code)

	res = cli(t, dir, "list-triplets", "--subject", "Will_Wade", "--predicate", "livesIn")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "• Will_Wade --livesIn--> Manchester")
	assert.Contains(t, res.stdout, "Source: identity")

	res = cli(t, dir, "list-triplets", "--predicate", "teleportedTo")
	assert.Equal(t, 1, res.code)
}

func TestSuggest(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir)

	res := cli(t, dir, "suggest", "Daisy")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "💬 Suggestions for Daisy (Person):")
	assert.Contains(t, res.stdout, "Daisy is a person you know.")

	res = cli(t, dir, "suggest", "Daisy", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, false, out["rephrased"])
}

func TestExport(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir)

	res := cli(t, dir, "export")
	require.Equal(t, 0, res.code, res.stderr)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Contains(t, doc["entities"], "Will_Wade")

	out := filepath.Join(dir, "graph.yaml")
	res = cli(t, dir, "export", "--format", "yaml", "-o", out)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Exported")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var ydoc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &ydoc))
	assert.Contains(t, ydoc, "triplets")
	assert.Contains(t, ydoc["entities"], "Daisy")

	res = cli(t, dir, "export", "--format", "xml")
	assert.Equal(t, 1, res.code)
}

func TestProcessDir(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "memories")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.md"), []byte("## Identity\n- Name: Ann\n\n## People\n- Bob: neighbour\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.md"), []byte("## Identity\n- Name: Bob\n\n## People\n- ann: neighbour\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("ignored"), 0o644))

	res := cli(t, dir, "process-dir", src)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Found 2 files to process")
	assert.Contains(t, res.stdout, "Total entities: 2")

	res = cli(t, dir, "process-dir", src, "--pattern", "*.json")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "No files matching '*.json'")

	res = cli(t, dir, "process-dir", filepath.Join(src, "a.md"))
	assert.Equal(t, 1, res.code)
}

func TestSQLiteBackend(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	ingestExample(t, dir, "--no-merge")

	res := cli(t, dir, "--storage-type", "sqlite", "stats")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Total Entities: 0")

	path := filepath.Join(dir, "examples", "person-memory.md")
	res = cli(t, dir, "--storage-type", "sqlite", "process", path)
	require.Equal(t, 0, res.code, res.stderr)

	res = cli(t, dir, "--storage-type", "sqlite", "query", "Lisa")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Context for: Lisa")
	_, err := os.Stat(filepath.Join(dir, "kg.db"))
	assert.NoError(t, err)
}
