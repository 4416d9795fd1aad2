package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

const adultsInUS = `{
  "conditions": [{"key": "age", "op": "gt", "value": {"kind": "int32", "int": 30}}],
  "children": {"address": {"conditions": [{"key": "country", "op": "eq", "value": {"kind": "text", "string": "US"}}]}}
}`

const seedUsers = `[
  {"_id": "u1", "name": "alex", "age": 34, "address": {"country": "US"}},
  {"_id": "u2", "name": "jonah", "age": 19, "address": {"country": "CA"}},
  {"_id": "u3", "name": "mira", "age": 41, "address": {"country": "US"}}
]`

func runCommand(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	code, _, stderr := runCommand(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: mustyctl")

	code, _, stderr = runCommand(t, "drop")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "drop"`)
}

func TestExplainPrintsEveryBackend(t *testing.T) {
	code, stdout, stderr := runCommand(t, "explain", "--filter", adultsInUS)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "# mongo")
	assert.Contains(t, stdout, `{"$and":[{"age":{"$gt":30}},{"address.country":"US"}]}`)
	assert.Contains(t, stdout, "# postgres")
	assert.Contains(t, stdout, `jsonb_typeof(("doc" #> ARRAY['age']::text[])) = 'number'`)
	assert.Contains(t, stdout, `$2 = "US"`)
	assert.Contains(t, stdout, "# mssql")
	assert.Contains(t, stdout, "OPENJSON([doc], @p1)")
}

func TestExplainReportsInProcessFallback(t *testing.T) {
	literal := `{"conditions": [{"key": "tags", "op": "eq", "value": {"kind": "list", "list": [{"kind": "text", "string": "a"}]}}]}`
	code, stdout, stderr := runCommand(t, "explain", "-f", literal)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "evaluated in process")
}

func TestExplainReadsMsgpackFile(t *testing.T) {
	f, err := filter.ParseJSON([]byte(adultsInUS))
	require.NoError(t, err)
	data, err := filter.EncodeMsgpack(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "adults.msgpack")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	code, stdout, stderr := runCommand(t, "explain", "--filter-file", path, "--dump")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "# filter")
	assert.Contains(t, stdout, `"$gt":30`)
}

func TestExplainRejectsInvalidFilter(t *testing.T) {
	code, _, stderr := runCommand(t, "explain", "--filter", `{"conditions": [{"key": "age", "op": "between"}]}`)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error:")
}

func TestFindOnSeededMemoryStore(t *testing.T) {
	seed := writeFile(t, "users.json", seedUsers)

	code, stdout, stderr := runCommand(t, "find",
		"--backend", "memory",
		"--collection", "users",
		"--seed", seed,
		"--filter", adultsInUS,
		"--sort", "-age",
	)
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	first, err := odm.UnmarshalDocument([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, "u3", first.ID())
	second, err := odm.UnmarshalDocument([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, "u1", second.ID())
}

func TestCountOnSeededMemoryStore(t *testing.T) {
	seed := writeFile(t, "users.json", seedUsers)

	code, stdout, stderr := runCommand(t, "count", "--backend", "memory", "-c", "users", "--seed", seed, "--filter", adultsInUS)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "2", strings.TrimSpace(stdout))
}

func TestFindRequiresCollection(t *testing.T) {
	code, _, stderr := runCommand(t, "find", "--backend", "memory")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--collection is required")
}

func TestParseSort(t *testing.T) {
	assert.Equal(t,
		[]odm.SortField{odm.Desc("age"), odm.Asc("name"), odm.Asc("address.city")},
		parseSort([]string{"-age", "+name", " address.city "}),
	)
}
