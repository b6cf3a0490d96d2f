package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeParams(t *testing.T, raw string) map[string]any {
	t.Helper()

	params := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(raw), &params))
	return params
}

func TestEncode_CollectionForm(t *testing.T) {
	output, err := runCommand(t,
		"encode",
		"--collection", "GameScore",
		"--where", `{"score":{"$gt":1000}}`,
		"--order", "-score,name",
		"--limit", "2",
	)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, map[string]any{"score": map[string]any{"$gt": float64(1000)}}, params["where"])
	assert.Equal(t, "-score,name", params["order"])
	assert.Equal(t, float64(2), params["limit"])
	assert.NotContains(t, params, "className")
}

func TestEncode_SQLForm(t *testing.T) {
	output, err := runCommand(t,
		"encode",
		"--sql", "SELECT name, score FROM Player WHERE score > 1000 ORDER BY score DESC",
	)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, "name,score", params["keys"])
	assert.Equal(t, "-score", params["order"])
	assert.Equal(t, map[string]any{"score": map[string]any{"$gt": float64(1000)}}, params["where"])
}

func TestEncode_IncludeClassName(t *testing.T) {
	output, err := runCommand(t,
		"encode",
		"--collection", "GameScore",
		"--include-class-name",
	)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, "GameScore", params["className"])
}

func TestEncode_SelectionAndIncludes(t *testing.T) {
	output, err := runCommand(t,
		"encode",
		"--collection", "Post",
		"--keys", "title, author",
		"--include", "author",
		"--skip", "10",
	)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, "author,title", params["keys"])
	assert.Equal(t, "author", params["include"])
	assert.Equal(t, float64(10), params["skip"])
}

func TestEncode_RequiresSource(t *testing.T) {
	_, err := runCommand(t, "encode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sql or --collection")
}

func TestEncode_RejectsBothSources(t *testing.T) {
	_, err := runCommand(t, "encode", "--sql", "SELECT * FROM x", "--collection", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestEncode_MalformedWhere(t *testing.T) {
	_, err := runCommand(t, "encode", "--collection", "GameScore", "--where", "{oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed --where")
}

func TestEncode_EnvironmentBackfillsFlags(t *testing.T) {
	t.Setenv("QUARRY_COLLECTION", "GameScore")
	t.Setenv("QUARRY_LIMIT", "3")

	output, err := runCommand(t, "encode")
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, float64(3), params["limit"])
}

func TestEncode_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("QUARRY_LIMIT", "9")

	output, err := runCommand(t, "encode", "--collection", "GameScore", "--limit", "2")
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, float64(2), params["limit"])
}

func TestEncode_ConfigFileBackfillsFlags(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("collection: GameScore\nlimit: 7\n"), 0o600))

	output, err := runCommand(t, "encode", "--config", configPath)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, float64(7), params["limit"])
}

func TestEncode_EnvironmentBeatsConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("collection: GameScore\nlimit: 7\n"), 0o600))
	t.Setenv("QUARRY_LIMIT", "5")

	output, err := runCommand(t, "encode", "--config", configPath)
	require.NoError(t, err)

	params := decodeParams(t, output)
	assert.Equal(t, float64(5), params["limit"])
}

func TestEncode_MissingConfigFileFails(t *testing.T) {
	_, err := runCommand(t, "encode", "--collection", "GameScore", "--config", "/definitely/not/here.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
