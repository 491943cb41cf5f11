package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxrank/fluxrank/internal/lanes/kg"
	"github.com/fluxrank/fluxrank/internal/retrieval"
)

func writeTestCorpus(t *testing.T) string {
	t.Helper()
	corpus := corpusFile{
		Documents: []corpusDocument{
			{
				ID:          "d1",
				Title:       "Reciprocal Rank Fusion in Practice",
				Content:     "RRF merges ranked lists with the constant k dampening top-rank dominance.",
				URL:         "https://search.example.com/rrf",
				Domain:      "search.example.com",
				PublishedAt: "2026-07-01T00:00:00Z",
				Authority:   0.9,
				Entities:    []string{"RRF"},
			},
			{
				ID:        "d2",
				Title:     "Pruning Vineyards in Winter",
				Content:   "Cut back last season's growth to two buds per spur.",
				URL:       "https://garden.example.org/vines",
				Domain:    "garden.example.org",
				Authority: 0.3,
			},
		},
		Entities: []kg.Entity{{Name: "RRF", Kind: "algorithm"}},
	}
	data, err := json.Marshal(corpus)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeLaneConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fluxrank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lanes:
  enabled: [keyword, vector, knowledge_graph]
`), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCmd_TextOutput(t *testing.T) {
	out, err := runCLI(t,
		"query", "reciprocal rank fusion",
		"--config", writeLaneConfig(t),
		"--corpus", writeTestCorpus(t),
	)

	require.NoError(t, err)
	assert.Contains(t, out, "Reciprocal Rank Fusion in Practice")
	assert.Contains(t, out, "search.example.com")
	assert.Contains(t, out, "results")
}

func TestQueryCmd_JSONOutput(t *testing.T) {
	out, err := runCLI(t,
		"query", "reciprocal rank fusion",
		"--config", writeLaneConfig(t),
		"--corpus", writeTestCorpus(t),
		"--format", "json",
	)

	require.NoError(t, err)

	var fused retrieval.FusedResult
	require.NoError(t, json.Unmarshal([]byte(out), &fused))
	assert.NotEmpty(t, fused.RunID)
	assert.Greater(t, fused.TotalResults, 0)
	assert.Len(t, fused.Citations, fused.TotalResults)
	assert.Equal(t, 3, fused.Metadata.TotalLanes)
}

func TestQueryCmd_NoCorpusIsEmptyRun(t *testing.T) {
	out, err := runCLI(t,
		"query", "anything at all",
		"--config", writeLaneConfig(t),
	)

	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestQueryCmd_MissingQueryArg(t *testing.T) {
	_, err := runCLI(t, "query", "--config", writeLaneConfig(t))
	assert.Error(t, err)
}

func TestQueryCmd_BadCorpusPath(t *testing.T) {
	_, err := runCLI(t,
		"query", "q",
		"--config", writeLaneConfig(t),
		"--corpus", filepath.Join(t.TempDir(), "missing.json"),
	)
	assert.Error(t, err)
}

func TestParseConstraints(t *testing.T) {
	constraints, err := parseConstraints([]string{
		"category=docs",
		"keyword:domain=go.dev",
		"markets:symbol=AAPL",
	})

	require.NoError(t, err)
	require.Len(t, constraints, 3)
	assert.Equal(t, retrieval.Constraint{Field: "category", Value: "docs"}, constraints[0])
	assert.Equal(t, retrieval.Constraint{Lane: retrieval.LaneKeyword, Field: "domain", Value: "go.dev"}, constraints[1])
	assert.Equal(t, retrieval.Constraint{Lane: retrieval.LaneMarkets, Field: "symbol", Value: "AAPL"}, constraints[2])
}

func TestParseConstraints_Invalid(t *testing.T) {
	for _, raw := range []string{"novalue", "field="} {
		_, err := parseConstraints([]string{raw})
		assert.Error(t, err, "input %q", raw)
	}
}
