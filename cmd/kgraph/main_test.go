package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/kgraph/retriever"
)

const testPolicies = `{
  "policies": {
    "return_policy": {
      "id": "POL-001",
      "title": "Return and Refund Policy",
      "category": "customer_service",
      "content": {"return_window": "30 days"}
    },
    "shipping_policy": {
      "id": "POL-002",
      "title": "Shipping Policy",
      "category": "shipping",
      "content": {"standard": "5 business days"}
    }
  }
}`

const testEntities = `entities:
  product_category: [Electronics]
`

const testRelationships = `relationships:
  entity_connections:
    - from: Electronics
      to: return_policy
      relation: governed_by
      strength: 0.9
`

// writeWorkspace lays out a knowledge base and a configuration file that
// points the file store into the same temp directory.
func writeWorkspace(t *testing.T) (configPath, artifactPath string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "policies.json"), []byte(testPolicies), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "entities.yaml"), []byte(testEntities), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "relationships.yaml"), []byte(testRelationships), 0o644))

	artifactPath = filepath.Join(dir, "graphs", "graph.json")
	cfg := "data_dir: " + dataDir + "\n" +
		"store:\n  backend: file\n  path: " + artifactPath + "\n" +
		"log:\n  level: error\n  format: text\n"
	configPath = filepath.Join(dir, "kgraph.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, artifactPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	configPath, artifactPath := writeWorkspace(t)

	out, err := run(t, "--config", configPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Built knowledge graph")
	assert.Contains(t, out, "(2 policies, 1 entities)")
	assert.FileExists(t, artifactPath)
}

func TestBuildCommandJSON(t *testing.T) {
	configPath, artifactPath := writeWorkspace(t)

	out, err := run(t, "--config", configPath, "build", "--json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, float64(3), report["nodes"])
	assert.Equal(t, artifactPath, report["location"])
	assert.NotEmpty(t, report["build_id"])
}

func TestBuildCommandNoPolicies(t *testing.T) {
	configPath, artifactPath := writeWorkspace(t)
	dataDir := filepath.Join(filepath.Dir(configPath), "data")
	require.NoError(t, os.Remove(filepath.Join(dataDir, "policies.json")))

	_, err := run(t, "--config", configPath, "build")
	require.Error(t, err)
	assert.NoFileExists(t, artifactPath)
}

func TestQueryCommand(t *testing.T) {
	configPath, _ := writeWorkspace(t)
	_, err := run(t, "--config", configPath, "build")
	require.NoError(t, err)

	out, err := run(t, "--config", configPath, "query", "what", "is", "your", "return", "policy", "--json")
	require.NoError(t, err)

	var docs []retriever.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.NotEmpty(t, docs)
	assert.Equal(t, "POL-001", docs[0].ID)
	assert.Equal(t, retriever.RetrievalMethodGraphTraversal, docs[0].RetrievalMethod)
	for _, d := range docs {
		assert.Contains(t, d.NodeID, "policy::")
	}
}

func TestQueryCommandFilter(t *testing.T) {
	configPath, _ := writeWorkspace(t)
	_, err := run(t, "--config", configPath, "build")
	require.NoError(t, err)

	out, err := run(t, "--config", configPath, "query", "policy", "--filter", `category == "shipping"`, "--json")
	require.NoError(t, err)

	var docs []retriever.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "POL-002", docs[0].ID)

	_, err = run(t, "--config", configPath, "query", "policy", "--filter", "category ==")
	assert.Error(t, err)
}

func TestQueryCommandWithoutArtifact(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	out, err := run(t, "--config", configPath, "query", "return policy")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestStatsCommand(t *testing.T) {
	configPath, artifactPath := writeWorkspace(t)

	out, err := run(t, "--config", configPath, "stats")
	require.NoError(t, err, "a missing artifact is degraded, not a failure")
	assert.Contains(t, out, "degraded")

	_, err = run(t, "--config", configPath, "build")
	require.NoError(t, err)

	out, err = run(t, "--config", configPath, "stats", "--json")
	require.NoError(t, err)

	var report struct {
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
		Graph struct {
			Nodes       int `json:"nodes"`
			PolicyNodes int `json:"policy_nodes"`
		} `json:"graph"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", report.Health.Status)
	assert.Equal(t, 3, report.Graph.Nodes)
	assert.Equal(t, 2, report.Graph.PolicyNodes)

	require.NoError(t, os.WriteFile(artifactPath, []byte("{not json"), 0o644))
	_, err = run(t, "--config", configPath, "stats")
	assert.Error(t, err)
}

func TestInstancesRequiresRegistry(t *testing.T) {
	configPath, _ := writeWorkspace(t)

	_, err := run(t, "--config", configPath, "instances")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registry endpoints")
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))

	_, err := run(t, "--config", path, "stats")
	assert.Error(t, err)
}
