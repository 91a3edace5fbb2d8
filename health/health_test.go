package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/store"
)

func TestFileCheck(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "policies.json")
	if err := os.WriteFile(tmpFile, []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	tests := []struct {
		name          string
		path          string
		expectHealthy bool
	}{
		{name: "existing file", path: tmpFile, expectHealthy: true},
		{name: "existing directory", path: tmpDir, expectHealthy: true},
		{name: "missing path", path: filepath.Join(tmpDir, "nope.json"), expectHealthy: false},
		{name: "empty path", path: "", expectHealthy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FileCheck(tt.path)

			if tt.expectHealthy != status.IsHealthy() {
				t.Errorf("expected healthy=%v, got %s: %s", tt.expectHealthy, status.Status, status.Message)
			}
			if status.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestGraphCheck(t *testing.T) {
	tests := []struct {
		name   string
		stats  graph.Stats
		expect string
	}{
		{name: "empty graph", stats: graph.Stats{}, expect: StatusDegraded},
		{name: "entities only", stats: graph.Stats{Nodes: 2, EntityNodes: 2}, expect: StatusDegraded},
		{name: "populated", stats: graph.Stats{Nodes: 3, Edges: 2, PolicyNodes: 2, EntityNodes: 1}, expect: StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := GraphCheck(tt.stats)
			if status.Status != tt.expect {
				t.Errorf("expected %s, got %s: %s", tt.expect, status.Status, status.Message)
			}
			if status.Details["nodes"] != tt.stats.Nodes {
				t.Errorf("expected nodes detail %d, got %v", tt.stats.Nodes, status.Details["nodes"])
			}
		})
	}
}

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	missing := store.NewFileStore(filepath.Join(dir, "missing.json"))
	if status := StoreCheck(ctx, missing); !status.IsDegraded() {
		t.Errorf("missing artifact: expected degraded, got %s: %s", status.Status, status.Message)
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corruptPath, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if status := StoreCheck(ctx, store.NewFileStore(corruptPath)); !status.IsUnhealthy() {
		t.Errorf("corrupt artifact: expected unhealthy, got %s: %s", status.Status, status.Message)
	}

	g := graph.New()
	if _, _, err := g.AddNode(graph.NewPolicyNode(graph.Policy{Key: "p", Title: "Returns"})); err != nil {
		t.Fatal(err)
	}
	data, err := graph.Marshal(g, graph.Header{BuildID: "b-1"})
	if err != nil {
		t.Fatal(err)
	}
	good := store.NewFileStore(filepath.Join(dir, "graph.json"))
	if err := good.Save(ctx, data); err != nil {
		t.Fatal(err)
	}
	status := StoreCheck(ctx, good)
	if !status.IsHealthy() {
		t.Fatalf("expected healthy, got %s: %s", status.Status, status.Message)
	}
	if status.Details["build_id"] != "b-1" {
		t.Errorf("expected build_id b-1, got %v", status.Details["build_id"])
	}

	if status := StoreCheck(ctx, nil); !status.IsUnhealthy() {
		t.Errorf("nil store: expected unhealthy, got %s", status.Status)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name   string
		checks []Status
		expect string
	}{
		{name: "no checks", checks: nil, expect: StatusHealthy},
		{name: "all healthy", checks: []Status{Healthy("a"), Healthy("b")}, expect: StatusHealthy},
		{name: "one degraded", checks: []Status{Healthy("a"), Degraded("b", nil)}, expect: StatusDegraded},
		{name: "unhealthy wins", checks: []Status{Degraded("a", nil), Unhealthy("b", nil), Healthy("c")}, expect: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Combine(tt.checks...)
			if status.Status != tt.expect {
				t.Errorf("expected %s, got %s: %s", tt.expect, status.Status, status.Message)
			}
		})
	}

	status := Combine(Unhealthy("", nil))
	failed, ok := status.Details["failed_checks"].([]string)
	if !ok || len(failed) != 1 || failed[0] != "unnamed check" {
		t.Errorf("expected unnamed check in failed_checks, got %v", status.Details["failed_checks"])
	}
}
