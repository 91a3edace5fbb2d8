package health

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/store"
)

// FileCheck verifies that a file or directory exists at the specified path.
// It returns healthy if the path exists, unhealthy otherwise.
//
// Example:
//
//	status := health.FileCheck("data/policies.json")
//	if status.IsUnhealthy() {
//	    log.Fatal("knowledge base is missing")
//	}
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{
					"path": path,
				},
			)
		}

		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	return Healthy(fmt.Sprintf("%s '%s' exists", fileType, path))
}

// GraphCheck grades a loaded graph. An empty graph is degraded rather than
// unhealthy: queries still succeed, they just return no documents.
func GraphCheck(stats graph.Stats) Status {
	details := map[string]any{
		"nodes":        stats.Nodes,
		"edges":        stats.Edges,
		"policy_nodes": stats.PolicyNodes,
		"entity_nodes": stats.EntityNodes,
	}

	if stats.Nodes == 0 {
		return Degraded("graph is empty, queries return no documents", details)
	}
	if stats.PolicyNodes == 0 {
		return Degraded("graph has no policy nodes", details)
	}

	return Status{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("graph loaded with %d nodes and %d edges", stats.Nodes, stats.Edges),
		Details: details,
	}
}

// StoreCheck loads the artifact from st and decodes it. A missing artifact
// is degraded (nothing has been built yet); read or decode failures are
// unhealthy.
func StoreCheck(ctx context.Context, st store.ArtifactStore) Status {
	if st == nil {
		return Unhealthy("no artifact store configured", nil)
	}

	details := map[string]any{"location": st.Location()}

	data, err := st.Load(ctx)
	if err != nil {
		details["error"] = err.Error()
		if errors.Is(err, kgraph.ErrArtifactNotFound) {
			return Degraded("graph artifact not built yet", details)
		}
		return Unhealthy("failed to read graph artifact", details)
	}

	_, h, err := graph.Unmarshal(data)
	if err != nil {
		details["error"] = err.Error()
		return Unhealthy("graph artifact is corrupt", details)
	}

	details["build_id"] = h.BuildID
	details["built_at"] = h.BuiltAt
	details["nodes"] = h.NodeCount
	details["edges"] = h.EdgeCount
	return Status{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("artifact %s readable", st.Location()),
		Details: details,
	}
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
//
// Example:
//
//	status := health.Combine(
//	    health.FileCheck(cfg.DataDir),
//	    health.StoreCheck(ctx, st),
//	)
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.Status {
		case StatusUnhealthy:
			unhealthyChecks = append(unhealthyChecks, msg)
		case StatusDegraded:
			degradedChecks = append(degradedChecks, msg)
		case StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
