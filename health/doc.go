// Package health reports whether a kgraph deployment can answer queries.
//
// Checks return a Status that is healthy, degraded or unhealthy:
//
//   - FileCheck: a knowledge base file or directory exists
//   - GraphCheck: a loaded graph has policy nodes
//   - StoreCheck: the artifact store holds a decodable artifact
//   - Combine: aggregate several checks into one status
//
// Degraded means the service still answers but with reduced usefulness.
// A deployment whose graph was never built is degraded, not unhealthy,
// because retrieval against an empty graph returns an empty result instead
// of failing.
//
//	overall := health.Combine(
//	    health.FileCheck(cfg.DataDir),
//	    health.StoreCheck(ctx, st),
//	)
//	if overall.IsUnhealthy() {
//	    log.Printf("health check failed: %s %+v", overall.Message, overall.Details)
//	}
package health
