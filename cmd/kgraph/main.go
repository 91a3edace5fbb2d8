// Command kgraph builds, inspects and serves a knowledge graph.
//
//	kgraph build                    compile the knowledge base into the artifact
//	kgraph query "return policy"    retrieve documents
//	kgraph stats                    report artifact and graph health
//	kgraph serve --watch            serve GraphRetriever over gRPC
//	kgraph instances                list servers announced in the registry
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
