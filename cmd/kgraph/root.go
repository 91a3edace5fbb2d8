package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/kgraph/config"
	"github.com/zero-day-ai/kgraph/knowledge"
	"github.com/zero-day-ai/kgraph/store"
)

// app carries state shared by every subcommand once the configuration has
// been loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "kgraph",
		Short:         "Knowledge graph index and retriever",
		Long:          "kgraph compiles a knowledge base of policies, entities and relationships into a graph and answers queries by multi-hop traversal.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")

	root.AddCommand(
		newBuildCmd(a),
		newQueryCmd(a),
		newStatsCmd(a),
		newServeCmd(a),
		newInstancesCmd(a),
	)
	return root
}

// loadKnowledge reads the knowledge base from the configured file or
// directory. Missing or malformed sections are logged and left empty.
func (a *app) loadKnowledge(context.Context) (*knowledge.Base, error) {
	loader := knowledge.NewLoader(knowledge.WithLogger(a.logger))
	path, single := a.cfg.KnowledgePath()
	if single {
		return loader.LoadFile(path), nil
	}
	return loader.LoadDir(path), nil
}

func (a *app) openStore(ctx context.Context) (store.ArtifactStore, error) {
	return store.Open(ctx, a.cfg.Store, a.logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
