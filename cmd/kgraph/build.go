package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/builder"
)

func newBuildCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the knowledge base into the graph artifact",
		Long: `Load the knowledge base, build the graph and persist it to the configured store.

A knowledge base without policies fails the build and leaves the previous
artifact in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kb, err := a.loadKnowledge(ctx)
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer kgraph.CloseWithLog(st, a.logger, "artifact store")

			res, err := builder.New(st, a.cfg.BuilderOptions(a.logger)...).Build(ctx, kb)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}

			fmt.Fprintf(out, "Built knowledge graph %s\n", res.BuildID)
			fmt.Fprintf(out, "  nodes:    %d (%d policies, %d entities)\n",
				res.NodeCount, res.Stats.PolicyNodes, res.Stats.EntityNodes)
			fmt.Fprintf(out, "  edges:    %d\n", res.EdgeCount)
			fmt.Fprintf(out, "  location: %s\n", res.Location)
			fmt.Fprintf(out, "  duration: %s\n", res.Duration)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the build report as JSON")
	return cmd
}
