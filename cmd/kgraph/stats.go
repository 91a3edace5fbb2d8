package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/health"
	"github.com/zero-day-ai/kgraph/retriever"
)

type statsReport struct {
	Health health.Status `json:"health"`
	Store  health.Status `json:"store"`
	Graph  graph.Stats   `json:"graph"`
	Header graph.Header  `json:"header"`
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report artifact and graph health",
		Long:  "Check the stored artifact, load it and print node and edge counts. Exits non-zero when the artifact is unhealthy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer kgraph.CloseWithLog(st, a.logger, "artifact store")

			storeStatus := health.StoreCheck(ctx, st)

			r, err := retriever.New(ctx, st, a.cfg.RetrieverOptions(a.logger)...)
			if err != nil {
				return err
			}
			stats := r.Stats()

			report := statsReport{
				Health: health.Combine(storeStatus, health.GraphCheck(stats)),
				Store:  storeStatus,
				Graph:  stats,
				Header: r.Header(),
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Status:   %s (%s)\n", report.Health.Status, report.Health.Message)
				fmt.Fprintf(out, "Store:    %s (%s)\n", st.Location(), storeStatus.Status)
				if report.Header.BuildID != "" {
					fmt.Fprintf(out, "Build:    %s at %s\n", report.Header.BuildID, report.Header.BuiltAt.Format("2006-01-02 15:04:05Z07:00"))
				}
				fmt.Fprintf(out, "Nodes:    %d (%d policies, %d entities)\n", stats.Nodes, stats.PolicyNodes, stats.EntityNodes)
				fmt.Fprintf(out, "Edges:    %d\n", stats.Edges)

				relations := make([]string, 0, len(stats.Relations))
				for rel := range stats.Relations {
					relations = append(relations, string(rel))
				}
				sort.Strings(relations)
				for _, rel := range relations {
					fmt.Fprintf(out, "  %-16s %d\n", rel, stats.Relations[graph.Relation(rel)])
				}
			}

			if report.Health.IsUnhealthy() {
				return errors.New(report.Health.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
