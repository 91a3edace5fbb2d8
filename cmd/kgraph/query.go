package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/filter"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/serve"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		k      int
		expr   string
		addr   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Retrieve policy documents for a query",
		Long: `Retrieve the top policy documents for a free-text query.

By default the artifact is loaded from the configured store. With --addr the
query is sent to a running kgraph server instead.`,
		Example: `  kgraph query "can I return headphones" -k 5
  kgraph query "shipping" --filter 'category == "shipping"'
  kgraph query "warranty" --addr localhost:50051 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			var docs []retriever.Document
			if addr != "" {
				client, conn, err := serve.Dial(addr)
				if err != nil {
					return err
				}
				defer conn.Close()

				docs, err = client.Retrieve(ctx, serve.RetrieveRequest{Query: query, K: k, Filter: expr})
				if err != nil {
					return err
				}
			} else {
				f, err := filter.Compile(expr)
				if err != nil {
					return err
				}

				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer kgraph.CloseWithLog(st, a.logger, "artifact store")

				r, err := retriever.New(ctx, st, a.cfg.RetrieverOptions(a.logger)...)
				if err != nil {
					return err
				}

				docs, err = f.Apply(r.Retrieve(ctx, query, k))
				if err != nil {
					a.logger.Warn("filter evaluation failed for some documents", "error", err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents found.")
				return nil
			}
			for i, d := range docs {
				fmt.Fprintf(out, "%d. %s [%s] score=%.3f id=%s\n", i+1, d.Title, d.Category, d.Score, d.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of documents to return (default from configuration)")
	cmd.Flags().StringVar(&expr, "filter", "", "CEL expression documents must satisfy")
	cmd.Flags().StringVar(&addr, "addr", "", "query a running server at host:port")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print documents as JSON")
	return cmd
}
