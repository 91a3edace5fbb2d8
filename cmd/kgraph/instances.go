package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/registry"
)

func newInstancesCmd(a *app) *cobra.Command {
	var (
		name   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List kgraph servers announced in the service registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Registry.Enabled() {
				return errors.New("no registry endpoints configured (set registry.endpoints or KGRAPH_REGISTRY_ENDPOINTS)")
			}

			ctx := cmd.Context()
			reg, err := registry.NewClient(ctx, a.cfg.Registry)
			if err != nil {
				return err
			}
			defer kgraph.CloseWithLog(reg, a.logger, "service registry")

			instances, err := reg.Discover(ctx, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, instances)
			}
			if len(instances) == 0 {
				fmt.Fprintln(out, "No instances registered.")
				return nil
			}
			for _, in := range instances {
				fmt.Fprintf(out, "%s  %s  build=%s  started=%s\n",
					in.InstanceID, in.Endpoint, in.BuildID, in.StartedAt.Format("2006-01-02 15:04:05Z07:00"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", registry.DefaultName, "service name to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print instances as JSON")
	return cmd
}
