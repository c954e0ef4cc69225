package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agriport/internal/app"
	"agriport/internal/distance"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the routing service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			defer cc.Logger.Sync()

			ctx, cancel := cc.commandContext(cmd.Context())
			defer cancel()

			client := distance.NewClient(app.RoutingConfig(cc.Config.OSRM), distance.WithLogger(cc.Logger))
			baseURL := client.Config().BaseURL
			if !client.CheckConnection(ctx) {
				return fmt.Errorf("routing service at %s is not reachable", baseURL)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "routing service at %s is reachable\n", baseURL)
			return nil
		},
	}
}
