package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				if err := app.api.Ping(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: offline\n", cc.config.ServerEndpointAddr)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: online\n", cc.config.ServerEndpointAddr)
				return nil
			})
		},
	}
}
