package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/drata-client/pkg/node"
	"github.com/Sternrassler/drata-client/pkg/poll"
	"github.com/Sternrassler/drata-client/pkg/resources"
)

func newTestCredentialsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-credentials",
		Short: "Verify the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := &node.StaticHost{Creds: a.cfg.Credentials()}
			if err := node.VerifyCredentials(cmd.Context(), host); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials OK")
			return nil
		},
	}
}

func newOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations [resource]",
		Short: "List the supported resource operations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range resources.Default().Keys() {
				if len(args) == 1 && key.Resource != args[0] {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", key.Resource, key.Operation)
			}
			return nil
		},
	}
}

func newEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the event types the trigger can poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, event := range poll.EventTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), event)
			}
			return nil
		},
	}
}
