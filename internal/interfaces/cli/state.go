package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the last-seen state of a channel",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <channel-id>",
	Short: "Print the remembered item ids of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			state, ok, err := a.service.ChannelState(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No state recorded for %s.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d item(s)):\n", a.registry.DisplayName(state.ChannelID), state.ChannelID, len(state.RecentItemIDs))
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(state.RecentItemIDs, "\n"))
			return nil
		})
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <channel-id>",
	Short: "Forget the state of a channel; the next cycle seeds it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.service.ResetState(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset state of %s\n", args[0])
			return nil
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the local stores",
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge expired lookup and state entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			report, err := a.service.CleanupCaches(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired lookup entries and %d expired state entries.\n", report.Lookup, report.State)
			return nil
		})
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
}
