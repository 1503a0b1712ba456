package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage watched channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			records, err := a.service.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tCHANNEL ID")
			for _, record := range records {
				channelID := record.ChannelID()
				if channelID == "" {
					channelID = "(unresolved)"
				}
				fmt.Fprintf(w, "%s\t%s\n", record.Identifier, channelID)
			}
			return w.Flush()
		})
	},
}

var channelsAddCmd = &cobra.Command{
	Use:   "add <identifier>",
	Short: "Add a channel by id or @handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			record, err := a.service.Add(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s", record.Identifier)
			if record.ResolvedID != "" && record.ResolvedID != record.Identifier {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", record.ResolvedID)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

var channelsRemoveCmd = &cobra.Command{
	Use:     "remove <identifier>",
	Aliases: []string{"rm"},
	Short:   "Stop watching a channel",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.service.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

var channelsRenameCmd = &cobra.Command{
	Use:   "rename <old-identifier> <new-identifier>",
	Short: "Change a channel's identifier, keeping its resolved id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.service.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

var channelsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge channels from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.registry.Import(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d channel(s) from %s\n", n, args[0])
			return nil
		})
	},
}

var channelsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the channel list to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.registry.Export(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported channels to %s\n", args[0])
			return nil
		})
	},
}

func init() {
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsAddCmd)
	channelsCmd.AddCommand(channelsRemoveCmd)
	channelsCmd.AddCommand(channelsRenameCmd)
	channelsCmd.AddCommand(channelsImportCmd)
	channelsCmd.AddCommand(channelsExportCmd)
}
