package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"channelwatch/internal/application"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one poll cycle and print its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			report, err := a.scheduler.RunCycle(ctx)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				if isFatal(err) {
					return fmt.Errorf("cannot poll: %w", err)
				}
				return err
			}
			return nil
		})
	},
}

func printReport(w io.Writer, r *application.CycleReport) {
	fmt.Fprintf(w, "Cycle %s (%s)\n", r.ID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Channels: %d, checked: %d, seeded: %d, skipped: %d\n", r.Channels, r.Checked, r.Seeded, r.Skipped)
	fmt.Fprintf(w, "New items: %d, notified: %d, failed: %d\n", r.NewItems, r.Notified, r.Failed)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  ! %s: %s\n", f.Channel, f.Reason)
	}
}
