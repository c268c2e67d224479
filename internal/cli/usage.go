package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/promptstudio/internal/app"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

func newUsageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				for _, kind := range ledger.Kinds {
					fmt.Fprintln(out, a.Ledger.RemainingDisplay(ctx, kind).String())
				}
				fmt.Fprintf(out, "resets in %s\n", ledger.FormatCountdown(a.Ledger.TimeUntilReset()))
				return nil
			})
		},
	}
}
