package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/promptstudio/internal/app"
	"github.com/mihaimyh/promptstudio/pkg/credential"
)

func newKeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the provider API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(_ context.Context, a *app.App) error {
				if a.Credentials.Configured() {
					fmt.Fprintln(cmd.OutOrStdout(), "an API key is configured")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "no API key is configured")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [KEY]",
		Short: "Store an API key; read from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key from stdin: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Credentials.Set(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "API key %s saved\n", credential.Mask(strings.TrimSpace(key)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Credentials.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
				return nil
			})
		},
	})

	return cmd
}
