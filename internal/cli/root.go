// Package cli implements the promptstudio command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/promptstudio/internal/app"
	"github.com/mihaimyh/promptstudio/internal/config"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

var Version = "dev"

type rootOptions struct {
	configPath string
	appOpts    app.Options
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(app.Options{})
}

func newRootCmd(appOpts app.Options) *cobra.Command {
	opts := &rootOptions{appOpts: appOpts}

	root := &cobra.Command{
		Use:           "promptstudio",
		Short:         "Quota-metered image prompt studio",
		Long:          "promptstudio drafts, translates and checks image generation prompts and generates images, within daily text and image quotas.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./promptstudio.yaml or ~/.promptstudio/promptstudio.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newUsageCmd(opts),
		newImageCmd(opts),
		newTranslateCmd(opts),
		newIdeaCmd(opts),
		newRandomCmd(opts),
		newOptimizeCmd(opts),
		newDetailedCmd(opts),
		newCheckCmd(opts),
		newChatCmd(opts),
		newLibraryCmd(opts),
		newKeyCmd(opts),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("promptstudio %s\n", Version))

	return root
}

// withApp loads the configuration, wires the app and runs fn with it.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, o.appOpts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			fmt.Fprintln(os.Stderr, perr.Message())
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
