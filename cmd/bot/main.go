package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Leryan/flobot/internal/app"
	"github.com/Leryan/flobot/internal/config"
	"github.com/Leryan/flobot/pkg/logx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	opts := app.Options{Version: version}

	cmd := &cobra.Command{
		Use:           "flobot",
		Short:         "Mattermost bot: triggers, scheduled tasks and a few helpers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(opts)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Log every event and force the debug log level.")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Optional JSON or YAML config file, reloaded on change.")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "KEY=VALUE file loaded into the environment before the config.")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flobot version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logx.NewConsole("error").Error("flobot exited", logx.Err(err))
		os.Exit(1)
	}
}
