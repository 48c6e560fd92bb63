// Command otmitm is the single binary for this proxy: "otmitm daemon"
// runs the supervisor (relay, world model, tasks, dashboard); every
// other subcommand is an operator CLI client talking to an already
// running daemon's dashboard control API.
//
// Grounded on ehrlich-b-wingthing's cmd/wt/main.go, which splits the
// same way between a daemonCmd() that loads config and blocks serving,
// and every other cobra subcommand acting as a thin client of that
// daemon's transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"otmitm/application/logging"
	"otmitm/application/supervisor"
	"otmitm/cli"
	"otmitm/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := cli.NewRootCommand("http://127.0.0.1:8089")
	root.AddCommand(daemonCmd())
	return root
}

func daemonCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "start the proxy, world model, task host, and dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := logging.NewStdLogger()
			sup, err := supervisor.New(cfg, log)
			if err != nil {
				return fmt.Errorf("build supervisor: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return sup.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "otmitm.yaml", "path to the YAML process config")
	return cmd
}
