package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/torznab-title-mapper/internal/config"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type commandContext struct {
	configFlag string
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "torznab-mapper",
		Short:         "Torznab proxy that maps search titles and rewrites result titles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.serve(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(
		newServeCommand(cc),
		newReconcileCommand(cc),
		newMappingsCommand(cc),
		newResolveCommand(cc),
	)
	return rootCmd
}

// loadConfig reads the configuration and applies its log level.
func (cc *commandContext) loadConfig() (*config.Config, error) {
	cfg, err := config.New(cc.configFlag)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))
	return cfg, nil
}
