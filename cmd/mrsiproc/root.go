package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mrsiproc/pkg/config"
)

// commandContext carries the persistent flag values and the lazily
// loaded configuration shared by all subcommands.
type commandContext struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func (ctx *commandContext) ensureConfig() (*config.Config, error) {
	if ctx.cfg != nil {
		return ctx.cfg, nil
	}
	cfg, err := config.LoadConfig(ctx.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	ctx.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "mrsiproc",
		Short:         "Processing utilities for MRSI phantom and subject measurements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.verbose || cfg.Output.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "config.yaml", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRotateCommand(ctx))
	rootCmd.AddCommand(newHeatmapCommand(ctx))
	rootCmd.AddCommand(newT1FitCommand(ctx))
	rootCmd.AddCommand(newT2FitCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newDcmRenameCommand())
	rootCmd.AddCommand(newDcmInspectCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
