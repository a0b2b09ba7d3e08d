package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mrsiproc/pkg/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(data))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath
			if len(args) > 0 {
				path = args[0]
			}
			return config.CreateDefaultConfigFile(path)
		},
	}
	cmd.AddCommand(initCmd)

	return cmd
}
