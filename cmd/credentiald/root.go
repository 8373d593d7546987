package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/default.yaml"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the credentiald CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentiald",
		Short: "Session and credential lifecycle service",
		Long: `credentiald manages login sessions, email verification codes and
password reset links. Notifications are written to an outbox and
delivered by the worker process.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigPath, "config file path")

	cmd.AddCommand(NewAPICmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
