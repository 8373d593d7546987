package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/app/bootstrap"
)

// NewAPICmd creates the api subcommand.
func NewAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the HTTP API and the internal gRPC service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := bootstrap.NewRuntime(cmd.Context(), configFile)
			if err != nil {
				return wrapBootstrap("api", err)
			}
			if err := runtime.RunAPI(cmd.Context()); err != nil {
				return oops.Code("SERVE_FAILED").With("command", "api").Wrap(err)
			}
			return nil
		},
	}
}

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued notifications from the outbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := bootstrap.NewRuntime(cmd.Context(), configFile)
			if err != nil {
				return wrapBootstrap("worker", err)
			}
			if err := runtime.RunWorker(cmd.Context()); err != nil {
				return oops.Code("WORKER_FAILED").With("command", "worker").Wrap(err)
			}
			return nil
		},
	}
}
