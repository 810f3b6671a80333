package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parlo/internal/api"
	"parlo/internal/daemon"
	"parlo/internal/engine"
	"parlo/internal/logging"
	"parlo/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the parlo daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			eng, err := engine.New(cfg, st, logger)
			if err != nil {
				_ = st.Close()
				return fmt.Errorf("build engine: %w", err)
			}

			d, err := daemon.New(cfg, st, eng, logger)
			if err != nil {
				_ = st.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "parlo daemon listening on %s\n", d.Addr())

			<-runCtx.Done()
			logger.Info("parlo shutting down")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.apiGet("/api/status", 0, &status); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "running:  %v\n", status.Running)
			fmt.Fprintf(out, "pid:      %d\n", status.PID)
			fmt.Fprintf(out, "database: %s\n", status.DBPath)
			fmt.Fprintf(out, "lock:     %s\n", status.LockFilePath)
			return nil
		},
	}
}
