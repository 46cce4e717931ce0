package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/server"

	"github.com/spf13/cobra"
)

var listenAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in, schedule polls and keep polling until interrupted",
	Long: `Run the poll daemon.

On start bridgypoll re-arms alarms persisted by earlier runs, logs in to
Bridgy and then makes sure every enabled silo has its poll alarm. Each
time an alarm fires the matching silo is polled. A poll that is still
running when its next alarm fires makes that firing a no-op.

With --listen (or server.enabled in the config) a status server exposes
/healthz, /alarms, /silos/{silo}/state and /metrics.`,
	Example: `  # Run with defaults
  bridgypoll run

  # Run with the status server on port 8089
  bridgypoll run --listen 127.0.0.1:8089`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "address for the status server (enables it)")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if listenAddr != "" {
		a.cfg.Server.Enabled = true
		a.cfg.Server.Listen = listenAddr
	}

	creds, err := a.credentials()
	if err != nil {
		return err
	}

	if err := a.registry.Start(ctx); err != nil {
		return err
	}

	var enabled []string
	for _, s := range a.catalog.Enabled() {
		enabled = append(enabled, s.Name())
	}
	logger.LogComponentStart(a.log, "bridgypoll", map[string]interface{}{
		"silos":     enabled,
		"frequency": a.cfg.Poll.FrequencyMinutes,
		"storage":   a.cfg.Storage.Backend,
		"bridgy":    a.cfg.Bridgy.BaseURL,
	})

	serverDone := make(chan struct{})
	if a.cfg.Server.Enabled {
		srv := server.New(a.cfg.Server.Listen, server.Deps{
			Registry:  a.registry,
			Catalog:   a.catalog,
			Local:     a.stores.Local,
			Scheduler: a.scheduler,
			Metrics:   a.metrics.Handler(),
			Logger:    a.log,
			StartTime: a.started,
		})
		go func() {
			defer close(serverDone)
			if err := srv.Start(ctx); err != nil {
				a.log.WithError(err).Error("Status server failed")
				stop()
			}
		}()
	} else {
		close(serverDone)
	}

	err = a.scheduler.Run(ctx, creds)
	stop()
	<-serverDone

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	reason := "interrupted"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(a.log, "bridgypoll", reason)
	return err
}
