package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/silo"
	"bridgypoll/pkg/store"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll <silo>",
	Short: "Ask Bridgy to poll a silo now",
	Long: `Poll a silo immediately, outside its schedule. Disabled silos can be
polled this way too.`,
	Example: `  bridgypoll poll facebook`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPoll,
}

var statusCmd = &cobra.Command{
	Use:     "status <silo>",
	Short:   "Show Bridgy's status for a silo's source",
	Example: `  bridgypoll status facebook`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(pollCmd, statusCmd)
}

func lookupSilo(a *app, name string) (silo.Silo, error) {
	s, ok := a.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown silo %q", name)
	}
	return s, nil
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := lookupSilo(a, args[0])
	if err != nil {
		return err
	}
	if !a.catalog.IsEnabled(s.Name()) {
		out.Warning("Silo is disabled; polling anyway", s.Name())
	}

	start := time.Now()
	err = s.Poll(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	logger.LogPoll(a.log, s.Name(), status, time.Since(start), err)
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Bridgy is polling %s", s.Name()))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := lookupSilo(a, args[0])
	if err != nil {
		return err
	}

	token, key, err := sourceCredentials(ctx, a, s.Name())
	if err != nil {
		return err
	}

	status, err := a.bridgy.Status(ctx, s.Name(), token, key)
	if err != nil {
		return err
	}

	out.Info("Silo", s.Name())
	out.Info("Status", status.Status)
	if status.PollSeconds > 0 {
		out.Info("Poll interval", (time.Duration(status.PollSeconds) * time.Second).String())
	}
	out.Info("Enabled locally", strconv.FormatBool(a.catalog.IsEnabled(s.Name())))
	return nil
}

func sourceCredentials(ctx context.Context, a *app, name string) (token, key string, err error) {
	ok, err := a.stores.Sync.Get(ctx, store.TokenKey, &token)
	if err != nil {
		return "", "", err
	}
	if !ok || token == "" {
		return "", "", silo.ErrNoToken
	}

	ok, err = a.stores.Local.Get(ctx, store.SourceKeyKey(name), &key)
	if err != nil {
		return "", "", err
	}
	if !ok || key == "" {
		return "", "", fmt.Errorf("%s: %w", name, silo.ErrNoSourceKey)
	}
	return token, key, nil
}
