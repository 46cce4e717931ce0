package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"bridgypoll/pkg/store"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and edit per-silo state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <silo>",
	Short: "Show the stored source key, poll times and post counts of a silo",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateSetKeyCmd = &cobra.Command{
	Use:   "set-key <silo> <key>",
	Short: "Store the Bridgy source key of a silo",
	Long: `Store the Bridgy source key of a silo. Polls of a silo without a source
key fail until one is set.`,
	Args: cobra.ExactArgs(2),
	RunE: runStateSetKey,
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateSetKeyCmd)
	rootCmd.AddCommand(stateCmd)
}

func runStateShow(cmd *cobra.Command, args []string) error {
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

	state, err := store.LoadSiloState(ctx, a.stores.Local, s.Name())
	if err != nil {
		return err
	}

	out.Info("Silo", s.Name())
	out.Info("Enabled", strconv.FormatBool(a.catalog.IsEnabled(s.Name())))
	out.Info("Alarm", s.AlarmName())
	if state.SourceKey != "" {
		out.Info("Source key", state.SourceKey)
	} else {
		out.Warning("No Bridgy source key stored")
	}
	out.Info("Last start", formatTime(state.LastStart))
	out.Info("Last success", formatTime(state.LastSuccess))

	if len(state.Posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(state.Posts))
	for id := range state.Posts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		p := state.Posts[id]
		rows = append(rows, []string{id, strconv.Itoa(p.Comments), strconv.Itoa(p.Reactions)})
	}
	out.Table([]string{"POST", "COMMENTS", "REACTIONS"}, rows)
	return nil
}

func runStateSetKey(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := lookupSilo(a, args[0])
	if err != nil {
		return err
	}
	if err := a.stores.Local.Set(ctx, store.SourceKeyKey(s.Name()), args[1]); err != nil {
		return err
	}
	printer(cmd).Success(fmt.Sprintf("Source key stored for %s", s.Name()))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
