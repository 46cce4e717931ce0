package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var clearAll bool

var alarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "Inspect and clear persisted poll alarms",
}

var alarmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered alarms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return printAlarms(cmd, a)
	},
}

var alarmsClearCmd = &cobra.Command{
	Use:   "clear [name]",
	Short: "Remove an alarm, or every alarm with --all",
	Long: `Remove persisted alarms. The next 'bridgypoll run' or 'bridgypoll schedule'
registers the poll alarms of enabled silos again.`,
	Example: `  bridgypoll alarms clear bridgy-facebook-poll
  bridgypoll alarms clear --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAlarmsClear,
}

func init() {
	alarmsClearCmd.Flags().BoolVar(&clearAll, "all", false, "remove every alarm")
	alarmsCmd.AddCommand(alarmsListCmd, alarmsClearCmd)
	rootCmd.AddCommand(alarmsCmd)
}

func runAlarmsClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer(cmd)

	if clearAll == (len(args) == 1) {
		return errors.New("give an alarm name or --all")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names := args
	if clearAll {
		all, err := a.registry.All(ctx)
		if err != nil {
			return err
		}
		names = nil
		for _, alarm := range all {
			names = append(names, alarm.Name)
		}
	}

	for _, name := range names {
		existed, err := a.registry.Clear(ctx, name)
		if err != nil {
			return err
		}
		if existed {
			out.Success("Cleared " + name)
		} else {
			out.Warning("No such alarm", name)
		}
	}
	return nil
}

func printAlarms(cmd *cobra.Command, a *app) error {
	out := printer(cmd)
	all, err := a.registry.All(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		out.Warning("No alarms registered")
		return nil
	}

	rows := make([][]string, 0, len(all))
	for _, alarm := range all {
		period := "once"
		if alarm.PeriodInMinutes > 0 {
			period = alarm.Period().String()
		}
		rows = append(rows, []string{
			alarm.Name,
			alarm.ScheduledTime.Local().Format(time.RFC3339),
			period,
		})
	}
	out.Table([]string{"NAME", "NEXT", "PERIOD"}, rows)
	return nil
}
