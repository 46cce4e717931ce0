package main

import (
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Log in and register missing poll alarms, then exit",
	Long: `Log in to Bridgy and register the poll alarm of every enabled silo that
does not have one yet. Existing alarms are left untouched, so running this
repeatedly is safe. The alarms fire once 'bridgypoll run' is running.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.credentials()
	if err != nil {
		return err
	}
	if _, err := creds.Login(ctx); err != nil {
		return err
	}
	if err := a.scheduler.SchedulePoll(ctx); err != nil {
		return err
	}

	out.Success("Poll alarms registered")
	return printAlarms(cmd, a)
}
