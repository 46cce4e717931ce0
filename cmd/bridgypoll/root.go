package main

import (
	"fmt"
	"os"
	"runtime"

	"bridgypoll/pkg/config"
	"bridgypoll/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile     string
	logLevel       string
	bridgyURL      string
	dataDir        string
	storageBackend string
	quiet          bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bridgypoll",
	Short: "Keep Bridgy browser sources polled on a schedule",
	Long: `bridgypoll triggers Bridgy polls for your browser-based silos.

It logs in to Bridgy once, registers one recurring alarm per enabled silo
(every 30 minutes, first run after 5) and asks Bridgy to poll the silo
each time the alarm fires. Alarms persist across restarts.

Silos are enabled in the configuration file:

  silos:
    facebook:
      enabled: true
    instagram:
      enabled: false`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./bridgypoll.yaml or ~/.config/bridgypoll/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&bridgyURL, "bridgy-url", "", "Bridgy base URL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the file storage backend")
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "", "storage backend (file, redis)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`bridgypoll {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bridgypoll %s\n", rootCmd.Version)
	},
}

// commandFlags collects the global flags that override configuration
func commandFlags() map[string]interface{} {
	return map[string]interface{}{
		"bridgy-url": bridgyURL,
		"data-dir":   dataDir,
		"storage":    storageBackend,
		"log-level":  logLevel,
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile, commandFlags())
}

func printer(cmd *cobra.Command) *ui.Printer {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.SetQuiet(quiet)
	return p
}
