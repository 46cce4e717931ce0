package main

import (
	"errors"
	"fmt"
	"os"

	"bridgypoll/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage bridgypoll configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (BRIDGYPOLL_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file is created as 'bridgypoll.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "bridgypoll.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	out := printer(cmd)
	out.Success("Configuration file created: " + configPath)
	out.Highlight("Next steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Enable the silos you use under 'silos'")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'bridgypoll config validate' to check the configuration")
	fmt.Fprintln(cmd.OutOrStdout(), "3. Start polling with 'bridgypoll run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	display := *cfg
	if display.Storage.Redis.Password != "" {
		display.Storage.Redis.Password = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	printer(cmd).Highlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := printer(cmd)

	cfg, err := loadConfig()
	if err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			out.Error("Configuration has errors")
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e)
			}
		}
		return err
	}

	if len(cfg.EnabledSilos()) == 0 {
		out.Warning("No silo is enabled; nothing will be polled")
	}

	out.Success("Configuration is valid")
	out.Info("Bridgy", cfg.Bridgy.BaseURL)
	out.Info("Enabled silos", fmt.Sprintf("%v", cfg.EnabledSilos()))
	out.Info("Poll every", fmt.Sprintf("%gm (first after %gm)", cfg.Poll.FrequencyMinutes, cfg.Poll.InitialDelayMinutes))
	out.Info("Storage", cfg.Storage.Backend)
	out.Info("Log level", cfg.Logging.Level)
	return nil
}
