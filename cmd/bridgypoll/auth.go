package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"bridgypoll/pkg/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	tokenFlag string
	showToken bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Bridgy token",
	Long: `Manage the Bridgy token used to authenticate polls.

The token is looked up in:
  - Synced storage (where polls read it from)
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The BRIDGYPOLL_TOKEN environment variable

When none has a token, login generates one.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store or generate the Bridgy token",
	Long: `Store a Bridgy token. You are prompted for it (input is hidden); leave
the prompt empty to generate a new token instead.`,
	Example: `  # Interactive
  bridgypoll auth login

  # Non-interactive
  bridgypoll auth login --token "$TOKEN"`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored Bridgy token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the current Bridgy token (masked unless --show)",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	loginCmd.Flags().StringVar(&tokenFlag, "token", "", "token to store instead of prompting")
	tokenCmd.Flags().BoolVar(&showToken, "show", false, "print the token unmasked")

	authCmd.AddCommand(loginCmd, logoutCmd, tokenCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.credentials()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	token := tokenFlag
	if token == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Bridgy token (leave empty to generate one): ")
		token, err = readPassword()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	if token == "" {
		token, err = manager.Login(ctx)
		if err != nil {
			return err
		}
	} else if err := manager.SetToken(ctx, token); err != nil {
		return err
	}

	out.Success("Bridgy token stored")
	out.Info("Token", auth.MaskToken(token))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.credentials()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Logout(ctx); err != nil {
		return err
	}
	printer(cmd).Success("Bridgy token removed")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.credentials()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	token, err := manager.Token(ctx)
	if err != nil {
		return fmt.Errorf("no token stored, run 'bridgypoll auth login': %w", err)
	}

	if showToken {
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}
	printer(cmd).Info("Token", auth.MaskToken(token))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
