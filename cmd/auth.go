package cmd

import (
	"fmt"

	"signet/internal/cli"

	"github.com/spf13/cobra"
)

// authFlags holds the configuration and verbosity flags shared by all auth
// subcommands.
var authFlags cli.CommandFlags

// authCmd groups the sign-in lifecycle subcommands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider authentication",
	Long: `Manage authentication for the configured AI providers.

The auth command group provides subcommands to sign in, sign out, check
status, refresh tokens, and inspect the linked account identity.

Examples:
  signet auth login anthropic          # Sign in to one provider
  signet auth login --all              # Sign in to every OAuth provider
  signet auth status                   # Show authentication status
  signet auth logout anthropic         # Sign out of one provider
  signet auth logout --all             # Clear all stored credentials
  signet auth refresh anthropic        # Force a token refresh
  signet auth token anthropic          # Print a valid access token
  signet auth whoami anthropic         # Show the linked identity`,
}

// authPrint writes progress output, suppressed by --quiet. Essential output
// (tokens, errors) bypasses it.
func authPrint(format string, args ...interface{}) {
	if !authFlags.Quiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln writes a progress line, suppressed by --quiet.
func authPrintln(a ...interface{}) {
	if !authFlags.Quiet {
		fmt.Println(a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authWhoamiCmd)

	// config-path, quiet, and debug apply to every subcommand.
	cli.RegisterConfigFlags(authCmd, &authFlags)
}
