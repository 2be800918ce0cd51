package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"signet/internal/api"
	"signet/pkg/logging"

	"github.com/spf13/cobra"
)

// Logout-specific flags
var (
	logoutAll bool
	logoutYes bool
)

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout [provider]",
	Short: "Sign out and clear stored credentials",
	Long: `Clear the stored credentials for a provider.

This command removes the persisted tokens, requiring a new sign-in before
the provider can be used again. Signing out is local: the provider-side
session is not revoked.

Examples:
  signet auth logout anthropic         # Sign out of one provider
  signet auth logout --all             # Clear all stored credentials
  signet auth logout --all --yes       # Clear all without confirmation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

func init() {
	// Logout-specific flags (only on logout subcommand)
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Clear stored credentials for every provider")
	authLogoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip confirmation prompt for --all")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	setupLogging(&authFlags, logging.LevelWarn)

	handler, err := ensureAuthHandler()
	if err != nil {
		return err
	}

	if logoutAll {
		return logoutFromAll(cmd, handler)
	}

	provider, err := resolveProviderArg(handler, args)
	if err != nil {
		return err
	}

	if err := handler.Logout(provider); err != nil {
		return fmt.Errorf("failed to sign out of %s: %w", provider, err)
	}

	authPrint("Signed out of %s\n", provider)
	return nil
}

// logoutFromAll clears the credentials of every linked provider, asking for
// confirmation first unless --yes was given.
func logoutFromAll(cmd *cobra.Command, handler api.AuthHandler) error {
	var linked []api.ProviderAuthStatus
	for _, status := range handler.Status(cmd.Context()) {
		if status.Authenticated() {
			linked = append(linked, status)
		}
	}

	if len(linked) == 0 {
		authPrintln("No linked providers to sign out of.")
		return nil
	}

	// Show what will be cleared and ask for confirmation
	if !logoutYes {
		fmt.Printf("The following %d linked account(s) will be cleared:\n", len(linked))
		for _, status := range linked {
			if status.Email != "" {
				fmt.Printf("  - %s (%s)\n", status.Provider, status.Email)
			} else {
				fmt.Printf("  - %s\n", status.Provider)
			}
		}
		fmt.Print("\nAre you sure you want to clear all stored credentials? [y/N]: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	cleared := 0
	for _, status := range linked {
		if err := handler.Logout(status.Provider); err != nil {
			fmt.Printf("  Failed to sign out of %s: %v\n", status.Provider, err)
			continue
		}
		cleared++
	}

	authPrint("Cleared credentials for %d provider(s).\n", cleared)
	return nil
}
