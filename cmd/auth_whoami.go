package cmd

import (
	"fmt"
	"io"

	"signet/internal/api"
	"signet/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami [provider]",
	Short: "Show the linked account identity",
	Long: `Show the identity the provider is linked as, with token details.

When the stored credentials carry no identity yet, the provider's userinfo
endpoint is queried once and the resolved email is persisted alongside the
tokens.

Examples:
  signet auth whoami                   # Identity for the sole configured provider
  signet auth whoami anthropic         # Identity for a specific provider`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthWhoami,
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging(&authFlags, logging.LevelWarn)

	handler, err := ensureAuthHandler()
	if err != nil {
		return err
	}

	provider, err := resolveProviderArg(handler, args)
	if err != nil {
		return err
	}

	status, err := handler.WhoAmI(ctx, provider)
	if err != nil {
		return err
	}

	printWhoAmI(cmd.OutOrStdout(), status)
	return nil
}

// printWhoAmI renders the identity block, or sign-in guidance when the
// provider holds no usable link.
func printWhoAmI(out io.Writer, status api.ProviderAuthStatus) {
	if !status.Authenticated() {
		fmt.Fprintf(out, "Not signed in to %s\n", status.Provider)
		fmt.Fprintln(out, "\nTo sign in, run:")
		fmt.Fprintf(out, "  signet auth login %s\n", status.Provider)
		return
	}

	// Identity first, then provider context
	if status.Email != "" {
		fmt.Fprintf(out, "Identity:  %s\n", status.Email)
	}
	fmt.Fprintf(out, "Provider:  %s (%s)\n", status.DisplayName, status.Provider)
	if status.ProjectID != "" {
		fmt.Fprintf(out, "Project:   %s\n", status.ProjectID)
	}
	if !status.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:   %s\n", formatExpiryWithDirection(status.ExpiresAt))
	}
	if status.HasRefreshToken {
		fmt.Fprintf(out, "Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		fmt.Fprintf(out, "Refresh:   %s\n", text.FgYellow.Sprint("Not available (sign in again on expiry)"))
	}
}
