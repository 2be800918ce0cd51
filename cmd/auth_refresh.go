package cmd

import (
	"signet/internal/cli"
	"signet/internal/oauth"
	"signet/pkg/logging"

	"github.com/spf13/cobra"
)

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh [provider]",
	Short: "Force a token refresh",
	Long: `Force a refresh of the stored tokens for a provider.

Tokens are normally refreshed on demand when they approach expiry; this
command refreshes eagerly, which can be useful before going offline or when
diagnosing authentication issues.

Examples:
  signet auth refresh                  # Refresh the sole configured provider
  signet auth refresh anthropic        # Refresh a specific provider`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthRefresh,
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
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

	status, err := handler.StatusFor(ctx, provider)
	if err != nil {
		return err
	}
	if status.State == "unauthenticated" {
		return &cli.AuthRequiredError{Provider: provider}
	}

	authPrint("Refreshing tokens for %s...\n", provider)
	if err := handler.Refresh(ctx, provider); err != nil {
		if oauth.IsKind(err, oauth.KindRefreshFailed) {
			return &cli.AuthExpiredError{Provider: provider}
		}
		return err
	}

	if status, err := handler.StatusFor(ctx, provider); err == nil && !status.ExpiresAt.IsZero() {
		authPrintln(cli.FormatSuccess("Tokens refreshed, expires " + formatExpiryWithDirection(status.ExpiresAt)))
		return nil
	}
	authPrintln(cli.FormatSuccess("Tokens refreshed"))
	return nil
}
