package cmd

import (
	"fmt"

	"signet/internal/cli"
	"signet/internal/oauth"
	"signet/pkg/logging"

	"github.com/spf13/cobra"
)

// authTokenCmd represents the auth token command
var authTokenCmd = &cobra.Command{
	Use:   "token [provider]",
	Short: "Print a valid access token",
	Long: `Print an access token for the provider, refreshing it first when the
stored one is about to expire.

The token is written to stdout on its own line so it composes with shell
pipelines. Exit code 2 means the provider is not signed in.

Examples:
  signet auth token anthropic
  curl -H "Authorization: Bearer $(signet auth token anthropic)" ...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthToken,
}

func runAuthToken(cmd *cobra.Command, args []string) error {
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
	if !status.Authenticated() {
		return &cli.AuthRequiredError{Provider: provider}
	}

	token, err := handler.AccessToken(ctx, provider)
	if err != nil {
		if oauth.IsKind(err, oauth.KindRefreshFailed) {
			return &cli.AuthRequiredError{Provider: provider}
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
