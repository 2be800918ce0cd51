package cmd

import (
	"context"
	"fmt"
	"time"

	"signet/internal/api"
	"signet/internal/cli"
	"signet/internal/oauth"
	"signet/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// Flags only the login subcommand carries.
var (
	loginAll       bool
	loginNoBrowser bool
)

// authLoginCmd starts the browser sign-in flow.
var authLoginCmd = &cobra.Command{
	Use:   "login [provider]",
	Short: "Sign in to an AI provider",
	Long: `Sign in to an AI provider account using the browser-based OAuth flow.

signet opens your browser at the provider's authorization page, waits for
the redirect on the loopback callback listener, exchanges the returned code
for tokens, and stores them in the credential store.

Examples:
  signet auth login                      # Sign in to the sole configured provider
  signet auth login anthropic            # Sign in to a specific provider
  signet auth login --all                # Sign in to every OAuth provider in turn
  signet auth login openai --no-browser  # Print the URL instead of opening a browser`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginAll, "all", false, "Sign in to every configured OAuth provider")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging(&authFlags, logging.LevelWarn)

	handler, err := ensureAuthHandler(oauth.WithNoBrowser(loginNoBrowser))
	if err != nil {
		return err
	}

	// Handle --all flag: sign in to every OAuth provider sequentially
	if loginAll {
		return loginToAll(ctx, handler)
	}

	provider, err := resolveProviderArg(handler, args)
	if err != nil {
		return err
	}

	if err := loginOne(ctx, handler, provider); err != nil {
		if oauth.IsRecoverable(err) {
			return &cli.AuthFailedError{Provider: provider, Reason: err}
		}
		return err
	}

	printLoginResult(ctx, handler, provider)
	return nil
}

// loginOne runs the browser flow for a single provider, spinning while the
// callback is pending. The spinner is skipped in quiet mode and when the
// authorization URL is printed for manual use.
func loginOne(ctx context.Context, handler api.AuthHandler, provider string) error {
	var s *spinner.Spinner
	if !authFlags.Quiet && !loginNoBrowser {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Waiting for the %s sign-in to finish in your browser...", provider)
		s.Start()
		defer s.Stop()
	}

	err := handler.Login(ctx, provider)
	if s != nil {
		s.Stop()
	}
	return err
}

// loginToAll signs in to every configured OAuth provider, one at a time so
// two flows never race for the browser and the callback listener.
func loginToAll(ctx context.Context, handler api.AuthHandler) error {
	providers := oauthProviderIDs(handler)
	if len(providers) == 0 {
		authPrintln("No OAuth providers configured.")
		return nil
	}

	successCount := 0
	var lastErr error
	for i, provider := range providers {
		authPrint("[%d/%d] Signing in to %s\n", i+1, len(providers), provider)
		if err := loginOne(ctx, handler, provider); err != nil {
			fmt.Printf("  Failed: %v\n", err)
			lastErr = err
			continue
		}
		successCount++
		printLoginResult(ctx, handler, provider)
	}

	authPrint("\nSign-in complete. %d/%d providers linked.\n", successCount, len(providers))
	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// printLoginResult prints the post-flow confirmation with the linked
// identity and token lifetime.
func printLoginResult(ctx context.Context, handler api.AuthHandler, provider string) {
	status, err := handler.StatusFor(ctx, provider)
	if err != nil || !status.Authenticated() {
		authPrintln(cli.FormatSuccess(fmt.Sprintf("Signed in to %s", provider)))
		return
	}

	msg := fmt.Sprintf("Signed in to %s", status.DisplayName)
	if status.Email != "" {
		msg += fmt.Sprintf(" as %s", status.Email)
	}
	if !status.ExpiresAt.IsZero() {
		msg += fmt.Sprintf(" (token expires %s)", formatExpiryWithDirection(status.ExpiresAt))
	}
	authPrintln(cli.FormatSuccess(msg))
}
