package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"signet/internal/api"
	"signet/internal/cli"
	"signet/internal/config"
	"signet/pkg/logging"
	pkgstrings "signet/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// minProviderColumnWidth is the minimum width for the provider column in
// status output. This ensures consistent alignment in the CLI output.
const minProviderColumnWidth = 12

// stateColumnWidth is the rendered width of the state column. State labels
// are padded to this width before they are colored, because ANSI escape
// bytes would skew %-*s padding.
const stateColumnWidth = 13

// Flags only the status subcommand carries.
var (
	statusCheck bool
)

// authStatusCmd reports which providers hold usable credentials.
var authStatusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show authentication status",
	Long: `Show the current authentication status for the configured providers.

This command displays which providers hold linked accounts, the identity
they are linked as, when tokens expire, and which providers still require a
sign-in.

Examples:
  signet auth status                   # Show all provider status
  signet auth status anthropic         # Show status for one provider
  signet auth status --output json     # Machine-readable status
  signet auth status --check --quiet   # Probe: exit 0 when all linked, 2 otherwise`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().StringVarP(&authFlags.OutputFormat, "output", "o", "table", "Output format (table, json)")
	authStatusCmd.Flags().BoolVar(&statusCheck, "check", false, "Exit 0 when every OAuth provider is linked, 2 otherwise")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	setupLogging(&authFlags, logging.LevelWarn)

	if err := cli.ValidateOutputFormat(authFlags.OutputFormat); err != nil {
		return err
	}

	handler, err := ensureAuthHandler()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var statuses []api.ProviderAuthStatus
	if len(args) > 0 {
		status, err := handler.StatusFor(ctx, args[0])
		if err != nil {
			return err
		}
		statuses = []api.ProviderAuthStatus{status}
	} else {
		statuses = handler.Status(ctx)
	}

	if statusCheck {
		return checkAuthStatuses(statuses)
	}

	if authFlags.OutputFormat == "json" {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	renderAuthStatuses(cmd.OutOrStdout(), statuses)
	return nil
}

// checkAuthStatuses is the probe behind --check: nil when every OAuth
// provider holds a usable link, AuthRequiredError (exit code 2) for the
// first one that does not. Providers that do not use OAuth are skipped.
func checkAuthStatuses(statuses []api.ProviderAuthStatus) error {
	linked := 0
	for _, status := range statuses {
		if status.AuthType != string(config.AuthTypeOAuth) {
			continue
		}
		if !status.Authenticated() {
			return &cli.AuthRequiredError{Provider: status.Provider}
		}
		linked++
	}
	authPrintln(cli.FormatSuccess(fmt.Sprintf("%d provider(s) linked", linked)))
	return nil
}

// renderAuthStatuses prints one aligned line per provider.
func renderAuthStatuses(out io.Writer, statuses []api.ProviderAuthStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return
	}

	nameWidth := minProviderColumnWidth
	for _, status := range statuses {
		if len(status.Provider) > nameWidth {
			nameWidth = len(status.Provider)
		}
	}

	for _, status := range statuses {
		fmt.Fprintf(out, "%-*s %s", nameWidth, status.Provider, formatAuthState(status))
		if detail := authStatusDetail(status); detail != "" {
			fmt.Fprintf(out, "  %s", detail)
		}
		fmt.Fprintln(out)
	}
}

// formatAuthState renders the colored state cell. The label is padded before
// coloring so the detail column lines up across rows.
func formatAuthState(status api.ProviderAuthStatus) string {
	label, color := authStateLabel(status)
	return color.Sprintf("%-*s", stateColumnWidth, label)
}

// authStateLabel maps a provider status to its state label and color.
// Providers that do not sign in through OAuth are dimmed, labeled by their
// auth type.
func authStateLabel(status api.ProviderAuthStatus) (string, text.Color) {
	if status.AuthType == string(config.AuthTypeAPIKey) {
		return "API key", text.FgHiBlack
	}
	if status.AuthType != string(config.AuthTypeOAuth) {
		return "No auth", text.FgHiBlack
	}

	switch status.State {
	case "authenticated":
		return "Signed in", text.FgGreen
	case "authenticating":
		return "Signing in", text.FgYellow
	case "error":
		return "Error", text.FgRed
	default:
		return "Not signed in", text.FgHiBlack
	}
}

// authStatusDetail builds the trailing cell: identity and token lifetime for
// linked providers, the failure for error states, sign-in guidance
// otherwise.
func authStatusDetail(status api.ProviderAuthStatus) string {
	switch {
	case status.State == "error" && status.Error != "":
		// Flow errors can be long and multi-line; keep the row a row.
		return pkgstrings.Truncate(status.Error, pkgstrings.DefaultCellMaxLen)
	case status.Authenticated():
		var parts []string
		if status.Email != "" {
			parts = append(parts, status.Email)
		}
		if !status.ExpiresAt.IsZero() {
			parts = append(parts, expiryDetail(status.ExpiresAt))
		}
		if !status.HasRefreshToken {
			parts = append(parts, "no refresh token")
		}
		return strings.Join(parts, ", ")
	case status.AuthType == string(config.AuthTypeOAuth):
		return "Run: signet auth login " + status.Provider
	default:
		return ""
	}
}

// expiryDetail renders the token lifetime fragment of the detail cell.
// Expired-but-refreshable links show up yellow: the next token resolution
// must go through a refresh first.
func expiryDetail(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "expires in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}
