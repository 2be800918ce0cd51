package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"signet/internal/cli"
	"signet/internal/config"
	"signet/pkg/logging"
	pkgstrings "signet/pkg/strings"

	"github.com/spf13/cobra"
)

// providersFlags holds the flags for the providers listing.
var providersFlags cli.CommandFlags

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured AI providers",
	Long: `List the AI providers configured in providers.yaml.

The listing shows each provider's id, display name, authentication type,
and the OAuth scopes it requests. Use 'signet auth status' for the current
authentication state.

Examples:
  signet providers
  signet providers --output json
  signet providers --no-headers`,
	Args: cobra.NoArgs,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	cli.RegisterCommonFlags(providersCmd, &providersFlags)
}

// providerRow is one entry of the provider listing.
type providerRow struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	AuthType    string   `json:"authType"`
	Scopes      []string `json:"scopes,omitempty"`
}

func runProviders(cmd *cobra.Command, args []string) error {
	setupLogging(&providersFlags, logging.LevelWarn)

	if err := cli.ValidateOutputFormat(providersFlags.OutputFormat); err != nil {
		return err
	}

	registry, err := config.NewRegistry(providersFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	providers := registry.List()
	rows := make([]providerRow, 0, len(providers))
	for _, p := range providers {
		row := providerRow{
			ID:          p.ID,
			DisplayName: p.Name(),
			AuthType:    string(p.AuthType),
		}
		if p.OAuth != nil {
			row.Scopes = p.OAuth.Scopes
		}
		rows = append(rows, row)
	}

	if providersFlags.OutputFormat == "json" {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	renderProviders(cmd.OutOrStdout(), rows, providersFlags.NoHeaders)
	return nil
}

// renderProviders prints the provider listing as a plain aligned table.
func renderProviders(out io.Writer, rows []providerRow, noHeaders bool) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return
	}

	table := cli.NewPlainTableWriter(out, "id", "name", "auth", "scopes")
	table.SetNoHeaders(noHeaders)
	for _, row := range rows {
		scopes := pkgstrings.Truncate(strings.Join(row.Scopes, ","), pkgstrings.DefaultCellMaxLen)
		table.AppendRow(row.ID, row.DisplayName, row.AuthType, scopes)
	}
	table.Render()
}
