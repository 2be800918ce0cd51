package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signet/internal/config"
)

// CommandFlags holds the common flag values used across signet commands.
// This struct consolidates the repetitive flag pattern shared by the auth
// subcommands and the providers listing.
type CommandFlags struct {
	// OutputFormat selects the rendering, "table" or "json".
	OutputFormat string
	// NoHeaders drops the header row from table output.
	NoHeaders bool
	// Quiet silences progress output; results and errors still print.
	Quiet bool
	// Debug turns on verbose logging.
	Debug bool
	// ConfigPath points at an alternate configuration directory.
	ConfigPath string
}

// RegisterCommonFlags registers the full flag set for commands that render
// listings, so every command spells the flags the same way.
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	RegisterConfigFlags(cmd, flags)
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table, json)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
}

// RegisterConfigFlags registers only the configuration and verbosity flags,
// for commands that do not produce formatted output.
func RegisterConfigFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
}

// ValidateOutputFormat rejects formats no command renders.
func ValidateOutputFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (supported: table, json)", format)
	}
}
