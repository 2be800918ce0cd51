package cmd

import (
	"errors"
	"os"

	"signet/internal/cli"
	"signet/internal/oauth"

	"github.com/spf13/cobra"
)

// Exit codes, chosen so scripts can tell "run signet auth login" apart from
// "the command itself is broken".
const (
	// ExitCodeSuccess is returned when the command completes.
	ExitCodeSuccess = 0
	// ExitCodeError covers general failures and bad arguments.
	ExitCodeError = 1
	// ExitCodeAuthRequired means no usable credentials exist for the provider.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed means an OAuth flow was attempted and failed.
	ExitCodeAuthFailed = 3
)

// rootCmd is the bare "signet" invocation; subcommands hang off it.
var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "Link AI provider accounts to your local environment",
	Long: `signet manages the sign-in lifecycle for AI provider accounts: it runs
the browser-based OAuth authorization flow with PKCE, stores the resulting
tokens, refreshes them before they expire, and serves them to other local
tools through a loopback token broker.`,
	// Handled errors print their own message; the usage dump would bury it.
	SilenceUsage: true,
}

// SetVersion injects the build-time version from the main package.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the version the binary was built with.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the CLI and exits the process with a semantic exit code when
// the command fails.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "signet version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error escaping a command to its exit code.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	// Flow errors that escape without a CLI wrapper: another attempt can
	// succeed for recoverable kinds, so scripts get the auth-failed code.
	// Terminal kinds (unsupported provider, malformed callback) are plain
	// errors.
	var flowErr *oauth.FlowError
	if errors.As(err, &flowErr) && flowErr.Recoverable() {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
