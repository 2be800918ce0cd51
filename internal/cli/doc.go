// Package cli provides the shared command-line utilities behind signet's
// cobra commands.
//
// It carries three concerns the commands would otherwise duplicate:
//
//   - Error types with actionable guidance. AuthRequiredError,
//     AuthExpiredError and AuthFailedError tell the user exactly which
//     signet command fixes their situation, and root command error
//     handling maps them to the documented exit codes.
//     ClassifyConnectionError turns raw transport failures into a
//     category (TLS, DNS, timeout, network) worth showing a human.
//
//   - Common flag registration. CommandFlags and RegisterCommonFlags keep
//     --output, --no-headers, --quiet, --debug and --config-path named and
//     documented identically across commands.
//
//   - Plain table output. PlainTableWriter renders kubectl-style columns
//     that survive copy/paste and shell pipelines.
//
// The broker probe helpers (DetectBrokerEndpoint, CheckBrokerRunning) let
// commands find out whether a local token broker is already serving before
// starting another one.
package cli
