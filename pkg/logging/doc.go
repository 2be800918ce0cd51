// Package logging is signet's structured logging layer, a thin facade over
// the standard slog package.
//
// Every entry carries a level, a subsystem tag, and a formatted message, so
// output stays filterable whether it lands on stderr or in an embedding
// application's log view.
//
// # Usage
//
//	import "signet/pkg/logging"
//
//	// Route INFO and above to stderr.
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Bootstrap", "Application starting up")
//	logging.Debug("Config", "Loaded provider registry from %s", configPath)
//	logging.Warn("OAuth", "Refresh failed, serving cached token")
//	logging.Error("CredStore", err, "Failed to persist credentials")
//
// Applications that embed signet and render logs themselves (for example in
// a debug console) use InitForUI, which returns a channel of LogEntry values
// instead of writing to a stream.
//
// # Subsystems
//
// The subsystem tag names the component an entry came from. signet uses:
//
//   - Bootstrap: process startup and wiring
//   - Config: provider registry loading and validation
//   - OAuth: authorization flows, token exchange, and refresh
//   - CredStore: credential persistence
//   - Broker: the loopback token broker
//   - CLI: command-line entry points
//
// # Audit trail
//
// Operations that touch stored credentials (persisting, clearing) go through
// Audit, which emits an INFO entry carrying a SECURITY_AUDIT prefix so log
// pipelines can route them separately:
//
//	logging.Audit("CredStore", "token_persist",
//	    slog.String("provider", providerID),
//	    slog.String("outcome", "success"))
//
// Identifiers that double as secrets while a flow is in flight (state nonces,
// session ids) must be passed through TruncateSessionID before logging;
// emails go through RedactEmail.
//
// All functions are safe for concurrent use.
package logging
