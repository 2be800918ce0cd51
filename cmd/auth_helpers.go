package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signet/internal/api"
	"signet/internal/cli"
	"signet/internal/config"
	"signet/internal/credstore"
	"signet/internal/oauth"
	"signet/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/text"
)

// setupLogging configures the process logger from the command's flags.
// Interactive commands pass a floor of LevelWarn so flow output stays
// readable; serve passes LevelInfo to get its operational log.
func setupLogging(flags *cli.CommandFlags, floor logging.LogLevel) {
	switch {
	case flags.Quiet:
		logging.InitSilent()
	case flags.Debug:
		logging.InitForCLI(logging.LevelDebug, os.Stderr)
	default:
		logging.InitForCLI(floor, os.Stderr)
	}
}

// buildAuthStack wires the provider registry, credential store, flow manager
// and API adapter, and registers the adapter as the process auth handler.
func buildAuthStack(configPath string, opts ...oauth.AdapterOption) (*config.Registry, *oauth.Adapter, error) {
	registry, err := config.NewRegistry(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	store, err := credstore.NewFileStore(credentialDir(registry.Config(), registry.Path()))
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	manager := oauth.NewManager(registry, store)
	adapter := oauth.NewAdapter(manager, registry, store, opts...)
	adapter.Register()

	return registry, adapter, nil
}

// ensureAuthHandler returns the registered auth handler, building the full
// stack on first use.
func ensureAuthHandler(opts ...oauth.AdapterOption) (api.AuthHandler, error) {
	if handler := api.GetAuthHandler(); handler != nil {
		return handler, nil
	}

	_, adapter, err := buildAuthStack(authFlags.ConfigPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}

	return adapter, nil
}

// credentialDir resolves where provider credentials are persisted: the
// configured override, or the credentials/ directory under the
// configuration path.
func credentialDir(cfg config.Config, configPath string) string {
	if cfg.CredentialDir != "" {
		return cfg.CredentialDir
	}
	return filepath.Join(configPath, "credentials")
}

// resolveProviderArg picks the provider a subcommand operates on: the
// positional argument when given, otherwise the sole configured provider.
// With several providers configured the argument is required.
func resolveProviderArg(handler api.AuthHandler, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	summaries := handler.Providers()
	switch len(summaries) {
	case 0:
		return "", fmt.Errorf("no providers configured. Add one to %s", filepath.Join(authFlags.ConfigPath, "providers.yaml"))
	case 1:
		return summaries[0].ID, nil
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return "", fmt.Errorf("provider argument required (configured: %s)", strings.Join(ids, ", "))
}

// oauthProviderIDs returns the ids of the configured providers that sign in
// through the browser flow, in configuration order.
func oauthProviderIDs(handler api.AuthHandler) []string {
	var ids []string
	for _, s := range handler.Providers() {
		if s.AuthType == string(config.AuthTypeOAuth) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// formatDuration renders a duration at the coarsest unit that still reads
// naturally ("2 hours", "3 days").
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection says how far away expiresAt is, past or future.
func formatExpiryWithDirection(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	expiredAgo := -remaining
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(expiredAgo))
}
