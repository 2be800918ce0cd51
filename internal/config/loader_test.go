package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProvidersYAML drops a providers.yaml with the given content into dir.
func writeProvidersYAML(t *testing.T, dir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644)
	require.NoError(t, err)
}

const twoProviderConfig = `
broker:
  addr: 127.0.0.1:7767
  enabled: true
providers:
  - id: anthropic
    displayName: Anthropic
    authType: oauth
    oauth:
      clientID: signet-cli
      authorizationEndpoint: https://auth.example.com/authorize
      tokenEndpoint: https://auth.example.com/token
      userInfoEndpoint: https://auth.example.com/userinfo
      scopes: [profile, inference]
      extraAuthParams:
        prompt: consent
  - id: local-key
    authType: api_key
`

func TestLoadConfig_Defaults(t *testing.T) {
	tempDir := t.TempDir()

	cfg, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Empty(t, cfg.Providers)
	assert.Equal(t, DefaultBrokerAddr, cfg.Broker.Addr)
	assert.False(t, cfg.Broker.Enabled)
}

func TestLoadConfig_FullFile(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, twoProviderConfig)

	cfg, err := LoadConfig(tempDir)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)

	p := cfg.Providers[0]
	assert.Equal(t, "anthropic", p.ID)
	assert.Equal(t, "Anthropic", p.Name())
	assert.Equal(t, AuthTypeOAuth, p.AuthType)
	assert.True(t, p.UsesOAuth())
	require.NotNil(t, p.OAuth)
	assert.Equal(t, "signet-cli", p.OAuth.ClientID)
	assert.Equal(t, "https://auth.example.com/token", p.OAuth.TokenEndpoint)
	assert.Equal(t, []string{"profile", "inference"}, p.OAuth.Scopes)
	assert.Equal(t, "consent", p.OAuth.ExtraAuthParams["prompt"])
	assert.Equal(t, "http://127.0.0.1:41717/callback", p.OAuth.RedirectURI())

	k := cfg.Providers[1]
	assert.Equal(t, "local-key", k.Name())
	assert.False(t, k.UsesOAuth())

	assert.True(t, cfg.Broker.Enabled)
	assert.Equal(t, "127.0.0.1:7767", cfg.Broker.Addr)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, "providers: [this is: {not yaml")

	_, err := LoadConfig(tempDir)
	assert.Error(t, err)
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, `
providers:
  - id: broken
    authType: oauth
    oauth:
      authorizationEndpoint: https://auth.example.com/authorize
      tokenEndpoint: https://auth.example.com/token
`)

	_, err := LoadConfig(tempDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clientID")
}

func TestLoadConfig_EnvSecretOverride(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, twoProviderConfig)

	t.Setenv("SIGNET_ANTHROPIC_CLIENT_SECRET", "from-env")
	t.Setenv("SIGNET_ANTHROPIC_CLIENT_ID", "env-client")

	cfg, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Providers[0].OAuth.ClientSecret)
	assert.Equal(t, "env-client", cfg.Providers[0].OAuth.ClientID)
}

func TestLoadConfig_EnvKnobOverrides(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, twoProviderConfig)

	t.Setenv("SIGNET_BROKER_ADDR", "127.0.0.1:9999")
	t.Setenv("SIGNET_CREDENTIAL_DIR", "/tmp/creds")
	t.Setenv("SIGNET_CALLBACK_PORT", "5555")

	cfg, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Broker.Addr)
	assert.Equal(t, "/tmp/creds", cfg.CredentialDir)
	assert.Equal(t, 5555, cfg.Providers[0].OAuth.CallbackPort)
	assert.Equal(t, "http://127.0.0.1:5555/callback", cfg.Providers[0].OAuth.RedirectURI())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	tempDir := t.TempDir()
	writeProvidersYAML(t, tempDir, `
providers:
  - id: dotenvprov
    authType: oauth
    oauth:
      clientID: signet-cli
      authorizationEndpoint: https://auth.example.com/authorize
      tokenEndpoint: https://auth.example.com/token
`)

	err := os.WriteFile(filepath.Join(tempDir, dotenvFileName),
		[]byte("SIGNET_DOTENVPROV_CLIENT_SECRET=from-dotenv\n"), 0o600)
	require.NoError(t, err)

	// godotenv writes into the process environment; clean up after.
	t.Cleanup(func() { os.Unsetenv("SIGNET_DOTENVPROV_CLIENT_SECRET") })

	cfg, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Providers[0].OAuth.ClientSecret)
}

func TestProviderEnvKey(t *testing.T) {
	tests := []struct {
		id       string
		field    string
		expected string
	}{
		{"anthropic", "CLIENT_SECRET", "SIGNET_ANTHROPIC_CLIENT_SECRET"},
		{"google-vertex", "CLIENT_SECRET", "SIGNET_GOOGLE_VERTEX_CLIENT_SECRET"},
		{"corp.sso", "CLIENT_ID", "SIGNET_CORP_SSO_CLIENT_ID"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, providerEnvKey(tt.id, tt.field))
	}
}

func TestGetDefaultConfigPathOrPanic_EnvOverride(t *testing.T) {
	t.Setenv("SIGNET_CONFIG_PATH", "/opt/signet-config")

	assert.Equal(t, "/opt/signet-config", GetDefaultConfigPathOrPanic())
}
