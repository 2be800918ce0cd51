package config

const (
	// DefaultCallbackPort is the loopback port the redirect listener binds
	// when a provider does not configure one.
	DefaultCallbackPort = 41717

	// DefaultCallbackPath is the path the authorization server redirects to.
	DefaultCallbackPath = "/callback"

	// DefaultBrokerAddr is the listen address for the local token broker.
	DefaultBrokerAddr = "127.0.0.1:7767"
)

// GetDefaultConfig returns the configuration used when no providers.yaml
// exists. It carries no providers; linking requires configuring at least one.
func GetDefaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Addr:    DefaultBrokerAddr,
			Enabled: false,
		},
	}
}
