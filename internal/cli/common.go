package cli

import (
	"fmt"
	"net/http"
	"time"

	"signet/internal/config"
)

// brokerProbeTimeout bounds the health probe so a wedged broker does not
// hang the CLI.
const brokerProbeTimeout = 5 * time.Second

// DetectBrokerEndpoint returns the local token broker's base URL from the
// configuration under configPath. Falls back to the default address when
// the configuration cannot be loaded.
func DetectBrokerEndpoint(configPath string) string {
	addr := config.DefaultBrokerAddr
	if cfg, err := config.LoadConfig(configPath); err == nil && cfg.Broker.Addr != "" {
		addr = cfg.Broker.Addr
	}
	return "http://" + addr
}

// CheckBrokerRunning probes the broker's health endpoint. A nil return means
// a broker answered; otherwise the error says why the probe failed,
// classified for user feedback.
func CheckBrokerRunning(endpoint string) error {
	client := &http.Client{Timeout: brokerProbeTimeout}

	resp, err := client.Get(endpoint + "/healthz")
	if err != nil {
		return ClassifyConnectionError(err, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token broker at %s is not healthy (status: %d)", endpoint, resp.StatusCode)
	}

	return nil
}

// FormatError renders an error for terminal output.
func FormatError(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// FormatSuccess renders a success line with a check mark.
func FormatSuccess(msg string) string {
	return fmt.Sprintf("✓ %s", msg)
}

// FormatWarning renders a warning line with a warning sign.
func FormatWarning(msg string) string {
	return fmt.Sprintf("⚠ %s", msg)
}
