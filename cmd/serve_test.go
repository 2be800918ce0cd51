package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"signet/internal/cli"
)

func serveTestCmd() *cobra.Command {
	cmd := &cobra.Command{RunE: runServe}
	cmd.SetContext(context.Background())
	return cmd
}

// writeServeConfig writes a providers.yaml into a fresh config dir and points
// the serve flags at it for the duration of the test.
func writeServeConfig(t *testing.T, yaml string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing providers.yaml: %v", err)
	}

	prev := serveFlags
	serveFlags = cli.CommandFlags{ConfigPath: dir, Quiet: true}
	t.Cleanup(func() { serveFlags = prev })

	return dir
}

func TestRunServe(t *testing.T) {
	t.Run("refuses to start when the broker is disabled", func(t *testing.T) {
		dir := writeServeConfig(t, "broker:\n  enabled: false\n")

		err := runServe(serveTestCmd(), nil)
		if err == nil || !strings.Contains(err.Error(), "disabled") {
			t.Fatalf("expected a disabled-broker error, got %v", err)
		}
		if !strings.Contains(err.Error(), filepath.Join(dir, "providers.yaml")) {
			t.Errorf("expected the error to name the config file, got %q", err.Error())
		}
	})

	t.Run("refuses a second broker on the same address", func(t *testing.T) {
		running := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/healthz" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintln(w, `{"status":"ok"}`)
		}))
		defer running.Close()

		writeServeConfig(t, "broker:\n  enabled: true\n")

		prevListen := serveListen
		serveListen = strings.TrimPrefix(running.URL, "http://")
		t.Cleanup(func() { serveListen = prevListen })

		err := runServe(serveTestCmd(), nil)
		if err == nil || !strings.Contains(err.Error(), "already running") {
			t.Fatalf("expected an already-running error, got %v", err)
		}
	})
}

func TestServeCmdProperties(t *testing.T) {
	if serveCmd.Use != "serve" {
		t.Errorf("expected Use 'serve', got %q", serveCmd.Use)
	}
	if serveCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
	for _, name := range []string{"listen", "allow-remote", "tls-cert", "tls-key"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag to be registered", name)
		}
	}
	if serveCmd.PersistentFlags().Lookup("config-path") == nil {
		t.Error("expected --config-path flag to be registered")
	}
}
