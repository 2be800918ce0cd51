package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestProvidersCommand(t *testing.T) {
	t.Run("providers command Use field", func(t *testing.T) {
		if providersCmd.Use != "providers" {
			t.Errorf("expected Use 'providers', got %q", providersCmd.Use)
		}
	})

	t.Run("providers command has RunE", func(t *testing.T) {
		if providersCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})

	t.Run("providers command flags", func(t *testing.T) {
		for _, name := range []string{"output", "no-headers", "config-path"} {
			if providersCmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("expected persistent flag --%s to be registered", name)
			}
		}
	})
}

func TestRenderProviders(t *testing.T) {
	rows := []providerRow{
		{ID: "anthropic", DisplayName: "Anthropic", AuthType: "oauth", Scopes: []string{"profile", "inference"}},
		{ID: "local", DisplayName: "Local", AuthType: "none"},
	}

	t.Run("renders headers and rows", func(t *testing.T) {
		var out bytes.Buffer
		renderProviders(&out, rows, false)

		got := out.String()
		for _, want := range []string{"ID", "NAME", "AUTH", "SCOPES", "anthropic", "Anthropic", "profile,inference", "local", "none"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, got)
			}
		}
	})

	t.Run("no-headers drops the header row", func(t *testing.T) {
		var out bytes.Buffer
		renderProviders(&out, rows, true)

		got := out.String()
		if strings.Contains(got, "SCOPES") {
			t.Errorf("expected no header row, got:\n%s", got)
		}
		if !strings.Contains(got, "anthropic") {
			t.Errorf("expected provider rows, got:\n%s", got)
		}
	})

	t.Run("empty listing", func(t *testing.T) {
		var out bytes.Buffer
		renderProviders(&out, nil, false)

		if got := out.String(); got != "No providers configured.\n" {
			t.Errorf("expected placeholder, got %q", got)
		}
	})
}
