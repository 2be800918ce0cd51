package oauth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserLauncher starts the command that opens the browser. Tests replace
// it to keep real windows from popping up.
var browserLauncher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenBrowser opens url in the platform's default browser. The command is
// started, not waited on. Callers should print the URL as a fallback when
// this fails; a headless host has nothing to open.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := browserLauncher(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
