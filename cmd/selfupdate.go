package cmd

import (
	"context"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the GitHub repository (owner/repo) releases are pulled from.
const (
	githubRepoSlug = "signet-sh/signet"
)

// selfUpdateCheckOnly reports whether a newer release exists without
// replacing the binary.
var selfUpdateCheckOnly bool

func newSelfUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update signet to the latest version",
		Long: `Checks for the latest release of signet on GitHub and replaces the
current binary when a newer version is available.

Use --check to only report whether an update exists.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
	cmd.Flags().BoolVar(&selfUpdateCheckOnly, "check", false, "Only check for a newer release, do not install it")
	return cmd
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	currentVersion := rootCmd.Version
	// Development builds carry no release version to compare against, and
	// replacing a locally built binary with a release would surprise.
	if currentVersion == "" || currentVersion == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("signet %s, checking %s for updates...\n", currentVersion, githubRepoSlug)

	latest, err := detectLatestRelease(ctx)
	if err != nil {
		return err
	}

	if !latest.GreaterThan(currentVersion) {
		fmt.Println("Already on the latest version.")
		return nil
	}

	fmt.Printf("Newer version available: %s (published %s)\n", latest.Version(), latest.PublishedAt)
	if latest.ReleaseNotes != "" {
		fmt.Printf("Release notes:\n%s\n", latest.ReleaseNotes)
	}

	if selfUpdateCheckOnly {
		fmt.Println("Run 'signet self-update' without --check to install it.")
		return nil
	}

	return installRelease(ctx, latest)
}

// detectLatestRelease queries GitHub for the newest published release of the
// repository.
func detectLatestRelease(ctx context.Context) (*selfupdate.Release, error) {
	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return nil, fmt.Errorf("error detecting latest version: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no release found for %s", githubRepoSlug)
	}

	return latest, nil
}

// installRelease downloads the release asset for this platform and swaps it
// in over the running executable.
func installRelease(ctx context.Context, release *selfupdate.Release) error {
	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	fmt.Printf("Updating %s to version %s...\n", exe, release.Version())

	if err := updater.UpdateTo(ctx, release, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Printf("Successfully updated to version %s\n", release.Version())
	return nil
}
