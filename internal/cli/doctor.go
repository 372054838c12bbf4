package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/appupdate-labs/appupdate/internal/branding"
	"github.com/appupdate-labs/appupdate/internal/checker"
	"github.com/appupdate-labs/appupdate/internal/config"
	"github.com/appupdate-labs/appupdate/internal/installer"
	"github.com/appupdate-labs/appupdate/internal/manifest"
	"github.com/appupdate-labs/appupdate/internal/settings"
)

var (
	checkManifest string
	doctorOffline bool
)

func init() {
	doctorCmd.Flags().StringVar(&checkManifest, "check-manifest", "", "Validate a manifest file at the given path")
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip fetching the configured manifests")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the update setup",
	Long:  `Run diagnostic checks on the configuration, settings store, manifests, and installer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if checkManifest != "" {
			return runManifestCheck(out, checkManifest)
		}

		failed := 0
		failed += runConfigCheck(out)
		failed += runSettingsCheck(out)
		failed += runDownloadDirCheck(out)
		failed += runInstallerCheck(out)
		if !doctorOffline {
			failed += runManifestFetchCheck(cmd.Context(), out)
		}
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func runConfigCheck(w io.Writer) int {
	fmt.Fprintln(w, "Config check:")
	path := config.FilePath()
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(w, "  [INFO] %s not found, using defaults and environment\n", path)
	} else {
		fmt.Fprintf(w, "  [ OK ] %s\n", path)
	}
	if len(config.GetList(config.KeyManifestURLs)) == 0 {
		fmt.Fprintf(w, "  [WARN] %s is not set (run `%s config set %s <url>`)\n",
			config.KeyManifestURLs, branding.CLIName(), config.KeyManifestURLs)
	}
	return 0
}

func runSettingsCheck(w io.Writer) int {
	fmt.Fprintln(w, "Settings check:")
	store, err := settings.Open(config.Get(config.KeySettingsBackend), config.StateDir())
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	defer store.Close()
	fmt.Fprintf(w, "  [ OK ] %s store at %s\n", config.Get(config.KeySettingsBackend), store.Location())
	return 0
}

func runDownloadDirCheck(w io.Writer) int {
	fmt.Fprintln(w, "Download directory check:")
	dir := config.DownloadDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(w, "  [FAIL] cannot create %s: %v\n", dir, err)
		return 1
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s is not writable: %v\n", dir, err)
		return 1
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	fmt.Fprintf(w, "  [ OK ] %s is writable\n", dir)
	return 0
}

func runInstallerCheck(w io.Writer) int {
	fmt.Fprintln(w, "Installer check:")
	name := installer.New(config.GetList(config.KeyInstallCommand)).Program()
	if name == "" {
		fmt.Fprintln(w, "  [INFO] no install_command set, packages open with the OS default handler")
		return 0
	}
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Fprintf(w, "  [MISS] %s not found\n", name)
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s found at %s\n", name, path)
	return 0
}

func runManifestFetchCheck(ctx context.Context, w io.Writer) int {
	fmt.Fprintln(w, "Manifest check:")
	chk := checker.New(currentVersion(), config.GetInt(config.KeyCurrentVersionCode),
		checker.WithUserAgent(branding.UserAgent(buildVersion)))

	failed := 0
	for _, u := range config.GetList(config.KeyManifestURLs) {
		info, err := chk.Check(ctx, []string{u})
		if err != nil {
			fmt.Fprintf(w, "  [FAIL] %s: %v\n", u, err)
			failed++
			continue
		}
		state := "update available"
		if info.IsLatest {
			state = "up to date"
		}
		fmt.Fprintf(w, "  [ OK ] %s: %s (%d), %s, %d download location(s)\n",
			u, info.VersionName, info.VersionNumber, state, len(info.DownloadLocations))
	}
	return failed
}

func runManifestCheck(w io.Writer, path string) error {
	fmt.Fprintf(w, "Manifest validation: %s\n", path)

	// Validate against JSON Schema.
	result, err := manifest.ValidateFile(path)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	if result.Valid {
		m, err := manifest.ParseFile(path)
		if err != nil {
			fmt.Fprintf(w, "  [ OK ] Valid manifest\n")
			return nil
		}
		fmt.Fprintf(w, "  [ OK ] Valid manifest: %s (%d), %d download URI(s)\n",
			m.LatestVersion.VersionName, m.LatestVersion.VersionCode, len(m.DownloadURIs))
		return nil
	}

	// Report validation issues.
	fmt.Fprintf(w, "  [FAIL] %d validation issue(s):\n", len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Path != "" {
			fmt.Fprintf(w, "    - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(w, "    - %s\n", issue.Message)
		}
	}
	return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(result.Issues))
}
