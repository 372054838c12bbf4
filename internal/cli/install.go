package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var installYes bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the most recently downloaded package",
	Long: `Hands the last downloaded package to the configured install command
(install_command, with {path} replaced by the package path) or, when none is
configured, to the operating system's default handler.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	st := a.coordinator.Status()
	if st.PackagePath == "" {
		fmt.Fprintln(out, "No package has been downloaded yet.")
		return nil
	}
	if !st.PackagePresent {
		return fmt.Errorf("package %s no longer exists; run a forced check to download it again", st.PackagePath)
	}

	// Prompt for confirmation unless -y is set.
	if !installYes {
		fmt.Fprintf(out, "? Install %s %s? (Y/n) ", st.LatestVersionName, st.PackagePath)
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if answer != "" && answer != "y" && answer != "yes" {
				fmt.Fprintln(out, "Installation cancelled.")
				return nil
			}
		}
	}

	if err := a.coordinator.InstallUpdate(cmd.Context()); err != nil {
		return fmt.Errorf("installing update: %w", err)
	}
	fmt.Fprintf(out, "Handed %s to the installer.\n", st.PackagePath)
	return nil
}
