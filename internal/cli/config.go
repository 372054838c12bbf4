package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appupdate-labs/appupdate/internal/config"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage user settings",
	Long: `Read and write configuration stored at ~/.appupdate/config.yaml.

Keys: manifest_urls, current_version, current_version_code, settings_backend,
download_dir, download_retries, install_command, log_level, log_file.
List values (manifest_urls, install_command) are comma-separated. An
install_command without commas is split on whitespace.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("setting config key %q: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if config.IsList(key) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.GetList(key), ","))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.Get(key))
		return nil
	},
}
