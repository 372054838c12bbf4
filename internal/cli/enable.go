package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var enableInterval time.Duration

func init() {
	enableCmd.Flags().DurationVar(&enableInterval, "interval", 0, "Also set the minimum time between checks (e.g. 90m)")
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Allow scheduled update checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("interval") {
			if err := a.store.SetMinInterval(enableInterval); err != nil {
				return fmt.Errorf("setting check interval: %w", err)
			}
		}
		if err := a.coordinator.SetEnabled(true); err != nil {
			return fmt.Errorf("enabling update checks: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Update checks enabled (at most every %s).\n", a.store.MinInterval())
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop scheduled update checks (forced checks still run)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.coordinator.SetEnabled(false); err != nil {
			return fmt.Errorf("disabling update checks: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Update checks disabled.")
		return nil
	},
}
