package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appupdate-labs/appupdate/internal/updater"
)

var (
	checkForce bool
	checkURLs  []string
)

func init() {
	checkCmd.Flags().BoolVar(&checkForce, "force", false, "Check even if disabled or checked recently")
	checkCmd.Flags().StringSliceVar(&checkURLs, "url", nil, "Manifest URL (repeatable, tried in order)")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check for an update and download it",
	Long: `Fetches the update manifest and, when a newer version is published,
downloads its package. Unforced checks are skipped while updates are disabled
or the last check is more recent than the minimum interval.

  appupdate check
  appupdate check --force --url https://example.com/manifest.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := manifestURLs(checkURLs)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		before := a.coordinator.Status()
		if !checkForce && !before.Due {
			if !before.Enabled {
				fmt.Fprintln(out, "Update checks are disabled; use --force to check anyway.")
			} else {
				fmt.Fprintf(out, "Checked recently (%s); next check after %s.\n",
					before.LastCheckedAt.Format("2006-01-02 15:04"),
					before.LastCheckedAt.Add(before.MinInterval).Format("2006-01-02 15:04"))
			}
			return nil
		}

		ctx := cmd.Context()
		if err := a.coordinator.RequestCheck(ctx, urls, checkForce); err != nil {
			return err
		}
		if err := a.coordinator.WaitIdle(ctx); err != nil {
			return err
		}

		events := a.drainEvents()
		if len(events) == 0 {
			fmt.Fprintln(out, "No update available.")
			return nil
		}
		var errs []error
		for _, ev := range events {
			switch ev.Kind {
			case updater.EventUpdateFound:
				printUpdateFound(out, ev)
			case updater.EventError:
				errs = append(errs, ev.Err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("update check failed: %w", errors.Join(errs...))
		}
		return nil
	},
}
