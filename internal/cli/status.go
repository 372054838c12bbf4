package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/appupdate-labs/appupdate/internal/updater"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted update state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.coordinator.Status()
		if statusJSON {
			return writeStatusJSON(cmd.OutOrStdout(), st)
		}
		writeStatus(cmd.OutOrStdout(), st, a.store.Location())
		return nil
	},
}

func writeStatus(w io.Writer, st updater.Status, location string) {
	fmt.Fprintf(w, "Enabled:         %s\n", yesNo(st.Enabled))
	fmt.Fprintf(w, "Check due:       %s\n", yesNo(st.Due))
	fmt.Fprintf(w, "Min interval:    %s\n", st.MinInterval)
	if st.LastCheckedAt.IsZero() {
		fmt.Fprintln(w, "Last checked:    never")
	} else {
		fmt.Fprintf(w, "Last checked:    %s\n", st.LastCheckedAt.Format(time.RFC3339))
	}
	if st.LatestVersionName != "" {
		fmt.Fprintf(w, "Latest version:  %s (%d)\n", st.LatestVersionName, st.LatestVersionNumber)
	} else {
		fmt.Fprintln(w, "Latest version:  unknown")
	}
	switch {
	case st.PackagePath == "":
		fmt.Fprintln(w, "Package:         none")
	case st.PackagePresent:
		fmt.Fprintf(w, "Package:         %s\n", st.PackagePath)
	default:
		fmt.Fprintf(w, "Package:         %s (missing)\n", st.PackagePath)
	}
	fmt.Fprintf(w, "Settings:        %s\n", location)
}

func writeStatusJSON(w io.Writer, st updater.Status) error {
	info := map[string]any{
		"enabled":               st.Enabled,
		"due":                   st.Due,
		"min_interval_minutes":  int(st.MinInterval / time.Minute),
		"latest_version_name":   st.LatestVersionName,
		"latest_version_number": st.LatestVersionNumber,
		"package_path":          st.PackagePath,
		"package_present":       st.PackagePresent,
	}
	if !st.LastCheckedAt.IsZero() {
		info["last_checked_at"] = st.LastCheckedAt.Format(time.RFC3339)
	}
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
