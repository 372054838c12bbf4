package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/appupdate-labs/appupdate/internal/branding"
	"github.com/appupdate-labs/appupdate/internal/config"
	"github.com/appupdate-labs/appupdate/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` checks a remote manifest for newer versions of an application,
downloads the package once, and hands it to the installer when asked.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		if err := logging.InitLog(config.Get(config.KeyLogLevel), config.Get(config.KeyLogFile)); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file path, or \"console\" for stderr")
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFile, rootCmd.PersistentFlags().Lookup("log-file"))
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}
