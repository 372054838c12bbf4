package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/appupdate-labs/appupdate/internal/updater"
)

var (
	watchEvery       time.Duration
	watchAutoInstall bool
	watchURLs        []string
)

func init() {
	watchCmd.Flags().DurationVar(&watchEvery, "every", 15*time.Minute, "How often to ask for a check")
	watchCmd.Flags().BoolVar(&watchAutoInstall, "auto-install", false, "Install each package as soon as it is ready")
	watchCmd.Flags().StringSliceVar(&watchURLs, "url", nil, "Manifest URL (repeatable, tried in order)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep checking for updates in the foreground",
	Long: `Requests an unforced check on every tick until interrupted. The enabled
flag and the minimum check interval still decide whether a tick reaches the
manifest server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchEvery <= 0 {
			return fmt.Errorf("--every must be positive, got %s", watchEvery)
		}
		urls, err := manifestURLs(watchURLs)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		go a.handleEvents(ctx, cmd.OutOrStdout(), watchAutoInstall)

		log.Infof("watching %d manifest URL(s) every %s", len(urls), watchEvery)
		ticker := time.NewTicker(watchEvery)
		defer ticker.Stop()
		for {
			if err := a.coordinator.CheckForUpdates(ctx, urls...); err != nil {
				if !errors.Is(err, updater.ErrCheckInProgress) {
					return err
				}
				log.Debug("previous check still running, skipping tick")
			}
			select {
			case <-ctx.Done():
				log.Info("stopping watch")
				return a.coordinator.WaitIdle(context.Background())
			case <-ticker.C:
			}
		}
	},
}

// handleEvents reports cycle outcomes until ctx is done.
func (a *app) handleEvents(ctx context.Context, w io.Writer, autoInstall bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events.Events():
			switch ev.Kind {
			case updater.EventUpdateFound:
				printUpdateFound(w, ev)
				if autoInstall {
					if err := a.coordinator.InstallUpdate(ctx); err != nil {
						log.WithError(err).Error("automatic install failed")
					}
				}
			case updater.EventError:
				log.WithError(ev.Err).Error("update check failed")
			}
		}
	}
}
