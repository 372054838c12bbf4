package cli

import (
	"fmt"
	"io"

	"github.com/appupdate-labs/appupdate/internal/branding"
	"github.com/appupdate-labs/appupdate/internal/checker"
	"github.com/appupdate-labs/appupdate/internal/config"
	"github.com/appupdate-labs/appupdate/internal/downloader"
	"github.com/appupdate-labs/appupdate/internal/installer"
	"github.com/appupdate-labs/appupdate/internal/settings"
	"github.com/appupdate-labs/appupdate/internal/updater"
)

// eventBuffer bounds how many cycle outcomes can be queued before the
// coordinator blocks on the listener.
const eventBuffer = 16

// app is the wired update stack for a single command invocation.
type app struct {
	store       *settings.Store
	coordinator *updater.Coordinator
	events      *updater.ChannelListener
}

// newApp builds the coordinator and its collaborators from configuration.
func newApp() (*app, error) {
	store, err := settings.Open(config.Get(config.KeySettingsBackend), config.StateDir())
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	userAgent := branding.UserAgent(buildVersion)
	chk := checker.New(currentVersion(), config.GetInt(config.KeyCurrentVersionCode),
		checker.WithUserAgent(userAgent))
	dl := downloader.New(config.DownloadDir(),
		downloader.WithUserAgent(userAgent),
		downloader.WithRetries(uint64(max(config.GetInt(config.KeyDownloadRetries), 0))))
	inst := installer.New(config.GetList(config.KeyInstallCommand))

	events := updater.NewChannelListener(eventBuffer)
	return &app{
		store:       store,
		coordinator: updater.New(store, chk, dl, events, updater.WithInstaller(inst)),
		events:      events,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// currentVersion is the installed application version the checker compares
// against. It defaults to this binary's own version.
func currentVersion() string {
	if v := config.Get(config.KeyCurrentVersion); v != "" {
		return v
	}
	return buildVersion
}

// manifestURLs prefers URLs given on the command line over configured ones.
func manifestURLs(flagURLs []string) ([]string, error) {
	urls := flagURLs
	if len(urls) == 0 {
		urls = config.GetList(config.KeyManifestURLs)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no manifest URL configured; pass --url or run '%s config set %s <url>'",
			branding.CLIName(), config.KeyManifestURLs)
	}
	return urls, nil
}

// drainEvents returns the outcomes queued so far without blocking.
func (a *app) drainEvents() []updater.Event {
	var out []updater.Event
	for {
		select {
		case ev := <-a.events.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func printUpdateFound(w io.Writer, ev updater.Event) {
	fmt.Fprintf(w, "Update ready: %s\n", ev.PackagePath)
	if len(ev.Changelog) == 0 {
		return
	}
	fmt.Fprintln(w, "Changes:")
	for _, line := range ev.Changelog {
		fmt.Fprintf(w, "  - %s\n", line)
	}
}
