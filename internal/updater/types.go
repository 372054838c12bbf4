package updater

import (
	"context"
	"net/url"
	"time"
)

// VersionInfo is the outcome of one manifest check.
type VersionInfo struct {
	// IsLatest reports that the running version is already the newest one.
	IsLatest      bool
	VersionName   string
	VersionNumber int
	Changelog     []string
	// DownloadLocations are candidate package URLs in fallback order.
	// nil means the manifest offered nothing to download.
	DownloadLocations []*url.URL
}

// Settings persists the updater state across restarts. Setters must be
// durable before they return.
type Settings interface {
	LastCheckedAt() time.Time
	SetLastCheckedAt(t time.Time) error
	MinInterval() time.Duration
	Enabled() bool
	SetEnabled(enabled bool) error
	LatestVersionName() string
	SetLatestVersionName(name string) error
	LatestVersionNumber() int
	SetLatestVersionNumber(number int) error
	PackagePath() string
	SetPackagePath(path string) error
}

// CheckListener receives the result of an asynchronous version check.
// Exactly one method is called per check.
type CheckListener interface {
	OnVersionCheckResult(info *VersionInfo)
	OnCheckError(err error)
}

// VersionChecker fetches manifests and reports to a CheckListener.
// CheckForUpdates must not block on I/O.
type VersionChecker interface {
	CheckForUpdates(ctx context.Context, manifestURLs []string, l CheckListener)
}

// DownloadListener receives the result of an asynchronous download.
// Exactly one method is called per download.
type DownloadListener interface {
	OnDownloadResult(path string)
	OnDownloadError(err error)
}

// Downloader fetches a package from the first working candidate location.
// Download must not block on I/O.
type Downloader interface {
	Download(ctx context.Context, locations []*url.URL, l DownloadListener)
}

// Installer hands a downloaded package to the operating system.
type Installer interface {
	Install(ctx context.Context, path string) error
}

// Listener is implemented by the host application.
type Listener interface {
	OnUpdateFound(changelog []string, packagePath string)
	OnError(err error)
}
