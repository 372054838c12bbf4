package updater

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/appupdate-labs/appupdate/internal/platform"
)

var (
	// ErrNoManifestURLs is returned when a check is requested without any manifest URL.
	ErrNoManifestURLs = errors.New("no manifest URLs given")
	// ErrCheckInProgress is returned when a check is requested while another cycle runs.
	ErrCheckInProgress = errors.New("update check already in progress")
	// ErrNoInstaller is returned by InstallUpdate when no Installer was configured.
	ErrNoInstaller = errors.New("no installer configured")
)

// Coordinator drives update cycles. At most one cycle is in flight at a time.
type Coordinator struct {
	settings   Settings
	checker    VersionChecker
	downloader Downloader
	installer  Installer
	listener   Listener
	now        func() time.Time
	fileExists func(path string) bool

	mu        sync.Mutex
	cycle     *cycle
	ending    *cycle // most recently released; done closes after notify
	changelog []string
}

type cycle struct {
	ctx     context.Context
	log     *log.Entry
	done    chan struct{}
	endOnce sync.Once
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInstaller sets the collaborator used by InstallUpdate.
func WithInstaller(i Installer) Option {
	return func(c *Coordinator) {
		c.installer = i
	}
}

// WithClock replaces time.Now (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator over the given collaborators.
func New(settings Settings, checker VersionChecker, downloader Downloader, listener Listener, opts ...Option) *Coordinator {
	c := &Coordinator{
		settings:   settings,
		checker:    checker,
		downloader: downloader,
		listener:   listener,
		now:        time.Now,
		fileExists: platform.IsRegularFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckForUpdates starts a cycle if checking is enabled and the last check is
// older than the configured minimum interval. Otherwise it does nothing.
func (c *Coordinator) CheckForUpdates(ctx context.Context, manifestURLs ...string) error {
	return c.RequestCheck(ctx, manifestURLs, false)
}

// ForceCheckForUpdates starts a cycle regardless of the enabled flag and the
// minimum interval.
func (c *Coordinator) ForceCheckForUpdates(ctx context.Context, manifestURLs ...string) error {
	return c.RequestCheck(ctx, manifestURLs, true)
}

// RequestCheck starts a check cycle. The outcome is reported to the Listener
// asynchronously; a skipped check returns nil and reports nothing.
func (c *Coordinator) RequestCheck(ctx context.Context, manifestURLs []string, force bool) error {
	if len(manifestURLs) == 0 {
		return ErrNoManifestURLs
	}

	if !force {
		if !c.IsEnabled() {
			log.Debug("update checks are disabled, skipping")
			return nil
		}
		if !c.isStale() {
			log.Debugf("last update check at %s is recent, skipping", c.settings.LastCheckedAt().Format(time.RFC3339))
			return nil
		}
	}

	cy, err := c.begin(ctx)
	if err != nil {
		return err
	}

	cy.log.WithField("force", force).Infof("checking %d manifest(s) for updates", len(manifestURLs))
	c.checker.CheckForUpdates(ctx, manifestURLs, c)
	return nil
}

// OnVersionCheckResult implements CheckListener.
func (c *Coordinator) OnVersionCheckResult(info *VersionInfo) {
	cy := c.current()
	if cy == nil {
		log.Warn("version check result arrived without an active cycle")
		return
	}

	if info == nil || info.IsLatest || info.DownloadLocations == nil {
		cy.log.Debug("no newer version available")
		c.end(cy, nil)
		return
	}

	c.mu.Lock()
	c.changelog = info.Changelog
	c.mu.Unlock()

	// A stored package is only valid for the version it was downloaded for,
	// so it is forgotten before a different version is recorded.
	previous := c.settings.LatestVersionNumber()
	if previous != info.VersionNumber && c.settings.PackagePath() != "" {
		if err := c.settings.SetPackagePath(""); err != nil {
			c.fail(cy, err)
			return
		}
	}
	if err := c.settings.SetLatestVersionName(info.VersionName); err != nil {
		c.fail(cy, err)
		return
	}
	if err := c.settings.SetLatestVersionNumber(info.VersionNumber); err != nil {
		c.fail(cy, err)
		return
	}

	path := c.settings.PackagePath()
	if previous == info.VersionNumber && c.fileExists(path) {
		cy.log.WithField("path", path).Infof("version %s already downloaded", info.VersionName)
		changelog := info.Changelog
		c.end(cy, func() { c.listener.OnUpdateFound(changelog, path) })
		return
	}

	cy.log.Infof("downloading version %s (%d)", info.VersionName, info.VersionNumber)
	c.downloader.Download(cy.ctx, info.DownloadLocations, c)
}

// OnDownloadResult implements DownloadListener.
func (c *Coordinator) OnDownloadResult(path string) {
	cy := c.current()
	if cy == nil {
		log.Warn("download result arrived without an active cycle")
		return
	}

	// An empty path ends the cycle quietly; the next cycle retries.
	if path == "" {
		cy.log.Debug("downloader returned no package")
		c.end(cy, nil)
		return
	}

	if err := c.settings.SetPackagePath(path); err != nil {
		c.fail(cy, err)
		return
	}
	if err := c.settings.SetLastCheckedAt(c.now()); err != nil {
		c.fail(cy, err)
		return
	}

	c.mu.Lock()
	changelog := c.changelog
	c.mu.Unlock()

	cy.log.WithField("path", path).Info("update downloaded")
	cy.log.Debugf("changelog: %v", changelog)
	c.end(cy, func() { c.listener.OnUpdateFound(changelog, path) })
}

// OnCheckError implements CheckListener.
func (c *Coordinator) OnCheckError(err error) {
	c.forwardError("version check failed", err)
}

// OnDownloadError implements DownloadListener.
func (c *Coordinator) OnDownloadError(err error) {
	c.forwardError("download failed", err)
}

// IsEnabled reports whether non-forced checks may run.
func (c *Coordinator) IsEnabled() bool {
	return c.settings.Enabled()
}

// SetEnabled toggles non-forced checks. It takes effect on the next request.
func (c *Coordinator) SetEnabled(enabled bool) error {
	return c.settings.SetEnabled(enabled)
}

// InstallUpdate hands the most recently downloaded package to the Installer.
// The stored path is not validated.
func (c *Coordinator) InstallUpdate(ctx context.Context) error {
	if c.installer == nil {
		return ErrNoInstaller
	}
	path := c.settings.PackagePath()
	log.WithField("path", path).Info("installing update")
	return c.installer.Install(ctx, path)
}

// WaitIdle blocks until no cycle is in flight and the listener has heard the
// outcome of the last one, or until ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		cy := c.cycle
		if cy == nil {
			cy = c.ending
		}
		c.mu.Unlock()
		if cy == nil {
			return nil
		}
		select {
		case <-cy.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if c.current() == nil {
			return nil
		}
	}
}

// Status is a snapshot of the persisted update state.
type Status struct {
	Enabled             bool
	Checking            bool
	Due                 bool // an unforced check would start now
	LastCheckedAt       time.Time
	MinInterval         time.Duration
	LatestVersionName   string
	LatestVersionNumber int
	PackagePath         string
	PackagePresent      bool
}

// Status returns the current persisted state.
func (c *Coordinator) Status() Status {
	path := c.settings.PackagePath()
	return Status{
		Enabled:             c.settings.Enabled(),
		Checking:            c.current() != nil,
		Due:                 c.settings.Enabled() && c.isStale(),
		LastCheckedAt:       c.settings.LastCheckedAt(),
		MinInterval:         c.settings.MinInterval(),
		LatestVersionName:   c.settings.LatestVersionName(),
		LatestVersionNumber: c.settings.LatestVersionNumber(),
		PackagePath:         path,
		PackagePresent:      c.fileExists(path),
	}
}

func (c *Coordinator) isStale() bool {
	return c.now().Sub(c.settings.LastCheckedAt()) > c.settings.MinInterval()
}

func (c *Coordinator) begin(ctx context.Context) (*cycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycle != nil {
		return nil, ErrCheckInProgress
	}
	c.cycle = &cycle{
		ctx:  ctx,
		log:  log.WithField("cycle", uuid.NewString()),
		done: make(chan struct{}),
	}
	return c.cycle, nil
}

func (c *Coordinator) current() *cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

// end releases the cycle guard before notify runs, so the listener may start
// the next cycle, and closes done only after notify returns.
func (c *Coordinator) end(cy *cycle, notify func()) {
	cy.endOnce.Do(func() {
		c.mu.Lock()
		if c.cycle == cy {
			c.cycle = nil
		}
		c.ending = cy
		c.mu.Unlock()

		if notify != nil {
			notify()
		}
		close(cy.done)
	})
}

func (c *Coordinator) fail(cy *cycle, err error) {
	cy.log.WithError(err).Error("update cycle failed")
	c.end(cy, func() { c.listener.OnError(err) })
}

func (c *Coordinator) forwardError(msg string, err error) {
	cy := c.current()
	if cy == nil {
		log.WithError(err).Warnf("%s without an active cycle", msg)
		return
	}
	cy.log.WithError(err).Warn(msg)
	c.end(cy, func() { c.listener.OnError(err) })
}

