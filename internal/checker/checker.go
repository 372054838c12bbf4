package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/appupdate-labs/appupdate/internal/manifest"
	"github.com/appupdate-labs/appupdate/internal/updater"
)

const (
	// DefaultTimeout bounds a single manifest request.
	DefaultTimeout = 30 * time.Second
	// maxManifestSize caps the manifest body.
	maxManifestSize = 1 << 20
)

// ErrNoManifest is returned when none of the manifest URLs could be loaded.
var ErrNoManifest = errors.New("no update manifest could be loaded")

// Checker compares the running version against remote manifests.
type Checker struct {
	current    Release
	httpClient *http.Client
	userAgent  string
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent header sent with manifest requests.
func WithUserAgent(userAgent string) Option {
	return func(c *Checker) {
		c.userAgent = userAgent
	}
}

// New creates a Checker for the running version. currentCode may be 0 when
// the application has no numeric version code; names are compared as semver
// in that case.
func New(currentName string, currentCode int, opts ...Option) *Checker {
	c := &Checker{
		current:    Release{Name: currentName, Code: currentCode},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "appupdate-checker",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckForUpdates implements updater.VersionChecker. The check runs on its
// own goroutine and reports exactly once to l.
func (c *Checker) CheckForUpdates(ctx context.Context, manifestURLs []string, l updater.CheckListener) {
	go func() {
		info, err := c.Check(ctx, manifestURLs)
		if err != nil {
			l.OnCheckError(err)
			return
		}
		l.OnVersionCheckResult(info)
	}()
}

// Check loads the manifests in order and returns the answer from the first
// one that loads and validates.
func (c *Checker) Check(ctx context.Context, manifestURLs []string) (*updater.VersionInfo, error) {
	var errs []error
	for _, raw := range manifestURLs {
		m, base, err := c.load(ctx, raw)
		if err != nil {
			log.WithError(err).Debugf("manifest %s unusable", raw)
			errs = append(errs, err)
			continue
		}
		return c.versionInfo(m, base)
	}
	if len(errs) == 0 {
		return nil, ErrNoManifest
	}
	return nil, fmt.Errorf("%w: %w", ErrNoManifest, errors.Join(errs...))
}

func (c *Checker) load(ctx context.Context, raw string) (*manifest.Manifest, *url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing manifest URL %q: %w", raw, err)
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		data, err = c.fetch(ctx, u)
	case "file":
		data, err = os.ReadFile(u.Path)
	case "":
		data, err = os.ReadFile(raw)
	default:
		err = fmt.Errorf("unsupported manifest scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading manifest %s: %w", raw, err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest %s: %w", raw, err)
	}
	return m, u, nil
}

func (c *Checker) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml, application/json;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxManifestSize {
		return nil, fmt.Errorf("manifest larger than %d bytes", maxManifestSize)
	}
	return body, nil
}

func (c *Checker) versionInfo(m *manifest.Manifest, base *url.URL) (*updater.VersionInfo, error) {
	latest, err := c.isLatest(m.LatestVersion)
	if err != nil {
		return nil, err
	}

	info := &updater.VersionInfo{
		IsLatest:      latest,
		VersionName:   m.LatestVersion.VersionName,
		VersionNumber: m.LatestVersion.VersionCode,
		Changelog:     m.LatestVersion.Changelog,
	}

	for _, raw := range m.DownloadURIs {
		ref, err := url.Parse(raw)
		if err != nil {
			log.WithError(err).Warnf("skipping malformed download URI %q", raw)
			continue
		}
		info.DownloadLocations = append(info.DownloadLocations, base.ResolveReference(ref))
	}
	return info, nil
}

func (c *Checker) isLatest(remote manifest.LatestVersion) (bool, error) {
	newer, err := Newer(c.current, Release{Name: remote.VersionName, Code: remote.VersionCode})
	if err != nil {
		return false, fmt.Errorf("comparing versions: %w", err)
	}
	return !newer, nil
}
