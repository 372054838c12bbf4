package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/appupdate-labs/appupdate/internal/platform"
	"github.com/appupdate-labs/appupdate/internal/updater"
)

const (
	// DefaultRetries is the number of extra attempts per candidate.
	DefaultRetries = 2
	// DefaultRetryInterval is the first backoff delay.
	DefaultRetryInterval = time.Second

	packageFileMode os.FileMode = 0644
)

// Downloader writes packages into a single directory.
type Downloader struct {
	dir           string
	httpClient    *http.Client
	userAgent     string
	retries       uint64
	retryInterval time.Duration
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with package requests.
func WithUserAgent(userAgent string) Option {
	return func(d *Downloader) {
		d.userAgent = userAgent
	}
}

// WithRetries sets how many times a failing candidate is retried before
// moving to the next one.
func WithRetries(n uint64) Option {
	return func(d *Downloader) {
		d.retries = n
	}
}

// WithRetryInterval sets the initial backoff delay between retries.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Downloader) {
		d.retryInterval = interval
	}
}

// New creates a Downloader that stores packages in dir.
func New(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		dir:           dir,
		httpClient:    http.DefaultClient,
		userAgent:     "appupdate-downloader",
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download implements updater.Downloader. The download runs on its own
// goroutine and reports exactly once to l.
func (d *Downloader) Download(ctx context.Context, locations []*url.URL, l updater.DownloadListener) {
	go func() {
		path, err := d.Fetch(ctx, locations)
		if err != nil {
			l.OnDownloadError(err)
			return
		}
		l.OnDownloadResult(path)
	}()
}

// Fetch downloads the first candidate that succeeds and returns its local
// path. An empty candidate list yields an empty path and no error.
func (d *Downloader) Fetch(ctx context.Context, locations []*url.URL) (string, error) {
	if len(locations) == 0 {
		log.Debug("no download candidates")
		return "", nil
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("creating download directory %s: %w", d.dir, err)
	}

	var errs []error
	for _, loc := range locations {
		dest, err := d.fetchCandidate(ctx, loc)
		if err == nil {
			log.WithField("path", dest).Infof("downloaded %s", displayURL(loc))
			return dest, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("download cancelled: %w", ctxErr)
		}
		log.WithError(err).Warnf("download candidate %s failed", displayURL(loc))
		errs = append(errs, fmt.Errorf("%s: %w", displayURL(loc), err))
	}
	return "", fmt.Errorf("all %d download candidates failed: %w", len(locations), errors.Join(errs...))
}

func (d *Downloader) fetchCandidate(ctx context.Context, loc *url.URL) (string, error) {
	expected, err := checksumFromFragment(loc)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	op := func() error {
		if err := rewind(tmp); err != nil {
			return backoff.Permanent(err)
		}
		return d.fetchOnce(ctx, loc, tmp)
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).Debugf("retrying %s in %s", displayURL(loc), wait)
	}
	if err := backoff.RetryNotify(op, d.newBackOff(ctx), notify); err != nil {
		return "", err
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing download file: %w", err)
	}

	if expected != "" {
		if err := verifyChecksum(tmpPath, expected); err != nil {
			return "", err
		}
	}

	if err := platform.Chmod(tmpPath, packageFileMode); err != nil {
		return "", fmt.Errorf("setting package permissions: %w", err)
	}

	dest := filepath.Join(d.dir, packageName(loc))
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("moving package into place: %w", err)
	}
	return dest, nil
}

func (d *Downloader) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, d.retries), ctx)
}

func (d *Downloader) fetchOnce(ctx context.Context, loc *url.URL, out io.Writer) error {
	switch loc.Scheme {
	case "http", "https":
		return d.fetchHTTP(ctx, loc, out)
	case "file":
		return copyLocal(loc.Path, out)
	default:
		return backoff.Permanent(fmt.Errorf("unsupported download scheme %q", loc.Scheme))
	}
}

func (d *Downloader) fetchHTTP(ctx context.Context, loc *url.URL, out io.Writer) error {
	target := *loc
	target.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating download request: %w", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(fmt.Errorf("download returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	pw := &progressWriter{w: out, total: resp.ContentLength, name: path.Base(target.Path), lastPercent: -1}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		return fmt.Errorf("reading download stream: %w", err)
	}
	return nil
}

func copyLocal(src string, out io.Writer) error {
	in, err := os.Open(src)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("opening %s: %w", src, err))
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

func rewind(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncating download file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking download file: %w", err)
	}
	return nil
}

// packageName derives the local file name from the last path segment.
func packageName(loc *url.URL) string {
	name := path.Base(loc.Path)
	if name == "" || name == "." || name == "/" {
		return "package-" + uuid.NewString()
	}
	return name
}

// displayURL drops credentials and the checksum fragment for logging.
func displayURL(loc *url.URL) string {
	u := *loc
	u.User = nil
	u.Fragment = ""
	return u.String()
}

// progressWriter logs download progress in 10% steps.
type progressWriter struct {
	w           io.Writer
	total       int64
	written     int64
	name        string
	lastPercent int
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.total > 0 {
		percent := int(p.written*100/p.total) / 10 * 10
		if percent != p.lastPercent {
			log.Debugf("downloading %s... %d%%", p.name, percent)
			p.lastPercent = percent
		}
	}
	return n, err
}
