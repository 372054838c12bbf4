package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/appupdate-labs/appupdate/internal/manifest"
	"github.com/appupdate-labs/appupdate/internal/updater"
)

const manifestYAML = `latestVersion:
  versionName: "1.5.0"
  versionCode: 150
  changelog:
    - New playback engine
downloadUris:
  - app-1.5.0.apk#sha256=abcd
  - https://mirror.example.com/app-1.5.0.apk
`

func serveManifest(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheck_NewerVersion(t *testing.T) {
	server := serveManifest(t, manifestYAML)
	c := New("1.4.0", 140, WithHTTPClient(server.Client()))

	info, err := c.Check(context.Background(), []string{server.URL + "/releases/manifest.yaml"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if info.IsLatest {
		t.Error("IsLatest = true, want false")
	}
	if info.VersionName != "1.5.0" || info.VersionNumber != 150 {
		t.Errorf("version = %s (%d)", info.VersionName, info.VersionNumber)
	}
	if !reflect.DeepEqual(info.Changelog, []string{"New playback engine"}) {
		t.Errorf("Changelog = %v", info.Changelog)
	}
	if len(info.DownloadLocations) != 2 {
		t.Fatalf("DownloadLocations = %v", info.DownloadLocations)
	}
	if got, want := info.DownloadLocations[0].String(), server.URL+"/releases/app-1.5.0.apk#sha256=abcd"; got != want {
		t.Errorf("relative URI resolved to %q, want %q", got, want)
	}
	if got := info.DownloadLocations[1].String(); got != "https://mirror.example.com/app-1.5.0.apk" {
		t.Errorf("absolute URI = %q", got)
	}
}

func TestCheck_LatestDecision(t *testing.T) {
	tests := []struct {
		name        string
		currentName string
		currentCode int
		wantLatest  bool
	}{
		{"older code", "1.4.0", 149, false},
		{"same code", "1.5.0", 150, true},
		{"newer code", "1.6.0", 151, true},
		{"no code, older name", "1.4.9", 0, false},
		{"no code, same name", "v1.5.0", 0, true},
		{"dev build", "dev", 0, false},
	}

	server := serveManifest(t, manifestYAML)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.currentName, tt.currentCode, WithHTTPClient(server.Client()))
			info, err := c.Check(context.Background(), []string{server.URL})
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if info.IsLatest != tt.wantLatest {
				t.Errorf("IsLatest = %v, want %v", info.IsLatest, tt.wantLatest)
			}
		})
	}
}

func TestCheck_UnparseableCurrentVersion(t *testing.T) {
	server := serveManifest(t, manifestYAML)
	c := New("nightly-42", 0, WithHTTPClient(server.Client()))

	if _, err := c.Check(context.Background(), []string{server.URL}); err == nil {
		t.Error("expected version comparison error")
	}
}

func TestCheck_NoDownloadURIs(t *testing.T) {
	server := serveManifest(t, "latestVersion:\n  versionName: \"2.0.0\"\n  versionCode: 200\n")
	c := New("1.0.0", 100, WithHTTPClient(server.Client()))

	info, err := c.Check(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if info.DownloadLocations != nil {
		t.Errorf("DownloadLocations = %v, want nil", info.DownloadLocations)
	}
}

func TestCheck_FallsBackToNextURL(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()
	invalid := serveManifest(t, "latestVersion:\n  versionCode: 3\n")
	good := serveManifest(t, manifestYAML)

	c := New("1.0.0", 100)
	info, err := c.Check(context.Background(), []string{broken.URL, invalid.URL, good.URL})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if info.VersionNumber != 150 {
		t.Errorf("VersionNumber = %d, want 150", info.VersionNumber)
	}
}

func TestCheck_AllFail(t *testing.T) {
	invalid := serveManifest(t, "latestVersion:\n  versionCode: 3\n")
	c := New("1.0.0", 100)

	_, err := c.Check(context.Background(), []string{invalid.URL, "ftp://example.com/m.yaml"})
	if !errors.Is(err, ErrNoManifest) {
		t.Errorf("err = %v, want ErrNoManifest", err)
	}
	if !errors.Is(err, manifest.ErrInvalid) {
		t.Errorf("err = %v, want wrapped manifest.ErrInvalid", err)
	}
}

func TestCheck_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(manifestYAML), 0644); err != nil {
		t.Fatal(err)
	}

	c := New("1.0.0", 100)
	for _, ref := range []string{path, "file://" + filepath.ToSlash(path)} {
		info, err := c.Check(context.Background(), []string{ref})
		if err != nil {
			t.Fatalf("Check(%s) failed: %v", ref, err)
		}
		if info.VersionName != "1.5.0" {
			t.Errorf("VersionName = %q", info.VersionName)
		}
	}
}

type checkResult struct {
	info *updater.VersionInfo
	err  error
}

type chanCheckListener chan checkResult

func (l chanCheckListener) OnVersionCheckResult(info *updater.VersionInfo) { l <- checkResult{info: info} }
func (l chanCheckListener) OnCheckError(err error)                         { l <- checkResult{err: err} }

func TestCheckForUpdates_Async(t *testing.T) {
	server := serveManifest(t, manifestYAML)
	c := New("1.0.0", 100, WithHTTPClient(server.Client()))

	results := make(chanCheckListener, 1)
	c.CheckForUpdates(context.Background(), []string{server.URL}, results)

	select {
	case res := <-results:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.info.VersionNumber != 150 {
			t.Errorf("VersionNumber = %d", res.info.VersionNumber)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener not called")
	}

	c.CheckForUpdates(context.Background(), []string{"ftp://nowhere"}, results)
	select {
	case res := <-results:
		if res.err == nil {
			t.Error("expected OnCheckError")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener not called")
	}
}
