package updater_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appupdate-labs/appupdate/internal/checker"
	"github.com/appupdate-labs/appupdate/internal/downloader"
	"github.com/appupdate-labs/appupdate/internal/settings"
	"github.com/appupdate-labs/appupdate/internal/updater"
)

var packageBytes = []byte("signed package 2.0.0")

// stackEnv runs a coordinator against real collaborators and a local manifest server.
type stackEnv struct {
	dir          string
	manifestURL  string
	manifestHits atomic.Int32
	packageHits  atomic.Int32
	failPackages atomic.Bool
	coordinator  *updater.Coordinator
	events       *updater.ChannelListener
	store        *settings.Store
}

func newStackEnv(t *testing.T, backend string) *stackEnv {
	t.Helper()
	env := &stackEnv{dir: t.TempDir()}

	sum := sha256.Sum256(packageBytes)
	manifest := fmt.Sprintf(`latestVersion:
  versionName: "2.0.0"
  versionCode: 200
  changelog:
    - Rewritten sync engine
    - Smaller downloads
downloadUris:
  - /missing-mirror/app-2.0.0.apk
  - /packages/app-2.0.0.apk#sha256=%s
`, hex.EncodeToString(sum[:]))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.yaml":
			env.manifestHits.Add(1)
			fmt.Fprint(w, manifest)
		case "/packages/app-2.0.0.apk":
			env.packageHits.Add(1)
			if env.failPackages.Load() {
				http.Error(w, "mirror unavailable", http.StatusInternalServerError)
				return
			}
			w.Write(packageBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	env.manifestURL = server.URL + "/manifest.yaml"

	store, err := settings.Open(backend, filepath.Join(env.dir, "state"))
	if err != nil {
		t.Fatalf("opening settings: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	env.store = store

	env.events = updater.NewChannelListener(4)
	env.coordinator = updater.New(store,
		checker.New("1.0.0", 100, checker.WithHTTPClient(server.Client())),
		downloader.New(filepath.Join(env.dir, "packages"),
			downloader.WithHTTPClient(server.Client()),
			downloader.WithRetries(0)),
		env.events)
	return env
}

// check runs one cycle to completion and returns the event it produced, if any.
func (env *stackEnv) check(t *testing.T, force bool) *updater.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := env.coordinator.RequestCheck(ctx, []string{env.manifestURL}, force); err != nil {
		t.Fatalf("RequestCheck: %v", err)
	}
	if err := env.coordinator.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	select {
	case ev := <-env.events.Events():
		return &ev
	default:
		return nil
	}
}

func TestStack_CheckDownloadAndReuse(t *testing.T) {
	for _, backend := range []string{settings.BackendYAML, settings.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			env := newStackEnv(t, backend)
			wantPath := filepath.Join(env.dir, "packages", "app-2.0.0.apk")
			wantChangelog := []string{"Rewritten sync engine", "Smaller downloads"}

			// First check downloads from the second candidate.
			ev := env.check(t, true)
			if ev == nil || ev.Kind != updater.EventUpdateFound {
				t.Fatalf("first check event = %+v, want update found", ev)
			}
			if ev.PackagePath != wantPath || !reflect.DeepEqual(ev.Changelog, wantChangelog) {
				t.Errorf("first check = (%v, %q), want (%v, %q)", ev.Changelog, ev.PackagePath, wantChangelog, wantPath)
			}
			if n := env.packageHits.Load(); n != 1 {
				t.Errorf("package downloaded %d times, want 1", n)
			}
			if env.store.LatestVersionNumber() != 200 || env.store.LatestVersionName() != "2.0.0" {
				t.Errorf("persisted version = %s (%d)", env.store.LatestVersionName(), env.store.LatestVersionNumber())
			}

			// Same version with the package on disk skips the download.
			ev = env.check(t, true)
			if ev == nil || ev.Kind != updater.EventUpdateFound || ev.PackagePath != wantPath {
				t.Fatalf("second check event = %+v, want update found at %s", ev, wantPath)
			}
			if n := env.packageHits.Load(); n != 1 {
				t.Errorf("package downloaded %d times after reuse, want 1", n)
			}

			// A deleted package is fetched again.
			if err := os.Remove(wantPath); err != nil {
				t.Fatal(err)
			}
			if ev = env.check(t, true); ev == nil || ev.Kind != updater.EventUpdateFound {
				t.Fatalf("third check event = %+v, want update found", ev)
			}
			if n := env.packageHits.Load(); n != 2 {
				t.Errorf("package downloaded %d times after removal, want 2", n)
			}

			// An unforced check right after a download stays local.
			hits := env.manifestHits.Load()
			if ev = env.check(t, false); ev != nil {
				t.Errorf("unforced check produced %+v, want nothing", ev)
			}
			if n := env.manifestHits.Load(); n != hits {
				t.Errorf("manifest fetched %d times, want %d", n, hits)
			}
		})
	}
}

func TestStack_ManifestErrorReachesListener(t *testing.T) {
	env := newStackEnv(t, settings.BackendYAML)
	env.manifestURL += ".missing"

	ev := env.check(t, true)
	if ev == nil || ev.Kind != updater.EventError {
		t.Fatalf("event = %+v, want error", ev)
	}
	if env.store.LatestVersionNumber() != 0 || env.store.PackagePath() != "" {
		t.Error("error path must not change persisted settings")
	}
}

func TestStack_FailedDownloadRetriedNextCheck(t *testing.T) {
	env := newStackEnv(t, settings.BackendYAML)

	// A 1.5.0 package from an earlier cycle is still on disk.
	oldPackage := filepath.Join(env.dir, "packages", "app-1.5.0.apk")
	if err := os.MkdirAll(filepath.Dir(oldPackage), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(oldPackage, []byte("signed package 1.5.0"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, set := range []error{
		env.store.SetLatestVersionName("1.5.0"),
		env.store.SetLatestVersionNumber(150),
		env.store.SetPackagePath(oldPackage),
	} {
		if set != nil {
			t.Fatal(set)
		}
	}

	env.failPackages.Store(true)
	ev := env.check(t, true)
	if ev == nil || ev.Kind != updater.EventError {
		t.Fatalf("event with failing mirrors = %+v, want error", ev)
	}
	if env.store.LatestVersionNumber() != 200 {
		t.Errorf("latest version number = %d, want 200", env.store.LatestVersionNumber())
	}
	if env.store.PackagePath() != "" {
		t.Errorf("package path = %q after failed download, want empty", env.store.PackagePath())
	}

	env.failPackages.Store(false)
	wantPath := filepath.Join(env.dir, "packages", "app-2.0.0.apk")
	ev = env.check(t, true)
	if ev == nil || ev.Kind != updater.EventUpdateFound || ev.PackagePath != wantPath {
		t.Fatalf("event after recovery = %+v, want update found at %s", ev, wantPath)
	}
	if n := env.packageHits.Load(); n != 2 {
		t.Errorf("package requested %d times, want 2", n)
	}
	if env.store.PackagePath() != wantPath {
		t.Errorf("package path = %q, want %q", env.store.PackagePath(), wantPath)
	}
}
