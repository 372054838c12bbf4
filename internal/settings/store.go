package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Persisted keys.
const (
	KeyLastCheckedMs       = "last_checked_ms"
	KeyMinIntervalMinutes  = "min_interval_minutes"
	KeyEnabled             = "enabled"
	KeyLatestVersionName   = "latest_version_name"
	KeyLatestVersionNumber = "latest_version_number"
	KeyPackagePath         = "package_path"
)

// Backend names accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

const (
	// DefaultMinInterval applies until an interval is configured.
	DefaultMinInterval = 60 * time.Minute

	yamlFileName   = "settings.yaml"
	sqliteFileName = "settings.db"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown settings backend")

// backend is the durable side of a Store.
type backend interface {
	load() (map[string]any, error)
	save(key string, value any) error
	close() error
	location() string
}

// Store is a write-through cache over a backend. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	values  map[string]any
	backend backend
}

// Open opens the store for the named backend inside dir, creating dir if needed.
// An empty backend name selects YAML.
func Open(backendName, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating settings directory %s: %w", dir, err)
	}
	switch backendName {
	case "", BackendYAML:
		return OpenFile(filepath.Join(dir, yamlFileName))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, sqliteFileName))
	default:
		return nil, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownBackend, backendName, BackendYAML, BackendSQLite)
	}
}

func newStore(b backend) (*Store, error) {
	values, err := b.load()
	if err != nil {
		_ = b.close()
		return nil, err
	}
	if values == nil {
		values = make(map[string]any)
	}
	return &Store{values: values, backend: b}, nil
}

// Location returns the file backing the store.
func (s *Store) Location() string {
	return s.backend.location()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.close()
}

// LastCheckedAt returns the time of the last completed download, or the zero
// time if none has been recorded.
func (s *Store) LastCheckedAt() time.Time {
	ms := cast.ToInt64(s.get(KeyLastCheckedMs))
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// SetLastCheckedAt stores t with millisecond precision.
func (s *Store) SetLastCheckedAt(t time.Time) error {
	return s.set(KeyLastCheckedMs, t.UnixMilli())
}

// MinInterval returns the minimum time between unforced checks.
func (s *Store) MinInterval() time.Duration {
	v := s.get(KeyMinIntervalMinutes)
	if v == nil {
		return DefaultMinInterval
	}
	minutes, err := cast.ToIntE(v)
	if err != nil || minutes < 0 {
		return DefaultMinInterval
	}
	return time.Duration(minutes) * time.Minute
}

// SetMinInterval stores d rounded down to whole minutes.
func (s *Store) SetMinInterval(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("minimum interval must not be negative, got %s", d)
	}
	return s.set(KeyMinIntervalMinutes, int(d/time.Minute))
}

// Enabled defaults to true.
func (s *Store) Enabled() bool {
	v := s.get(KeyEnabled)
	if v == nil {
		return true
	}
	enabled, err := cast.ToBoolE(v)
	if err != nil {
		return true
	}
	return enabled
}

// SetEnabled stores whether unforced checks may run.
func (s *Store) SetEnabled(enabled bool) error {
	return s.set(KeyEnabled, enabled)
}

// LatestVersionName returns the name of the newest version seen, or "".
func (s *Store) LatestVersionName() string {
	return cast.ToString(s.get(KeyLatestVersionName))
}

// SetLatestVersionName records the name of the newest version seen.
func (s *Store) SetLatestVersionName(name string) error {
	return s.set(KeyLatestVersionName, name)
}

// LatestVersionNumber returns the number of the newest version seen, or 0.
func (s *Store) LatestVersionNumber() int {
	return cast.ToInt(s.get(KeyLatestVersionNumber))
}

// SetLatestVersionNumber records the number of the newest version seen.
func (s *Store) SetLatestVersionNumber(n int) error {
	return s.set(KeyLatestVersionNumber, n)
}

// PackagePath returns the downloaded package for LatestVersionNumber, or "".
func (s *Store) PackagePath() string {
	return cast.ToString(s.get(KeyPackagePath))
}

// SetPackagePath records where the package for LatestVersionNumber was saved.
// An empty path forgets it.
func (s *Store) SetPackagePath(path string) error {
	return s.set(KeyPackagePath, path)
}

func (s *Store) get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// set writes to the backend first; the cache only changes once the write succeeded.
func (s *Store) set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.save(key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	s.values[key] = value
	return nil
}
