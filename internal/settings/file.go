package settings

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// fileBackend keeps settings in a YAML file through a private viper instance.
type fileBackend struct {
	v    *viper.Viper
	path string
}

// OpenFile opens a YAML-backed store at path. A missing file is created on the
// first write.
func OpenFile(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return newStore(&fileBackend{v: v, path: path})
}

func (b *fileBackend) load() (map[string]any, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil, nil
	}
	if err := b.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", b.path, err)
	}
	values := make(map[string]any)
	for _, key := range b.v.AllKeys() {
		values[key] = b.v.Get(key)
	}
	return values, nil
}

func (b *fileBackend) save(key string, value any) error {
	previous := b.v.Get(key)
	b.v.Set(key, value)
	if err := b.v.WriteConfigAs(b.path); err != nil {
		b.v.Set(key, previous)
		return fmt.Errorf("writing settings %s: %w", b.path, err)
	}
	return nil
}

func (b *fileBackend) close() error { return nil }

func (b *fileBackend) location() string { return b.path }
