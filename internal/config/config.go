package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/appupdate-labs/appupdate/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys.
const (
	KeyManifestURLs       = "manifest_urls"
	KeyCurrentVersion     = "current_version"
	KeyCurrentVersionCode = "current_version_code"
	KeySettingsBackend    = "settings_backend"
	KeyDownloadDir        = "download_dir"
	KeyDownloadRetries    = "download_retries"
	KeyInstallCommand     = "install_command"
	KeyLogLevel           = "log_level"
	KeyLogFile            = "log_file"
)

// listKeys hold comma-separated values when written through Set.
var listKeys = map[string]bool{
	KeyManifestURLs:   true,
	KeyInstallCommand: true,
}

// Dir returns the path to the config directory (~/.appupdate/).
// APPUPDATE_HOME overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.appupdate/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// StateDir returns the directory holding the persisted update settings.
func StateDir() string {
	return filepath.Join(Dir(), "state")
}

// DownloadDir returns the directory downloaded packages are written to.
func DownloadDir() string {
	if v := viper.GetString(KeyDownloadDir); v != "" {
		return v
	}
	return filepath.Join(Dir(), "packages")
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeySettingsBackend, "yaml")
	viper.SetDefault(KeyDownloadRetries, 2)
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFile, "console")

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// GetInt returns an integer config value, or 0 if unset or malformed.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetList returns a list config value. Comma-separated strings, as set
// through the environment, are split into their elements.
func GetList(key string) []string {
	values := viper.GetStringSlice(key)
	if slices.ContainsFunc(values, func(v string) bool { return strings.Contains(v, ",") }) {
		values = splitList(strings.Join(values, ","))
	}
	return values
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	if key == KeyInstallCommand && !strings.Contains(value, ",") {
		// A plain command line is split into arguments on whitespace.
		viper.Set(key, strings.Fields(value))
	} else if listKeys[key] {
		viper.Set(key, splitList(value))
	} else {
		viper.Set(key, value)
	}

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsList reports whether key holds a list value.
func IsList(key string) bool {
	return listKeys[key]
}
