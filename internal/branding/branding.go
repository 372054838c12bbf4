// Package branding provides compile-time identity values for the CLI.
//
// Forks edit branding.yaml in this package. Go's //go:embed bakes it into the
// binary, so the values are fixed at build time.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	HomeDir     string `yaml:"home_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	UserAgent   string `yaml:"user_agent"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:     "appupdate",
			DisplayName: "AppUpdate",
			Description: "Check, download and install application updates",
			HomeDir:     ".appupdate",
			EnvPrefix:   "APPUPDATE",
			UserAgent:   "appupdate",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "appupdate").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".appupdate").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "APPUPDATE").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// UserAgent returns the User-Agent product token sent with HTTP requests.
// The version is appended by the caller.
func UserAgent(version string) string {
	load()
	if version == "" {
		return defaults.UserAgent
	}
	return defaults.UserAgent + "/" + version
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "APPUPDATE_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
