// Package config manages user-level settings stored at ~/.appupdate/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the manifest URLs, the settings backend and the install command.
package config
