// Package settings persists the updater's state across restarts.
//
// A Store keeps the last check time, the minimum check interval, the enabled
// flag, the latest known version and the path of the last downloaded package.
// Values are cached in memory and written through to a backend on every
// change: a YAML file managed by viper, or a key/value table in SQLite.
package settings
