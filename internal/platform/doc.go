// Package platform provides cross-platform filesystem helpers. Permission
// changes are applied directly on Unix and skipped on Windows, which has no
// Unix-style permission bits.
package platform
