// Package updater sequences an application update cycle: it decides when a
// manifest check is due, interprets the version checker's answer, skips a
// download when the same version is already on disk, and tells the host when
// a package is ready to install. Fetching, downloading, persistence and
// installation are delegated to collaborators behind the interfaces in
// types.go.
package updater
