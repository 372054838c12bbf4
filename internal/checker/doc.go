// Package checker fetches update manifests and decides whether the remote
// release is newer than the running application. It implements
// updater.VersionChecker.
package checker
