// Package downloader fetches update packages to local storage. It walks the
// candidate locations in order, retries transient failures with exponential
// backoff, verifies an optional sha256 pinned in the location fragment, and
// implements updater.Downloader.
package downloader
