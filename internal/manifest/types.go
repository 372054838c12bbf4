package manifest

// Manifest is a parsed update manifest.
type Manifest struct {
	LatestVersion LatestVersion `yaml:"latestVersion" json:"latestVersion"`
	// DownloadURIs are candidate package locations in fallback order. Relative
	// references are resolved against the manifest URL by the caller. A
	// "#sha256=<hex>" fragment pins the package checksum.
	DownloadURIs []string `yaml:"downloadUris,omitempty" json:"downloadUris,omitempty"`
}

// LatestVersion describes the newest published release.
type LatestVersion struct {
	VersionName string   `yaml:"versionName" json:"versionName"`
	VersionCode int      `yaml:"versionCode,omitempty" json:"versionCode,omitempty"`
	Changelog   []string `yaml:"changelog,omitempty" json:"changelog,omitempty"`
}
