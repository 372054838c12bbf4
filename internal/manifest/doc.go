// Package manifest handles parsing and validation of update manifests: the
// remote documents that name the latest application version, its changelog
// and the locations its package can be downloaded from. Manifests are YAML;
// JSON documents are accepted as well. Validation runs against the JSON
// Schema embedded from schema/manifest.schema.json.
package manifest
