// Package config holds the process options of previewctl, read from a TOML
// file, and is the root of the settings packages:
//
//   - layer: per-scope values and their merge order
//   - settings: JSON settings files edited in place
//   - registry: setting metadata, defaults and validation
//   - notify: change notifications
//   - watcher: settings file watching
//   - store: the host configuration service built from the above
//   - scope: write scope resolution
package config
