// Package file provides a TOML file-based configuration store.
//
// Settings live in a single config.toml under the psycluster config
// directory and are written back on every mutation. A filesystem watcher
// (fsnotify) lets long-lived processes observe external edits to the
// file without restarting.
package file
