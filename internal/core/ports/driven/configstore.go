package driven

import "context"

// ConfigStore provides persistent application configuration: the data
// directory, the gateway listen address, the worker command line.
//
// Stores notify watchers when the persisted settings change on disk, so
// a long-lived broker picks up edits without restarting.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and true if found.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" if not set.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 if not set.
	GetInt(key string) int

	// GetBool retrieves a boolean value, or false if not set.
	GetBool(key string) bool

	// GetStringSlice retrieves a string slice value, or nil if not set.
	GetStringSlice(key string) []string

	// Set stores a configuration value and persists it.
	Set(key string, value any) error

	// Delete removes a configuration value and persists the change.
	Delete(key string) error

	// Watch delivers a notification each time the persisted
	// configuration changes, until the context is cancelled.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Well-known configuration keys.
const (
	// ConfigKeyDataDir is the directory holding the database and run
	// outputs.
	ConfigKeyDataDir = "data_dir"

	// ConfigKeyListenAddr is the gateway listen address.
	ConfigKeyListenAddr = "listen_addr"

	// ConfigKeyWorkerCommand is the worker executable.
	ConfigKeyWorkerCommand = "worker_command"

	// ConfigKeyWorkerArgs are extra worker arguments.
	ConfigKeyWorkerArgs = "worker_args"
)
