package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReylordDev/psycluster/internal/adapters/driven/config/file"
)

func setupConfigCLI(t *testing.T) {
	t.Helper()

	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	previous := &Services{Dispatcher: dispatcher, Broker: broker, Config: configStore}
	SetServices(&Services{Config: store})
	t.Cleanup(func() { SetServices(previous) })
}

func TestSettingsShow_DefaultsUnset(t *testing.T) {
	setupConfigCLI(t)

	out, err := execute(t, "settings")

	assert.NoError(t, err)
	assert.Contains(t, out, "listen_addr = (not set)")
	assert.Contains(t, out, "worker_command = (not set)")
}

func TestSettingsSetAndShow(t *testing.T) {
	setupConfigCLI(t)

	_, err := execute(t, "settings", "set", "listen_addr", "127.0.0.1:9000")
	require.NoError(t, err)

	out, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "listen_addr = 127.0.0.1:9000")
}

func TestSettingsUnset(t *testing.T) {
	setupConfigCLI(t)

	_, err := execute(t, "settings", "set", "worker_command", "python")
	require.NoError(t, err)
	_, err = execute(t, "settings", "unset", "worker_command")
	require.NoError(t, err)

	out, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "worker_command = (not set)")
}

func TestSettings_NotConfigured(t *testing.T) {
	previous := &Services{Dispatcher: dispatcher, Broker: broker, Config: configStore}
	SetServices(&Services{})
	t.Cleanup(func() { SetServices(previous) })

	_, err := execute(t, "settings")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
