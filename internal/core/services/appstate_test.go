package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

func TestAppState_Selection(t *testing.T) {
	state := NewAppState()
	assert.Nil(t, state.SelectedRun())

	id := uuid.New()
	state.SelectRun(id)
	selected := state.SelectedRun()
	require.NotNil(t, selected)
	assert.Equal(t, id, *selected)

	state.ClearSelection()
	assert.Nil(t, state.SelectedRun())
}

func TestAppState_PendingConfig(t *testing.T) {
	state := NewAppState()

	_, _, _, ok := state.PendingConfig()
	assert.False(t, ok)

	state.SetFilePath("/tmp/a.csv")
	_, _, _, ok = state.PendingConfig()
	assert.False(t, ok)

	state.SetFileSettings(domain.FileSettings{Delimiter: ",", SelectedColumns: []int{0}})
	state.SetAlgorithmSettings(domain.DefaultAlgorithmSettings())

	path, fileSettings, algorithmSettings, ok := state.PendingConfig()
	require.True(t, ok)
	assert.Equal(t, "/tmp/a.csv", path)
	assert.Equal(t, ",", fileSettings.Delimiter)
	assert.Equal(t, domain.ClusterCountAuto, algorithmSettings.Method.Method)
}

func TestAppState_SnapshotsAreCopies(t *testing.T) {
	state := NewAppState()
	state.SetFileSettings(domain.FileSettings{Delimiter: ",", SelectedColumns: []int{0}})

	snapshot := state.FileSettings()
	require.NotNil(t, snapshot)
	snapshot.Delimiter = ";"

	unchanged := state.FileSettings()
	require.NotNil(t, unchanged)
	assert.Equal(t, ",", unchanged.Delimiter)
}
