package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

// AppState is the lock-guarded cell holding the process-wide shared
// state: the selected run id and the pending run configuration. Every
// read observes the most recent write; downstream pages depend on
// which run's data the selection points at, so stale reads are not
// tolerated.
type AppState struct {
	mu sync.RWMutex

	selectedRun *uuid.UUID

	filePath          string
	fileSettings      *domain.FileSettings
	algorithmSettings *domain.AlgorithmSettings
}

// NewAppState creates an empty state cell: nothing selected, nothing
// configured.
func NewAppState() *AppState {
	return &AppState{}
}

// SelectedRun returns the selected run id, or nil when none is
// selected.
func (s *AppState) SelectedRun() *uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedRun == nil {
		return nil
	}
	id := *s.selectedRun
	return &id
}

// SelectRun sets the selected run id.
func (s *AppState) SelectRun(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedRun = &id
}

// ClearSelection clears the selected run id.
func (s *AppState) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedRun = nil
}

// FilePath returns the pending input file path, or "".
func (s *AppState) FilePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filePath
}

// SetFilePath stores the pending input file path.
func (s *AppState) SetFilePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filePath = path
}

// FileSettings returns the pending file settings, or nil if unset.
func (s *AppState) FileSettings() *domain.FileSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fileSettings == nil {
		return nil
	}
	settings := *s.fileSettings
	return &settings
}

// SetFileSettings stores the pending file settings.
func (s *AppState) SetFileSettings(settings domain.FileSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileSettings = &settings
}

// AlgorithmSettings returns the pending algorithm settings, or nil if
// unset.
func (s *AppState) AlgorithmSettings() *domain.AlgorithmSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.algorithmSettings == nil {
		return nil
	}
	settings := *s.algorithmSettings
	return &settings
}

// SetAlgorithmSettings stores the pending algorithm settings.
func (s *AppState) SetAlgorithmSettings(settings domain.AlgorithmSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.algorithmSettings = &settings
}

// PendingConfig returns the complete pending run configuration, or
// false when any part is missing.
func (s *AppState) PendingConfig() (string, domain.FileSettings, domain.AlgorithmSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.filePath == "" || s.fileSettings == nil || s.algorithmSettings == nil {
		return "", domain.FileSettings{}, domain.AlgorithmSettings{}, false
	}
	return s.filePath, *s.fileSettings, *s.algorithmSettings, true
}
