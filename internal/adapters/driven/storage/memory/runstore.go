// Package memory provides an in-memory implementation of the run store,
// used by tests and by ephemeral sessions that should not touch disk.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
)

// RunStore is a thread-safe in-memory driven.RunStore.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]domain.Run
	results map[uuid.UUID]domain.ClusteringResult
}

var _ driven.RunStore = (*RunStore)(nil)

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[uuid.UUID]domain.Run),
		results: make(map[uuid.UUID]domain.ClusteringResult),
	}
}

// SaveRun stores or updates a run.
func (s *RunStore) SaveRun(_ context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns all saved runs, newest first.
func (s *RunStore) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// RenameRun updates a run's display name.
func (s *RunStore) RenameRun(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	run.Name = name
	s.runs[id] = run
	return nil
}

// DeleteRun removes a run and its result.
func (s *RunStore) DeleteRun(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.runs, id)
	delete(s.results, id)
	return nil
}

// SaveResult stores a complete result, replacing any previous one for
// the same run. The map swap makes the write atomic for readers.
func (s *RunStore) SaveResult(_ context.Context, result domain.ClusteringResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.RunID] = result
	return nil
}

// GetResult retrieves the result for a run.
func (s *RunStore) GetResult(_ context.Context, runID uuid.UUID) (*domain.ClusteringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &result, nil
}

// RenameCluster updates a cluster's display name across all results.
// The clusters slice is copied before the write so results handed out
// by earlier reads keep their snapshot.
func (s *RunStore) RenameCluster(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, result := range s.results {
		for i := range result.Clusters {
			if result.Clusters[i].ID != id {
				continue
			}
			clusters := make([]domain.Cluster, len(result.Clusters))
			copy(clusters, result.Clusters)
			clusters[i].Name = name
			result.Clusters = clusters
			s.results[runID] = result
			return nil
		}
	}
	return domain.ErrNotFound
}
