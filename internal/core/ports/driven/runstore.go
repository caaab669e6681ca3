package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

// RunStore persists runs and their clustering results.
//
// Results are written atomically: a reader never observes a partially
// saved result graph. Deleting a run cascades to its result.
type RunStore interface {
	// SaveRun stores a new run.
	SaveRun(ctx context.Context, run domain.Run) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)

	// ListRuns returns all saved runs, newest first.
	ListRuns(ctx context.Context) ([]domain.Run, error)

	// RenameRun updates a run's display name.
	// Returns domain.ErrNotFound if the run does not exist.
	RenameRun(ctx context.Context, id uuid.UUID, name string) error

	// DeleteRun removes a run and its clustering result.
	// Returns domain.ErrNotFound if the run does not exist.
	DeleteRun(ctx context.Context, id uuid.UUID) error

	// SaveResult stores a complete clustering result in one atomic
	// write.
	SaveResult(ctx context.Context, result domain.ClusteringResult) error

	// GetResult retrieves the full result graph for a run.
	// Returns domain.ErrNotFound if the run has no saved result.
	GetResult(ctx context.Context, runID uuid.UUID) (*domain.ClusteringResult, error)

	// RenameCluster updates a cluster's display name.
	// Returns domain.ErrNotFound if the cluster does not exist.
	RenameCluster(ctx context.Context, id uuid.UUID, name string) error
}
