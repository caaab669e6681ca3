package driving

import (
	"context"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

// Dispatcher is the command broker: one method per command or query in
// the channel catalog.
//
// Commands return only an error; their effects are observable through
// the broadcast channels. Queries return a complete, self-consistent
// snapshot synchronously, or nil (without error) when no run is
// selected or the selected run has no saved result.
type Dispatcher interface {
	// SetFilePath stores the input file path in the pending run
	// configuration. Returns domain.ErrInvalidState while a run is
	// executing.
	SetFilePath(ctx context.Context, path string) error

	// GetFilePath returns the pending input file path, or "" if unset.
	GetFilePath(ctx context.Context) string

	// SetFileSettings stores the pending file parsing settings.
	// Returns domain.ErrInvalidState while a run is executing.
	SetFileSettings(ctx context.Context, settings domain.FileSettings) error

	// SetAlgorithmSettings stores the pending algorithm settings.
	// Returns domain.ErrInvalidState while a run is executing.
	SetAlgorithmSettings(ctx context.Context, settings domain.AlgorithmSettings) error

	// RunClustering launches the pipeline with the pending
	// configuration. Returns domain.ErrAlreadyRunning if a run is in
	// flight and domain.ErrInvalidState if the configuration is
	// incomplete. Progress is observable on the cluster-progress
	// broadcast channel.
	RunClustering(ctx context.Context) error

	// GetRuns returns summaries of all saved runs.
	GetRuns(ctx context.Context) (*domain.RunsMessage, error)

	// GetCurrentRun returns the selected run and its timesteps.
	GetCurrentRun(ctx context.Context) (*domain.CurrentRunMessage, error)

	// GetClusterAssignments returns the selected run's clusters with
	// their member responses.
	GetClusterAssignments(ctx context.Context) (*domain.ClusterAssignmentsMessage, error)

	// GetClusterSimilarities returns the selected run's clusters with
	// pairwise similarities.
	GetClusterSimilarities(ctx context.Context) (*domain.ClusterSimilaritiesMessage, error)

	// GetOutliers returns the selected run's outliers and threshold.
	GetOutliers(ctx context.Context) (*domain.OutliersMessage, error)

	// GetMergers returns the selected run's merge events and threshold.
	GetMergers(ctx context.Context) (*domain.MergersMessage, error)

	// UpdateRunName renames a run. The name must be 1-255 characters.
	UpdateRunName(ctx context.Context, id uuid.UUID, name string) error

	// UpdateClusterName renames a cluster. The name must be 1-255
	// characters.
	UpdateClusterName(ctx context.Context, id uuid.UUID, name string) error

	// DeleteRun removes a run and its result. If the run was selected,
	// the selection is cleared.
	DeleteRun(ctx context.Context, id uuid.UUID) error

	// SetRunID selects the run all read queries operate on.
	SetRunID(ctx context.Context, id uuid.UUID) error

	// ResetRunID clears the selection.
	ResetRunID(ctx context.Context) error
}
