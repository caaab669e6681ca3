package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

// RunJob is everything the worker needs to execute one pipeline run.
type RunJob struct {
	// RunID identifies the run the job belongs to.
	RunID uuid.UUID `json:"runId"`

	// FilePath is the input file to cluster.
	FilePath string `json:"filePath"`

	// OutputFilePath is where the worker writes the clustered output.
	OutputFilePath string `json:"outputFilePath"`

	// AssignmentsFilePath is where the worker writes per-response
	// assignments.
	AssignmentsFilePath string `json:"assignmentsFilePath"`

	// FileSettings control input parsing.
	FileSettings domain.FileSettings `json:"fileSettings"`

	// AlgorithmSettings control the clustering pipeline.
	AlgorithmSettings domain.AlgorithmSettings `json:"algorithmSettings"`
}

// WorkerEvent is one message from the worker's event stream. Exactly
// one field is set.
type WorkerEvent struct {
	// Progress reports a pipeline step status change.
	Progress *domain.ProgressEvent

	// Result carries the complete clustering result. Emitted once,
	// after the save step starts and before it completes.
	Result *domain.ClusteringResult

	// Err carries a worker-reported failure message accompanying an
	// error status.
	Err string
}

// Worker executes the clustering pipeline out of process.
//
// Run returns a channel of events for the job: progress events in the
// order the pipeline executes them, the result payload on success, and
// nothing further after a terminal event. The channel is closed when
// the worker exits; a close without a preceding terminal event means
// the worker terminated abnormally.
//
// Cancelling the context stops the worker. The worker is the only
// component permitted to block for extended periods; Run itself must
// return promptly.
type Worker interface {
	Run(ctx context.Context, job RunJob) (<-chan WorkerEvent, error)
}
