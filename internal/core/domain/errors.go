package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed or invalid command payload,
	// such as an empty rename or an out-of-range settings value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning indicates a clustering run is already in flight.
	// A second run_clustering is rejected, never treated as cancellation.
	ErrAlreadyRunning = errors.New("clustering run already in flight")

	// ErrInvalidState indicates a command is not valid in the current
	// broker state, such as mutating the pending run configuration while
	// a run is executing, or launching a run before the configuration
	// is complete.
	ErrInvalidState = errors.New("invalid state")

	// ErrProtocol indicates the worker violated the progress protocol:
	// an out-of-order step event, a repeated start, a status change on a
	// finished step, or malformed output. Protocol violations are fatal
	// to the current run and are distinct from a pipeline error reported
	// by the worker itself.
	ErrProtocol = errors.New("protocol violation")

	// ErrWorkerTerminated indicates the worker process exited before
	// reaching a terminal pipeline state. The run is treated as failed
	// at whichever step was last started.
	ErrWorkerTerminated = errors.New("worker terminated unexpectedly")

	// ErrNoResult indicates the worker reported success without
	// producing a clustering result payload.
	ErrNoResult = errors.New("no clustering result produced")
)
