package domain

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Run represents one user-initiated clustering session over a chosen
// input file and settings. A Run is created when a clustering run is
// launched and deleted only by an explicit delete command, which
// cascades to its ClusteringResult.
type Run struct {
	// ID is the unique identifier for the run.
	ID uuid.UUID `json:"id"`

	// Name is the human-readable name, mutable via update_run_name.
	Name string `json:"name"`

	// FilePath is the input file the run was launched against.
	FilePath string `json:"filePath"`

	// OutputFilePath is where the worker writes the clustered output.
	OutputFilePath string `json:"outputFilePath"`

	// AssignmentsFilePath is where the worker writes per-response
	// cluster assignments.
	AssignmentsFilePath string `json:"assignmentsFilePath"`

	// CreatedAt is when the run was launched.
	CreatedAt time.Time `json:"createdAt"`

	// FileSettings are the parsing settings the run was launched with.
	FileSettings FileSettings `json:"fileSettings"`

	// AlgorithmSettings are the clustering settings the run was
	// launched with.
	AlgorithmSettings AlgorithmSettings `json:"algorithmSettings"`
}

// NewRun creates a run for the given input file and settings.
// Output paths are derived under dataDir, one directory per run.
func NewRun(dataDir, filePath string, fs FileSettings, as AlgorithmSettings) Run {
	id := uuid.New()
	resultsDir := filepath.Join(dataDir, "results", id.String())
	return Run{
		ID:                  id,
		Name:                fmt.Sprintf("Run %s", shortID(id)),
		FilePath:            filePath,
		OutputFilePath:      filepath.Join(resultsDir, "output.csv"),
		AssignmentsFilePath: filepath.Join(resultsDir, "assignments.csv"),
		CreatedAt:           time.Now(),
		FileSettings:        fs,
		AlgorithmSettings:   as,
	}
}

// shortID returns the first uuid group, enough to tell runs apart in
// default names.
func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
