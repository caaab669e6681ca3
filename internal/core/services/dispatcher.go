package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
	"github.com/ReylordDev/psycluster/internal/logger"
)

// Ensure CommandDispatcher implements the interface.
var _ driving.Dispatcher = (*CommandDispatcher)(nil)

// CommandDispatcher is the broker: it validates and sequences
// client-issued commands, forwards accepted runs to the worker, routes
// worker output onto the broadcast channels, and serves read queries
// directly against persisted state.
type CommandDispatcher struct {
	store   driven.RunStore
	worker  driven.Worker
	broker  driving.Broker
	state   *AppState
	tracker *ProgressTracker
	dataDir string

	// mu guards activeRun; cancelRun stops the worker of the run in
	// flight.
	mu        sync.Mutex
	activeRun *uuid.UUID
	cancelRun context.CancelFunc
}

// NewCommandDispatcher creates a dispatcher. dataDir is where run
// output paths are allocated.
func NewCommandDispatcher(
	store driven.RunStore,
	worker driven.Worker,
	broker driving.Broker,
	state *AppState,
	tracker *ProgressTracker,
	dataDir string,
) *CommandDispatcher {
	return &CommandDispatcher{
		store:   store,
		worker:  worker,
		broker:  broker,
		state:   state,
		tracker: tracker,
		dataDir: dataDir,
	}
}

// SetFilePath stores the pending input file path.
func (d *CommandDispatcher) SetFilePath(_ context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: file path must not be empty", domain.ErrInvalidInput)
	}
	if d.tracker.Active() {
		return fmt.Errorf("%w: cannot change file path while a run is executing", domain.ErrInvalidState)
	}
	d.state.SetFilePath(path)
	return nil
}

// GetFilePath returns the pending input file path.
func (d *CommandDispatcher) GetFilePath(_ context.Context) string {
	return d.state.FilePath()
}

// SetFileSettings stores the pending file parsing settings.
func (d *CommandDispatcher) SetFileSettings(_ context.Context, settings domain.FileSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if d.tracker.Active() {
		return fmt.Errorf("%w: cannot change file settings while a run is executing", domain.ErrInvalidState)
	}
	d.state.SetFileSettings(settings)
	return nil
}

// SetAlgorithmSettings stores the pending algorithm settings.
func (d *CommandDispatcher) SetAlgorithmSettings(_ context.Context, settings domain.AlgorithmSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if d.tracker.Active() {
		return fmt.Errorf("%w: cannot change algorithm settings while a run is executing", domain.ErrInvalidState)
	}
	d.state.SetAlgorithmSettings(settings)
	return nil
}

// RunClustering launches the pipeline with the pending configuration.
// The in-flight flag is acquired atomically and held until the run
// reaches a terminal outcome; a concurrent second call is rejected
// with domain.ErrAlreadyRunning and has no effect on the active run.
func (d *CommandDispatcher) RunClustering(ctx context.Context) error {
	if err := d.tracker.Begin(); err != nil {
		return err
	}

	// Read the configuration only while the in-flight flag is held, so
	// a config mutation cannot slip in between the read and the launch.
	filePath, fileSettings, algorithmSettings, ok := d.state.PendingConfig()
	if !ok {
		d.tracker.Finish()
		return fmt.Errorf("%w: run configuration is incomplete", domain.ErrInvalidState)
	}

	run := domain.NewRun(d.dataDir, filePath, fileSettings, algorithmSettings)
	if err := d.store.SaveRun(ctx, run); err != nil {
		d.tracker.Finish()
		return fmt.Errorf("saving run: %w", err)
	}

	// The worker outlives the command's context: commands are
	// dispatched asynchronously and never awaited by the caller.
	workerCtx, cancel := context.WithCancel(context.Background())
	events, err := d.worker.Run(workerCtx, driven.RunJob{
		RunID:               run.ID,
		FilePath:            run.FilePath,
		OutputFilePath:      run.OutputFilePath,
		AssignmentsFilePath: run.AssignmentsFilePath,
		FileSettings:        fileSettings,
		AlgorithmSettings:   algorithmSettings,
	})
	if err != nil {
		cancel()
		d.tracker.Finish()
		return fmt.Errorf("starting worker: %w", err)
	}

	d.mu.Lock()
	id := run.ID
	d.activeRun = &id
	d.cancelRun = cancel
	d.mu.Unlock()

	logger.Info("Run %s accepted for %s", run.ID, run.FilePath)
	go d.consume(run, events, cancel)

	return nil
}

// consume drains the worker event stream for one run: progress events
// are validated and republished, the result is persisted atomically at
// save completion, and the in-flight flag is released at the end.
func (d *CommandDispatcher) consume(run domain.Run, events <-chan driven.WorkerEvent, cancel context.CancelFunc) {
	defer func() {
		d.mu.Lock()
		d.activeRun = nil
		d.cancelRun = nil
		d.mu.Unlock()
		d.tracker.Finish()
	}()
	// When the run terminates early the worker may still be sending.
	// Cancel stops it, and draining lets the producer run to channel
	// close so it can reap the child process.
	defer func() {
		cancel()
		for range events {
		}
	}()

	var pending *domain.ClusteringResult

	for ev := range events {
		switch {
		case ev.Progress != nil:
			if done := d.handleProgress(run, *ev.Progress, &pending); done {
				return
			}

		case ev.Result != nil:
			pending = ev.Result

		case ev.Err != "":
			d.broker.Publish(domain.ChannelError, domain.ErrorMessage{Error: ev.Err})
		}
	}

	// Stream ended without a terminal progress event: the worker died.
	if !d.tracker.Terminal() {
		d.handleAbnormalExit(run)
	}
}

// handleProgress applies one progress event. Returns true when the run
// is finished and consumption should stop.
func (d *CommandDispatcher) handleProgress(run domain.Run, ev domain.ProgressEvent, pending **domain.ClusteringResult) bool {
	if err := d.tracker.Apply(ev); err != nil {
		// Out-of-order or repeated events are protocol violations,
		// fatal to this run and reported distinctly from pipeline
		// errors.
		logger.Warn("Run %s: %v", run.ID, err)
		d.broker.Publish(domain.ChannelError, domain.ErrorMessage{Error: err.Error()})
		return true
	}

	if ev.Step == domain.StepSave && ev.Status == domain.StatusComplete {
		if err := d.persistResult(run, *pending, ev.Timestamp); err != nil {
			logger.Warn("Run %s: %v", run.ID, err)
			d.broker.Publish(domain.ChannelError, domain.ErrorMessage{Error: err.Error()})
			return true
		}
		// Publish save/complete only after the result is queryable.
		d.broker.Publish(domain.ChannelClusterProgress, ev)
		logger.Info("Run %s completed in %s", run.ID, d.tracker.Timesteps().TotalDuration())
		return true
	}

	d.broker.Publish(domain.ChannelClusterProgress, ev)

	if ev.Status == domain.StatusError {
		logger.Warn("Run %s failed at step %s", run.ID, ev.Step)
		return true
	}
	return false
}

// persistResult validates and atomically saves the run's result, then
// selects the run.
func (d *CommandDispatcher) persistResult(run domain.Run, result *domain.ClusteringResult, savedAt time.Time) error {
	if result == nil {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrNoResult)
	}

	result.RunID = run.ID
	timesteps := d.tracker.Timesteps()
	timesteps.ID = uuid.New()
	timesteps.Steps[domain.StepSave] = savedAt
	result.Timesteps = timesteps

	if err := result.Validate(); err != nil {
		return fmt.Errorf("run %s produced an inconsistent result: %w", run.ID, err)
	}
	if err := d.store.SaveResult(context.Background(), *result); err != nil {
		return fmt.Errorf("run %s: persisting result: %w", run.ID, err)
	}

	d.state.SelectRun(run.ID)
	return nil
}

// handleAbnormalExit treats a worker death as an error at the last
// started step.
func (d *CommandDispatcher) handleAbnormalExit(run domain.Run) {
	step, ok := d.tracker.LastStarted()
	if !ok {
		step = domain.StepStart
	}
	logger.Warn("Run %s: worker terminated at step %s", run.ID, step)

	ev := domain.ProgressEvent{Step: step, Status: domain.StatusError, Timestamp: time.Now()}
	if err := d.tracker.Apply(ev); err == nil {
		d.broker.Publish(domain.ChannelClusterProgress, ev)
	}
	d.broker.Publish(domain.ChannelError, domain.ErrorMessage{
		Error: fmt.Sprintf("%v at step %s", domain.ErrWorkerTerminated, step),
	})
}

// GetRuns returns summaries of all saved runs.
func (d *CommandDispatcher) GetRuns(ctx context.Context) (*domain.RunsMessage, error) {
	runs, err := d.store.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return &domain.RunsMessage{Runs: runs}, nil
}

// currentResult loads the selected run and its saved result. Both
// return values are nil when nothing is selected or no result is
// saved; that is a valid none response, not an error.
func (d *CommandDispatcher) currentResult(ctx context.Context) (*domain.Run, *domain.ClusteringResult, error) {
	id := d.state.SelectedRun()
	if id == nil {
		return nil, nil, nil
	}
	run, err := d.store.GetRun(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	result, err := d.store.GetResult(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading result for run %s: %w", id, err)
	}
	return run, result, nil
}

// GetCurrentRun returns the selected run and its timesteps.
func (d *CommandDispatcher) GetCurrentRun(ctx context.Context) (*domain.CurrentRunMessage, error) {
	run, result, err := d.currentResult(ctx)
	if err != nil || run == nil {
		return nil, err
	}
	return &domain.CurrentRunMessage{Run: *run, Timesteps: result.Timesteps}, nil
}

// GetClusterAssignments returns the selected run's clusters with their
// member responses.
func (d *CommandDispatcher) GetClusterAssignments(ctx context.Context) (*domain.ClusterAssignmentsMessage, error) {
	_, result, err := d.currentResult(ctx)
	if err != nil || result == nil {
		return nil, err
	}
	msg := &domain.ClusterAssignmentsMessage{
		Clusters: make([]domain.ClusterAssignmentDetail, 0, len(result.Clusters)),
	}
	for _, c := range result.Clusters {
		msg.Clusters = append(msg.Clusters, domain.ClusterAssignmentDetail{
			ID:             c.ID,
			Index:          c.Index,
			Name:           c.Name,
			IsMergerResult: c.IsMergerResult,
			Responses:      c.Responses,
			Count:          c.Count,
		})
	}
	return msg, nil
}

// GetClusterSimilarities returns the selected run's clusters with the
// pairwise similarity map keyed by counterpart cluster id.
func (d *CommandDispatcher) GetClusterSimilarities(ctx context.Context) (*domain.ClusterSimilaritiesMessage, error) {
	_, result, err := d.currentResult(ctx)
	if err != nil || result == nil {
		return nil, err
	}

	pairs := make(map[uuid.UUID]map[uuid.UUID]float64)
	for _, p := range result.InterClusterSimilarities {
		if pairs[p.Cluster1ID] == nil {
			pairs[p.Cluster1ID] = make(map[uuid.UUID]float64)
		}
		if pairs[p.Cluster2ID] == nil {
			pairs[p.Cluster2ID] = make(map[uuid.UUID]float64)
		}
		pairs[p.Cluster1ID][p.Cluster2ID] = p.Similarity
		pairs[p.Cluster2ID][p.Cluster1ID] = p.Similarity
	}

	msg := &domain.ClusterSimilaritiesMessage{
		Clusters: make([]domain.ClusterSimilarityDetail, 0, len(result.Clusters)),
	}
	for _, c := range result.Clusters {
		similarities := pairs[c.ID]
		if similarities == nil {
			similarities = make(map[uuid.UUID]float64)
		}
		msg.Clusters = append(msg.Clusters, domain.ClusterSimilarityDetail{
			ID:              c.ID,
			Index:           c.Index,
			Name:            c.Name,
			IsMergerResult:  c.IsMergerResult,
			Responses:       c.Responses,
			Count:           c.Count,
			SimilarityPairs: similarities,
		})
	}
	return msg, nil
}

// GetOutliers returns the selected run's outliers and threshold.
func (d *CommandDispatcher) GetOutliers(ctx context.Context) (*domain.OutliersMessage, error) {
	_, result, err := d.currentResult(ctx)
	if err != nil || result == nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.Response, len(result.Outliers))
	for _, r := range result.Outliers {
		byID[r.ID] = r
	}

	msg := &domain.OutliersMessage{
		Threshold: result.OutlierStats.Threshold,
		Outliers:  make([]domain.OutlierEntry, 0, len(result.OutlierStats.Outliers)),
	}
	for _, stat := range result.OutlierStats.Outliers {
		msg.Outliers = append(msg.Outliers, domain.OutlierEntry{
			Response:   byID[stat.ResponseID],
			Similarity: stat.Similarity,
		})
	}
	return msg, nil
}

// GetMergers returns the selected run's merge events and threshold.
func (d *CommandDispatcher) GetMergers(ctx context.Context) (*domain.MergersMessage, error) {
	_, result, err := d.currentResult(ctx)
	if err != nil || result == nil {
		return nil, err
	}

	msg := &domain.MergersMessage{
		Threshold: result.MergingStats.Threshold,
		Mergers:   make([]domain.MergerDetail, 0, len(result.MergingStats.Mergers)),
	}
	for _, m := range result.MergingStats.Mergers {
		msg.Mergers = append(msg.Mergers, domain.MergerDetail{
			ID:              m.ID,
			Name:            m.Name,
			Clusters:        m.Clusters,
			SimilarityPairs: m.SimilarityPairs,
			ResultClusterID: m.ResultClusterID,
		})
	}
	return msg, nil
}

// UpdateRunName renames a run after validating the new name.
func (d *CommandDispatcher) UpdateRunName(ctx context.Context, id uuid.UUID, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	return d.store.RenameRun(ctx, id, name)
}

// UpdateClusterName renames a cluster after validating the new name.
func (d *CommandDispatcher) UpdateClusterName(ctx context.Context, id uuid.UUID, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	return d.store.RenameCluster(ctx, id, name)
}

// DeleteRun removes a run and its result, clearing the selection if
// the deleted run was selected. The run currently executing cannot be
// deleted.
func (d *CommandDispatcher) DeleteRun(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	active := d.activeRun != nil && *d.activeRun == id
	d.mu.Unlock()
	if active {
		return fmt.Errorf("%w: run %s is executing", domain.ErrInvalidState, id)
	}

	if err := d.store.DeleteRun(ctx, id); err != nil {
		return err
	}
	if selected := d.state.SelectedRun(); selected != nil && *selected == id {
		d.state.ClearSelection()
	}
	return nil
}

// SetRunID selects the run all read queries operate on.
func (d *CommandDispatcher) SetRunID(ctx context.Context, id uuid.UUID) error {
	if _, err := d.store.GetRun(ctx, id); err != nil {
		return err
	}
	d.state.SelectRun(id)
	return nil
}

// ResetRunID clears the selection.
func (d *CommandDispatcher) ResetRunID(_ context.Context) error {
	d.state.ClearSelection()
	return nil
}
