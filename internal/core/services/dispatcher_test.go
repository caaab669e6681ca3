package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
)

// fakeStore is an in-memory RunStore for dispatcher tests.
type fakeStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]domain.Run
	results map[uuid.UUID]domain.ClusteringResult
}

var _ driven.RunStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:    make(map[uuid.UUID]domain.Run),
		results: make(map[uuid.UUID]domain.ClusteringResult),
	}
}

func (s *fakeStore) SaveRun(_ context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

func (s *fakeStore) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	return out, nil
}

func (s *fakeStore) RenameRun(_ context.Context, id uuid.UUID, name string) error {
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

func (s *fakeStore) DeleteRun(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.runs, id)
	delete(s.results, id)
	return nil
}

func (s *fakeStore) SaveResult(_ context.Context, result domain.ClusteringResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.RunID] = result
	return nil
}

func (s *fakeStore) GetResult(_ context.Context, runID uuid.UUID) (*domain.ClusteringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &result, nil
}

func (s *fakeStore) RenameCluster(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, result := range s.results {
		for i := range result.Clusters {
			if result.Clusters[i].ID == id {
				result.Clusters[i].Name = name
				s.results[runID] = result
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// scriptedWorker emits a fixed event sequence.
type scriptedWorker struct {
	script func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent)
}

var _ driven.Worker = (*scriptedWorker)(nil)

func (w *scriptedWorker) Run(ctx context.Context, job driven.RunJob) (<-chan driven.WorkerEvent, error) {
	out := make(chan driven.WorkerEvent)
	go func() {
		defer close(out)
		w.script(ctx, job, out)
	}()
	return out, nil
}

// progress emits one progress event.
func progress(out chan<- driven.WorkerEvent, step domain.Step, status domain.Status, ts time.Time) {
	out <- driven.WorkerEvent{Progress: &domain.ProgressEvent{Step: step, Status: status, Timestamp: ts}}
}

// makeWorkerResult builds a small consistent result: one cluster with
// two responses and one outlier.
func makeWorkerResult() *domain.ClusteringResult {
	cluster := domain.NewCluster(0)
	sim := 0.8
	r1 := domain.Response{ID: uuid.New(), Text: "calm", Count: 2, Similarity: &sim, ClusterID: &cluster.ID}
	r2 := domain.Response{ID: uuid.New(), Text: "quiet", Count: 1, Similarity: &sim, ClusterID: &cluster.ID}
	cluster.Responses = []domain.Response{r1, r2}
	cluster.Count = cluster.MemberCount()

	outlier := domain.Response{ID: uuid.New(), Text: "banana", Count: 1, IsOutlier: true}

	return &domain.ClusteringResult{
		ID:       uuid.New(),
		Clusters: []domain.Cluster{cluster},
		Outliers: []domain.Response{outlier},
		OutlierStats: domain.OutlierStatistics{
			ID:        uuid.New(),
			Threshold: 0.3,
			Outliers:  []domain.OutlierStatistic{{ID: uuid.New(), ResponseID: outlier.ID, Similarity: 0.1}},
		},
		MergingStats: domain.MergingStatistics{ID: uuid.New(), Threshold: 0.85},
	}
}

// successScript walks all nine steps and delivers a result before the
// save step completes.
func successScript(_ context.Context, _ driven.RunJob, out chan<- driven.WorkerEvent) {
	ts := time.Unix(1700000000, 0)
	for _, step := range domain.Steps() {
		progress(out, step, domain.StatusStart, ts)
		ts = ts.Add(time.Second)
		if step == domain.StepSave {
			out <- driven.WorkerEvent{Result: makeWorkerResult()}
		}
		progress(out, step, domain.StatusComplete, ts)
		ts = ts.Add(time.Second)
	}
}

type testHarness struct {
	dispatcher *CommandDispatcher
	tracker    *ProgressTracker
	state      *AppState
	pubsub     *PubSub
	store      *fakeStore
}

func newHarness(t *testing.T, worker driven.Worker) *testHarness {
	t.Helper()
	store := newFakeStore()
	pubsub := NewPubSub()
	t.Cleanup(pubsub.Close)
	state := NewAppState()
	tracker := NewProgressTracker()
	dispatcher := NewCommandDispatcher(store, worker, pubsub, state, tracker, t.TempDir())
	return &testHarness{
		dispatcher: dispatcher,
		tracker:    tracker,
		state:      state,
		pubsub:     pubsub,
		store:      store,
	}
}

// configure applies the standard pending configuration.
func (h *testHarness) configure(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.dispatcher.SetFilePath(ctx, "/tmp/a.csv"))
	require.NoError(t, h.dispatcher.SetFileSettings(ctx, domain.FileSettings{
		Delimiter:       ",",
		HasHeader:       true,
		SelectedColumns: []int{1},
	}))
	settings := domain.DefaultAlgorithmSettings()
	settings.Method = domain.ClusterCount{Method: domain.ClusterCountAuto, MaxClusters: 5}
	require.NoError(t, h.dispatcher.SetAlgorithmSettings(ctx, settings))
}

// waitIdle blocks until the in-flight flag is released.
func (h *testHarness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.tracker.Active() },
		2*time.Second, 5*time.Millisecond, "run did not release the in-flight flag")
}

func TestRunClustering_RequiresConfiguration(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})

	err := h.dispatcher.RunClustering(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRunClustering_EndToEnd(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer sub.Cancel()

	require.NoError(t, h.dispatcher.RunClustering(ctx))

	events := collect(t, sub, 2*len(domain.Steps()))
	for i, step := range domain.Steps() {
		start := events[2*i].Payload.(domain.ProgressEvent)
		complete := events[2*i+1].Payload.(domain.ProgressEvent)
		assert.Equal(t, step, start.Step)
		assert.Equal(t, domain.StatusStart, start.Status)
		assert.Equal(t, step, complete.Step)
		assert.Equal(t, domain.StatusComplete, complete.Status)
	}

	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "/tmp/a.csv", current.Run.FilePath)
	require.Len(t, current.Timesteps.Steps, len(domain.Steps()))
	require.NoError(t, current.Timesteps.Validate())

	// Assignments and outliers partition the response set.
	assignments, err := h.dispatcher.GetClusterAssignments(ctx)
	require.NoError(t, err)
	require.NotNil(t, assignments)
	clustered := 0
	for _, c := range assignments.Clusters {
		clustered += len(c.Responses)
	}
	assert.Equal(t, 2, clustered)

	outliers, err := h.dispatcher.GetOutliers(ctx)
	require.NoError(t, err)
	require.NotNil(t, outliers)
	assert.Len(t, outliers.Outliers, 1)
	assert.InDelta(t, 0.3, outliers.Threshold, 1e-9)

	runs, err := h.dispatcher.GetRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs.Runs, 1)

	h.waitIdle(t)
}

func TestRunClustering_SecondRunRejected(t *testing.T) {
	gate := make(chan struct{})
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		progress(out, domain.StepStart, domain.StatusStart, time.Now())
		<-gate
		progress(out, domain.StepStart, domain.StatusError, time.Now())
	}}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer sub.Cancel()

	require.NoError(t, h.dispatcher.RunClustering(ctx))

	// The first start event proves the run is in flight.
	first := collect(t, sub, 1)
	assert.Equal(t, domain.StatusStart, first[0].Payload.(domain.ProgressEvent).Status)

	err := h.dispatcher.RunClustering(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)

	// The rejection had no observable effect on the active run.
	runs, err := h.dispatcher.GetRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs.Runs, 1)

	close(gate)
	h.waitIdle(t)

	// A new run is accepted once the previous one terminated.
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	h.waitIdle(t)
}

func TestConfigMutation_RejectedMidRun(t *testing.T) {
	gate := make(chan struct{})
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		progress(out, domain.StepStart, domain.StatusStart, time.Now())
		<-gate
	}}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer sub.Cancel()
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 1)

	assert.ErrorIs(t, h.dispatcher.SetFilePath(ctx, "/tmp/other.csv"), domain.ErrInvalidState)
	assert.ErrorIs(t, h.dispatcher.SetFileSettings(ctx, domain.FileSettings{
		Delimiter: ";", SelectedColumns: []int{0},
	}), domain.ErrInvalidState)
	assert.ErrorIs(t, h.dispatcher.SetAlgorithmSettings(ctx, domain.DefaultAlgorithmSettings()), domain.ErrInvalidState)

	// The pending configuration is untouched.
	assert.Equal(t, "/tmp/a.csv", h.dispatcher.GetFilePath(ctx))

	close(gate)
	h.waitIdle(t)
}

func TestRunClustering_PipelineError(t *testing.T) {
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		ts := time.Now()
		progress(out, domain.StepStart, domain.StatusStart, ts)
		progress(out, domain.StepStart, domain.StatusComplete, ts)
		progress(out, domain.StepProcessInputFile, domain.StatusStart, ts)
		out <- driven.WorkerEvent{Err: "input file unreadable"}
		progress(out, domain.StepProcessInputFile, domain.StatusError, ts)
	}}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	errs := h.pubsub.Subscribe(domain.ChannelError)
	defer errs.Cancel()
	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer sub.Cancel()

	require.NoError(t, h.dispatcher.RunClustering(ctx))

	events := collect(t, sub, 4)
	last := events[3].Payload.(domain.ProgressEvent)
	assert.Equal(t, domain.StepProcessInputFile, last.Step)
	assert.Equal(t, domain.StatusError, last.Status)

	workerErr := collect(t, errs, 1)
	assert.Contains(t, workerErr[0].Payload.(domain.ErrorMessage).Error, "unreadable")

	h.waitIdle(t)

	// No result was persisted and nothing is selected.
	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRunClustering_ErrorLeavesPreviousResultIntact(t *testing.T) {
	worker := &scriptedWorker{script: successScript}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	first, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Second run fails immediately.
	worker.script = func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		ts := time.Now()
		progress(out, domain.StepStart, domain.StatusStart, ts)
		progress(out, domain.StepStart, domain.StatusError, ts)
	}
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	h.waitIdle(t)

	// The previously selected run and its result are untouched.
	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.Run.ID, current.Run.ID)
}

func TestRunClustering_ProtocolViolation(t *testing.T) {
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		ts := time.Now()
		progress(out, domain.StepStart, domain.StatusStart, ts)
		// Out of order: cluster may not start before its predecessors.
		progress(out, domain.StepCluster, domain.StatusStart, ts)
	}}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	errs := h.pubsub.Subscribe(domain.ChannelError)
	defer errs.Cancel()

	require.NoError(t, h.dispatcher.RunClustering(ctx))

	events := collect(t, errs, 1)
	assert.Contains(t, events[0].Payload.(domain.ErrorMessage).Error, "protocol violation")

	h.waitIdle(t)

	// The broker recovered; a new run is accepted.
	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRunClustering_AbnormalWorkerTermination(t *testing.T) {
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		ts := time.Now()
		progress(out, domain.StepStart, domain.StatusStart, ts)
		progress(out, domain.StepStart, domain.StatusComplete, ts)
		progress(out, domain.StepProcessInputFile, domain.StatusStart, ts)
		// Worker dies here: channel closes without a terminal event.
	}}
	h := newHarness(t, worker)
	h.configure(t)
	ctx := context.Background()

	errs := h.pubsub.Subscribe(domain.ChannelError)
	defer errs.Cancel()
	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer sub.Cancel()

	require.NoError(t, h.dispatcher.RunClustering(ctx))

	events := collect(t, sub, 4)
	last := events[3].Payload.(domain.ProgressEvent)
	assert.Equal(t, domain.StepProcessInputFile, last.Step)
	assert.Equal(t, domain.StatusError, last.Status)

	workerErr := collect(t, errs, 1)
	assert.Contains(t, workerErr[0].Payload.(domain.ErrorMessage).Error, "worker terminated")

	h.waitIdle(t)
}

func TestUpdateRunName_Validation(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	runs, err := h.dispatcher.GetRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs.Runs, 1)
	run := runs.Runs[0]

	assert.ErrorIs(t, h.dispatcher.UpdateRunName(ctx, run.ID, ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, h.dispatcher.UpdateRunName(ctx, run.ID, strings.Repeat("x", 256)), domain.ErrInvalidInput)

	// The stored name is unchanged after rejected renames.
	stored, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Name, stored.Name)

	longest := strings.Repeat("x", 255)
	require.NoError(t, h.dispatcher.UpdateRunName(ctx, run.ID, longest))
	stored, err = h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, longest, stored.Name)
}

func TestUpdateClusterName(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	assignments, err := h.dispatcher.GetClusterAssignments(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, assignments.Clusters)
	clusterID := assignments.Clusters[0].ID

	assert.ErrorIs(t, h.dispatcher.UpdateClusterName(ctx, clusterID, ""), domain.ErrInvalidInput)
	require.NoError(t, h.dispatcher.UpdateClusterName(ctx, clusterID, "Calm answers"))

	assignments, err = h.dispatcher.GetClusterAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Calm answers", assignments.Clusters[0].Name)
}

func TestDeleteRun_Scenario(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, h.dispatcher.DeleteRun(ctx, current.Run.ID))

	runs, err := h.dispatcher.GetRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs.Runs)

	// The deleted run was selected, so the selection is cleared.
	afterDelete, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, afterDelete)

	assert.ErrorIs(t, h.dispatcher.DeleteRun(ctx, uuid.New()), domain.ErrNotFound)
}

func TestSetRunID(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.dispatcher.SetRunID(ctx, uuid.New()), domain.ErrNotFound)

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	runs, err := h.dispatcher.GetRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs.Runs, 1)

	require.NoError(t, h.dispatcher.ResetRunID(ctx))
	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, h.dispatcher.SetRunID(ctx, runs.Runs[0].ID))
	current, err = h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, runs.Runs[0].ID, current.Run.ID)
}

func TestGetQueries_NoneSelected(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	ctx := context.Background()

	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	assignments, err := h.dispatcher.GetClusterAssignments(ctx)
	require.NoError(t, err)
	assert.Nil(t, assignments)

	similarities, err := h.dispatcher.GetClusterSimilarities(ctx)
	require.NoError(t, err)
	assert.Nil(t, similarities)

	outliers, err := h.dispatcher.GetOutliers(ctx)
	require.NoError(t, err)
	assert.Nil(t, outliers)

	mergers, err := h.dispatcher.GetMergers(ctx)
	require.NoError(t, err)
	assert.Nil(t, mergers)
}

// Late subscribers receive no replay; they query instead.
func TestProgress_NoReplayForLateSubscribers(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	h.configure(t)
	ctx := context.Background()

	sub := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	collect(t, sub, 2*len(domain.Steps()))
	sub.Cancel()
	h.waitIdle(t)

	late := h.pubsub.Subscribe(domain.ChannelClusterProgress)
	defer late.Cancel()
	select {
	case ev := <-late.Events():
		t.Fatalf("late subscriber received replayed event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// The snapshot query serves the late client.
	current, err := h.dispatcher.GetCurrentRun(ctx)
	require.NoError(t, err)
	assert.NotNil(t, current)
}

func TestRunClustering_DrainsWorkerAfterEarlyTermination(t *testing.T) {
	// The worker keeps emitting after the violation aborts the run.
	// Its sends must still complete so it can exit and be reaped.
	flushed := make(chan struct{})
	worker := &scriptedWorker{script: func(ctx context.Context, job driven.RunJob, out chan<- driven.WorkerEvent) {
		ts := time.Now()
		progress(out, domain.StepStart, domain.StatusStart, ts)
		// Out of order: cluster may not start before its predecessors.
		progress(out, domain.StepCluster, domain.StatusStart, ts)
		progress(out, domain.StepStart, domain.StatusComplete, ts)
		close(flushed)
	}}
	h := newHarness(t, worker)
	h.configure(t)

	require.NoError(t, h.dispatcher.RunClustering(context.Background()))
	h.waitIdle(t)

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker still blocked sending on the event stream after the run terminated")
	}
}

func TestRunClustering_IncompleteConfigReleasesFlag(t *testing.T) {
	h := newHarness(t, &scriptedWorker{script: successScript})
	ctx := context.Background()

	err := h.dispatcher.RunClustering(ctx)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.False(t, h.tracker.Active())

	// The rejection left the broker ready for a configured run.
	h.configure(t)
	require.NoError(t, h.dispatcher.RunClustering(ctx))
	h.waitIdle(t)
}
