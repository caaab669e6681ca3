package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

func makeRun(t *testing.T) domain.Run {
	t.Helper()
	return domain.NewRun(t.TempDir(), "/data/responses.csv", domain.FileSettings{
		Delimiter:       ",",
		SelectedColumns: []int{0},
	}, domain.DefaultAlgorithmSettings())
}

func makeResult(runID uuid.UUID) domain.ClusteringResult {
	cluster := domain.NewCluster(0)
	sim := 0.9
	response := domain.Response{ID: uuid.New(), Text: "calm", Count: 1, Similarity: &sim, ClusterID: &cluster.ID}
	cluster.Responses = []domain.Response{response}
	cluster.Count = cluster.MemberCount()
	return domain.ClusteringResult{
		ID:       uuid.New(),
		RunID:    runID,
		Clusters: []domain.Cluster{cluster},
		OutlierStats: domain.OutlierStatistics{ID: uuid.New(), Threshold: 0.3},
		MergingStats: domain.MergingStatistics{ID: uuid.New(), Threshold: 0.85},
	}
}

func TestRunStore_SaveGetDelete(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, *got)

	_, err = store.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.DeleteRun(ctx, run.ID))
	assert.ErrorIs(t, store.DeleteRun(ctx, run.ID), domain.ErrNotFound)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	older := makeRun(t)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestRunStore_Rename(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.RenameRun(ctx, run.ID, "Pilot"))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pilot", got.Name)

	assert.ErrorIs(t, store.RenameRun(ctx, uuid.New(), "x"), domain.ErrNotFound)
}

func TestRunStore_ResultLifecycle(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, run))

	_, err := store.GetResult(ctx, run.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	result := makeResult(run.ID)
	require.NoError(t, store.SaveResult(ctx, result))

	got, err := store.GetResult(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)

	// Deleting the run removes its result too.
	require.NoError(t, store.DeleteRun(ctx, run.ID))
	_, err = store.GetResult(ctx, run.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_RenameCluster(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, run))
	result := makeResult(run.ID)
	require.NoError(t, store.SaveResult(ctx, result))

	clusterID := result.Clusters[0].ID
	require.NoError(t, store.RenameCluster(ctx, clusterID, "Calm answers"))

	got, err := store.GetResult(ctx, run.ID)
	require.NoError(t, err)
	renamed, ok := got.ClusterByID(clusterID)
	require.True(t, ok)
	assert.Equal(t, "Calm answers", renamed.Name)

	assert.ErrorIs(t, store.RenameCluster(ctx, uuid.New(), "x"), domain.ErrNotFound)
}

func TestRunStore_RenameCluster_PreservesEarlierSnapshots(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := makeRun(t)
	require.NoError(t, store.SaveRun(ctx, run))
	result := makeResult(run.ID)
	require.NoError(t, store.SaveResult(ctx, result))
	clusterID := result.Clusters[0].ID

	before, err := store.GetResult(ctx, run.ID)
	require.NoError(t, err)

	require.NoError(t, store.RenameCluster(ctx, clusterID, "Calm answers"))

	snapshot, ok := before.ClusterByID(clusterID)
	require.True(t, ok)
	assert.Equal(t, "Cluster 1", snapshot.Name, "snapshot read before the rename observed it")

	after, err := store.GetResult(ctx, run.ID)
	require.NoError(t, err)
	renamed, ok := after.ClusterByID(clusterID)
	require.True(t, ok)
	assert.Equal(t, "Calm answers", renamed.Name)
}
