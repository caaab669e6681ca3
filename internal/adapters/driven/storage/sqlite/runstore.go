package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveRun stores or updates a run.
func (s *runStore) SaveRun(ctx context.Context, run domain.Run) error {
	fileSettingsJSON, err := json.Marshal(run.FileSettings)
	if err != nil {
		return fmt.Errorf("marshalling file settings: %w", err)
	}
	algorithmSettingsJSON, err := json.Marshal(run.AlgorithmSettings)
	if err != nil {
		return fmt.Errorf("marshalling algorithm settings: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, name, file_path, output_file_path, assignments_file_path,
			 file_settings, algorithm_settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			file_path = excluded.file_path,
			output_file_path = excluded.output_file_path,
			assignments_file_path = excluded.assignments_file_path,
			file_settings = excluded.file_settings,
			algorithm_settings = excluded.algorithm_settings
	`, run.ID.String(), run.Name, run.FilePath, run.OutputFilePath, run.AssignmentsFilePath,
		string(fileSettingsJSON), string(algorithmSettingsJSON), run.CreatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, file_path, output_file_path, assignments_file_path,
		       file_settings, algorithm_settings, created_at
		FROM runs WHERE id = ?
	`, id.String())

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all saved runs, newest first.
func (s *runStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, file_path, output_file_path, assignments_file_path,
		       file_settings, algorithm_settings, created_at
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// RenameRun updates a run's display name.
func (s *runStore) RenameRun(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE runs SET name = ? WHERE id = ?", name, id.String())
	if err != nil {
		return fmt.Errorf("renaming run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renaming run: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteRun removes a run; the result graph cascades.
func (s *runStore) DeleteRun(ctx context.Context, id uuid.UUID) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RenameCluster updates a cluster's display name.
func (s *runStore) RenameCluster(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE clusters SET name = ? WHERE id = ?", name, id.String())
	if err != nil {
		return fmt.Errorf("renaming cluster: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renaming cluster: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveResult stores a complete clustering result in one transaction.
// An existing result for the same run is replaced.
func (s *runStore) SaveResult(ctx context.Context, result domain.ClusteringResult) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Replace semantics: the cascade removes any previous result graph.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM clustering_results WHERE run_id = ?", result.RunID.String()); err != nil {
		return fmt.Errorf("replacing previous result: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO clustering_results (id, run_id) VALUES (?, ?)",
		result.ID.String(), result.RunID.String()); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}

	for _, c := range result.Clusters {
		if err := insertCluster(ctx, tx, c, &result.ID, nil); err != nil {
			return err
		}
		for _, r := range c.Responses {
			if err := insertResponse(ctx, tx, r, result.ID); err != nil {
				return err
			}
		}
	}
	for _, r := range result.Outliers {
		if err := insertResponse(ctx, tx, r, result.ID); err != nil {
			return err
		}
	}

	for _, p := range result.InterClusterSimilarities {
		if err := insertPair(ctx, tx, p, &result.ID, nil); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO outlier_statistics (id, result_id, threshold) VALUES (?, ?, ?)",
		result.OutlierStats.ID.String(), result.ID.String(), result.OutlierStats.Threshold); err != nil {
		return fmt.Errorf("saving outlier statistics: %w", err)
	}
	for _, entry := range result.OutlierStats.Outliers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outlier_statistic_entries (id, statistics_id, response_id, similarity)
			VALUES (?, ?, ?, ?)
		`, entry.ID.String(), result.OutlierStats.ID.String(),
			entry.ResponseID.String(), entry.Similarity); err != nil {
			return fmt.Errorf("saving outlier statistic entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO merging_statistics (id, result_id, threshold) VALUES (?, ?, ?)",
		result.MergingStats.ID.String(), result.ID.String(), result.MergingStats.Threshold); err != nil {
		return fmt.Errorf("saving merging statistics: %w", err)
	}
	for _, m := range result.MergingStats.Mergers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mergers (id, statistics_id, name, result_cluster_id)
			VALUES (?, ?, ?, ?)
		`, m.ID.String(), result.MergingStats.ID.String(), m.Name, m.ResultClusterID.String()); err != nil {
			return fmt.Errorf("saving merger: %w", err)
		}
		for _, c := range m.Clusters {
			if err := insertCluster(ctx, tx, c, nil, &m.ID); err != nil {
				return err
			}
		}
		for _, p := range m.SimilarityPairs {
			if err := insertPair(ctx, tx, p, nil, &m.ID); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO timesteps (id, result_id) VALUES (?, ?)",
		result.Timesteps.ID.String(), result.ID.String()); err != nil {
		return fmt.Errorf("saving timesteps: %w", err)
	}
	for step, completedAt := range result.Timesteps.Steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO timestep_entries (timesteps_id, step, completed_at)
			VALUES (?, ?, ?)
		`, result.Timesteps.ID.String(), string(step), domain.UnixSeconds(completedAt)); err != nil {
			return fmt.Errorf("saving timestep entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing result: %w", err)
	}
	return nil
}

// GetResult retrieves the full result graph for a run.
func (s *runStore) GetResult(ctx context.Context, runID uuid.UUID) (*domain.ClusteringResult, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id FROM clustering_results WHERE run_id = ?", runID.String())

	var resultID string
	if err := row.Scan(&resultID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning result: %w", err)
	}

	result := domain.ClusteringResult{RunID: runID}
	var err error
	if result.ID, err = uuid.Parse(resultID); err != nil {
		return nil, fmt.Errorf("parsing result id: %w", err)
	}

	if err := s.loadClusters(ctx, &result); err != nil {
		return nil, err
	}
	if err := s.loadResponses(ctx, &result); err != nil {
		return nil, err
	}
	if result.InterClusterSimilarities, err = s.loadPairs(ctx, "result_id", result.ID); err != nil {
		return nil, err
	}
	if err := s.loadOutlierStats(ctx, &result); err != nil {
		return nil, err
	}
	if err := s.loadMergingStats(ctx, &result); err != nil {
		return nil, err
	}
	if err := s.loadTimesteps(ctx, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// loadClusters loads the final clusters, ordered by index.
func (s *runStore) loadClusters(ctx context.Context, result *domain.ClusteringResult) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, idx, name, center, count, is_merger_result
		FROM clusters WHERE result_id = ?
		ORDER BY idx
	`, result.ID.String())
	if err != nil {
		return fmt.Errorf("querying clusters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return err
		}
		result.Clusters = append(result.Clusters, *cluster)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating clusters: %w", err)
	}
	return nil
}

// loadResponses distributes the result's responses onto their clusters
// and into the outlier list.
func (s *runStore) loadResponses(ctx context.Context, result *domain.ClusteringResult) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, cluster_id, text, embedding, is_outlier, similarity, count
		FROM responses WHERE result_id = ?
	`, result.ID.String())
	if err != nil {
		return fmt.Errorf("querying responses: %w", err)
	}
	defer rows.Close()

	byCluster := make(map[uuid.UUID]*domain.Cluster, len(result.Clusters))
	for i := range result.Clusters {
		byCluster[result.Clusters[i].ID] = &result.Clusters[i]
	}

	for rows.Next() {
		var r domain.Response
		var id string
		var clusterID sql.NullString
		var embedding []byte
		var similarity sql.NullFloat64
		if err := rows.Scan(&id, &clusterID, &r.Text, &embedding,
			&r.IsOutlier, &similarity, &r.Count); err != nil {
			return fmt.Errorf("scanning response: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return fmt.Errorf("parsing response id: %w", err)
		}
		r.Embedding = bytesToFloat64Slice(embedding)
		if similarity.Valid {
			sim := similarity.Float64
			r.Similarity = &sim
		}

		if clusterID.Valid {
			cid, err := uuid.Parse(clusterID.String)
			if err != nil {
				return fmt.Errorf("parsing cluster id: %w", err)
			}
			r.ClusterID = &cid
			if cluster, ok := byCluster[cid]; ok {
				cluster.Responses = append(cluster.Responses, r)
			}
			continue
		}
		result.Outliers = append(result.Outliers, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating responses: %w", err)
	}
	return nil
}

// loadPairs loads similarity pairs owned by either a result or a merger.
func (s *runStore) loadPairs(ctx context.Context, ownerColumn string, ownerID uuid.UUID) ([]domain.SimilarityPair, error) {
	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, cluster1_id, cluster2_id, similarity
		FROM similarity_pairs WHERE %s = ?
	`, ownerColumn), ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("querying similarity pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.SimilarityPair //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.SimilarityPair
		var id, c1, c2 string
		if err := rows.Scan(&id, &c1, &c2, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning similarity pair: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing pair id: %w", err)
		}
		if p.Cluster1ID, err = uuid.Parse(c1); err != nil {
			return nil, fmt.Errorf("parsing pair cluster id: %w", err)
		}
		if p.Cluster2ID, err = uuid.Parse(c2); err != nil {
			return nil, fmt.Errorf("parsing pair cluster id: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating similarity pairs: %w", err)
	}
	return pairs, nil
}

// loadOutlierStats loads the outlier statistics record and its entries.
func (s *runStore) loadOutlierStats(ctx context.Context, result *domain.ClusteringResult) error {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, threshold FROM outlier_statistics WHERE result_id = ?", result.ID.String())

	var id string
	if err := row.Scan(&id, &result.OutlierStats.Threshold); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("scanning outlier statistics: %w", err)
	}
	var err error
	if result.OutlierStats.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("parsing outlier statistics id: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, response_id, similarity
		FROM outlier_statistic_entries WHERE statistics_id = ?
	`, result.OutlierStats.ID.String())
	if err != nil {
		return fmt.Errorf("querying outlier statistic entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.OutlierStatistic
		var entryID, responseID string
		if err := rows.Scan(&entryID, &responseID, &entry.Similarity); err != nil {
			return fmt.Errorf("scanning outlier statistic entry: %w", err)
		}
		if entry.ID, err = uuid.Parse(entryID); err != nil {
			return fmt.Errorf("parsing outlier entry id: %w", err)
		}
		if entry.ResponseID, err = uuid.Parse(responseID); err != nil {
			return fmt.Errorf("parsing outlier response id: %w", err)
		}
		result.OutlierStats.Outliers = append(result.OutlierStats.Outliers, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating outlier statistic entries: %w", err)
	}
	return nil
}

// loadMergingStats loads the merge record with each merger's input
// cluster snapshots and justifying pairs.
func (s *runStore) loadMergingStats(ctx context.Context, result *domain.ClusteringResult) error {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, threshold FROM merging_statistics WHERE result_id = ?", result.ID.String())

	var id string
	if err := row.Scan(&id, &result.MergingStats.Threshold); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("scanning merging statistics: %w", err)
	}
	var err error
	if result.MergingStats.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("parsing merging statistics id: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, result_cluster_id
		FROM mergers WHERE statistics_id = ?
	`, result.MergingStats.ID.String())
	if err != nil {
		return fmt.Errorf("querying mergers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Merger
		var mergerID, resultClusterID string
		if err := rows.Scan(&mergerID, &m.Name, &resultClusterID); err != nil {
			return fmt.Errorf("scanning merger: %w", err)
		}
		if m.ID, err = uuid.Parse(mergerID); err != nil {
			return fmt.Errorf("parsing merger id: %w", err)
		}
		if m.ResultClusterID, err = uuid.Parse(resultClusterID); err != nil {
			return fmt.Errorf("parsing merger result cluster id: %w", err)
		}
		result.MergingStats.Mergers = append(result.MergingStats.Mergers, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating mergers: %w", err)
	}

	for i := range result.MergingStats.Mergers {
		m := &result.MergingStats.Mergers[i]
		if m.Clusters, err = s.loadMergerClusters(ctx, m.ID); err != nil {
			return err
		}
		if m.SimilarityPairs, err = s.loadPairs(ctx, "merger_id", m.ID); err != nil {
			return err
		}
	}
	return nil
}

// loadMergerClusters loads the snapshot clusters of one merger.
func (s *runStore) loadMergerClusters(ctx context.Context, mergerID uuid.UUID) ([]domain.Cluster, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, idx, name, center, count, is_merger_result
		FROM clusters WHERE merger_id = ?
		ORDER BY idx
	`, mergerID.String())
	if err != nil {
		return nil, fmt.Errorf("querying merger clusters: %w", err)
	}
	defer rows.Close()

	var clusters []domain.Cluster //nolint:prealloc // size unknown from query
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merger clusters: %w", err)
	}
	return clusters, nil
}

// loadTimesteps loads the per-step completion times.
func (s *runStore) loadTimesteps(ctx context.Context, result *domain.ClusteringResult) error {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id FROM timesteps WHERE result_id = ?", result.ID.String())

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("scanning timesteps: %w", err)
	}
	var err error
	if result.Timesteps.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("parsing timesteps id: %w", err)
	}
	result.Timesteps.Steps = make(map[domain.Step]time.Time)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT step, completed_at
		FROM timestep_entries WHERE timesteps_id = ?
	`, result.Timesteps.ID.String())
	if err != nil {
		return fmt.Errorf("querying timestep entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step string
		var completedAt float64
		if err := rows.Scan(&step, &completedAt); err != nil {
			return fmt.Errorf("scanning timestep entry: %w", err)
		}
		result.Timesteps.Steps[domain.Step(step)] = domain.TimeFromUnixSeconds(completedAt)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating timestep entries: %w", err)
	}
	return nil
}

// insertCluster writes one cluster row owned by a result or a merger.
func insertCluster(ctx context.Context, tx *sql.Tx, c domain.Cluster, resultID, mergerID *uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO clusters (id, result_id, merger_id, idx, name, center, count, is_merger_result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), uuidOrNil(resultID), uuidOrNil(mergerID),
		c.Index, c.Name, float64SliceToBytes(c.Center), c.Count, c.IsMergerResult)
	if err != nil {
		return fmt.Errorf("saving cluster: %w", err)
	}
	return nil
}

// insertResponse writes one response row.
func insertResponse(ctx context.Context, tx *sql.Tx, r domain.Response, resultID uuid.UUID) error {
	var similarity any
	if r.Similarity != nil {
		similarity = *r.Similarity
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO responses (id, result_id, cluster_id, text, embedding, is_outlier, similarity, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), resultID.String(), uuidOrNil(r.ClusterID),
		r.Text, float64SliceToBytes(r.Embedding), r.IsOutlier, similarity, r.Count)
	if err != nil {
		return fmt.Errorf("saving response: %w", err)
	}
	return nil
}

// insertPair writes one similarity pair owned by a result or a merger.
func insertPair(ctx context.Context, tx *sql.Tx, p domain.SimilarityPair, resultID, mergerID *uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO similarity_pairs (id, result_id, merger_id, cluster1_id, cluster2_id, similarity)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID.String(), uuidOrNil(resultID), uuidOrNil(mergerID),
		p.Cluster1ID.String(), p.Cluster2ID.String(), p.Similarity)
	if err != nil {
		return fmt.Errorf("saving similarity pair: %w", err)
	}
	return nil
}

// scanCluster scans a cluster row without its responses.
func scanCluster(rows *sql.Rows) (*domain.Cluster, error) {
	var c domain.Cluster
	var id string
	var center []byte
	if err := rows.Scan(&id, &c.Index, &c.Name, &center, &c.Count, &c.IsMergerResult); err != nil {
		return nil, fmt.Errorf("scanning cluster: %w", err)
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing cluster id: %w", err)
	}
	c.Center = bytesToFloat64Slice(center)
	return &c, nil
}

// scanRun scans one run row via the given scan function.
func scanRun(scan func(dest ...any) error) (*domain.Run, error) {
	var run domain.Run
	var id, fileSettingsJSON, algorithmSettingsJSON string
	if err := scan(&id, &run.Name, &run.FilePath, &run.OutputFilePath,
		&run.AssignmentsFilePath, &fileSettingsJSON, &algorithmSettingsJSON,
		&run.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing run id: %w", err)
	}
	if err := json.Unmarshal([]byte(fileSettingsJSON), &run.FileSettings); err != nil {
		return nil, fmt.Errorf("unmarshaling file settings: %w", err)
	}
	if err := json.Unmarshal([]byte(algorithmSettingsJSON), &run.AlgorithmSettings); err != nil {
		return nil, fmt.Errorf("unmarshaling algorithm settings: %w", err)
	}
	return &run, nil
}

// uuidOrNil converts an optional uuid to a driver value.
func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
