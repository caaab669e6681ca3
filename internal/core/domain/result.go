package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Response is one input record considered by a run: a deduplicated
// free-text answer. After the pipeline completes, a response is a member
// of exactly one cluster or is an outlier, never both, never neither.
type Response struct {
	// ID is the unique identifier for the response.
	ID uuid.UUID `json:"id"`

	// Text is the normalised response text.
	Text string `json:"text"`

	// Embedding is the response's embedding vector. Nil until the
	// embed step completes.
	Embedding []float64 `json:"embedding,omitempty"`

	// IsOutlier marks responses not assigned to any cluster.
	IsOutlier bool `json:"isOutlier"`

	// Similarity is the similarity to the response's nearest cluster.
	// Nil until computed.
	Similarity *float64 `json:"similarity,omitempty"`

	// Count is how many identical input rows were deduplicated into
	// this response.
	Count int `json:"count"`

	// ClusterID references the owning cluster. Nil for outliers.
	ClusterID *uuid.UUID `json:"clusterId,omitempty"`
}

// Cluster is a group of semantically similar responses with a computed
// centroid.
type Cluster struct {
	// ID is the unique identifier for the cluster.
	ID uuid.UUID `json:"id"`

	// Index is the cluster's position in the result ordering.
	Index int `json:"index"`

	// Name is the display name, mutable via update_cluster_name.
	Name string `json:"name"`

	// Center is the centroid of the member embeddings.
	Center []float64 `json:"center"`

	// Count is the number of member responses, each weighted by its
	// duplicate count.
	Count int `json:"count"`

	// IsMergerResult marks clusters produced by merging others.
	IsMergerResult bool `json:"isMergerResult"`

	// Responses are the member responses.
	Responses []Response `json:"responses"`
}

// NewCluster creates a cluster with a default display name.
func NewCluster(index int) Cluster {
	id := uuid.New()
	return Cluster{
		ID:    id,
		Index: index,
		Name:  fmt.Sprintf("Cluster %d", index+1),
	}
}

// MemberCount sums the duplicate counts of the member responses.
func (c *Cluster) MemberCount() int {
	total := 0
	for _, r := range c.Responses {
		total += r.Count
	}
	return total
}

// SimilarityPair is a symmetric relation between two distinct clusters
// with a scalar similarity. It appears either as an inter-cluster
// similarity attached to a result, or as a candidate pair attached to a
// merger, never both.
type SimilarityPair struct {
	// ID is the unique identifier for the pair.
	ID uuid.UUID `json:"id"`

	// Cluster1ID and Cluster2ID reference the related clusters.
	// Pairs are stored canonically ordered so an unordered pair appears
	// at most once per owning context.
	Cluster1ID uuid.UUID `json:"cluster1Id"`
	Cluster2ID uuid.UUID `json:"cluster2Id"`

	// Similarity is the cosine similarity of the cluster centroids.
	Similarity float64 `json:"similarity"`
}

// NewSimilarityPair creates a canonically ordered pair between two
// distinct clusters.
func NewSimilarityPair(a, b uuid.UUID, similarity float64) SimilarityPair {
	c1, c2 := CanonicalPair(a, b)
	return SimilarityPair{
		ID:         uuid.New(),
		Cluster1ID: c1,
		Cluster2ID: c2,
		Similarity: similarity,
	}
}

// CanonicalPair orders two cluster ids deterministically so that the
// unordered pair has a single representation.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// Validate checks the pair relates two distinct clusters.
func (p SimilarityPair) Validate() error {
	if p.Cluster1ID == p.Cluster2ID {
		return fmt.Errorf("%w: similarity pair relates a cluster to itself", ErrInvalidInput)
	}
	return nil
}

// OutlierStatistic records one outlier response together with its
// similarity to the nearest cluster.
type OutlierStatistic struct {
	// ID is the unique identifier for the entry.
	ID uuid.UUID `json:"id"`

	// ResponseID references the outlier response.
	ResponseID uuid.UUID `json:"responseId"`

	// Similarity is the response's similarity to its nearest cluster.
	Similarity float64 `json:"similarity"`
}

// OutlierStatistics is the per-result outlier record: the detection
// threshold and one entry per outlier response.
type OutlierStatistics struct {
	// ID is the unique identifier for the record.
	ID uuid.UUID `json:"id"`

	// Threshold is the similarity below which responses were marked
	// as outliers.
	Threshold float64 `json:"threshold"`

	// Outliers holds one entry per outlier response.
	Outliers []OutlierStatistic `json:"outliers"`
}

// Merger records the combination of two or more clusters into one,
// justified by their pairwise similarities.
type Merger struct {
	// ID is the unique identifier for the merger.
	ID uuid.UUID `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Clusters are snapshots of the original input clusters. None of
	// them is itself a merger result.
	Clusters []Cluster `json:"clusters"`

	// SimilarityPairs are the pairwise similarities that justified the
	// merge.
	SimilarityPairs []SimilarityPair `json:"similarityPairs"`

	// ResultClusterID references the produced merged cluster in the
	// owning result.
	ResultClusterID uuid.UUID `json:"resultClusterId"`
}

// MergingStatistics is the per-result merge record: the similarity
// threshold and the list of merge events.
type MergingStatistics struct {
	// ID is the unique identifier for the record.
	ID uuid.UUID `json:"id"`

	// Threshold is the similarity above which clusters were merged.
	Threshold float64 `json:"threshold"`

	// Mergers holds one entry per merge event.
	Mergers []Merger `json:"mergers"`
}

// Timesteps records, per pipeline step, the wall-clock time at which
// the step completed.
type Timesteps struct {
	// ID is the unique identifier for the record.
	ID uuid.UUID `json:"id"`

	// Steps maps each completed step to its completion time.
	Steps map[Step]time.Time `json:"-"`
}

// TotalDuration is the wall-clock span from the first step's completion
// to the save step's completion. Zero when either boundary is missing.
func (t Timesteps) TotalDuration() time.Duration {
	start, okStart := t.Steps[StepStart]
	end, okEnd := t.Steps[StepSave]
	if !okStart || !okEnd {
		return 0
	}
	return end.Sub(start)
}

// timestepsWire is the JSON shape of the record: completion times as
// unix seconds keyed by step, plus the derived total duration in
// seconds.
type timestepsWire struct {
	ID            uuid.UUID        `json:"id"`
	Steps         map[Step]float64 `json:"steps"`
	TotalDuration float64          `json:"totalDuration"`
}

// MarshalJSON encodes completion times as unix seconds.
func (t Timesteps) MarshalJSON() ([]byte, error) {
	wire := timestepsWire{
		ID:            t.ID,
		Steps:         make(map[Step]float64, len(t.Steps)),
		TotalDuration: t.TotalDuration().Seconds(),
	}
	for step, ts := range t.Steps {
		wire.Steps[step] = UnixSeconds(ts)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes completion times from unix seconds.
func (t *Timesteps) UnmarshalJSON(data []byte) error {
	var wire timestepsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.ID = wire.ID
	t.Steps = make(map[Step]time.Time, len(wire.Steps))
	for step, s := range wire.Steps {
		t.Steps[step] = TimeFromUnixSeconds(s)
	}
	return nil
}

// Validate checks completion times are non-decreasing in step order.
func (t Timesteps) Validate() error {
	var prev time.Time
	for _, step := range Steps() {
		ts, ok := t.Steps[step]
		if !ok {
			continue
		}
		if !prev.IsZero() && ts.Before(prev) {
			return fmt.Errorf("%w: step %s completed before its predecessor", ErrProtocol, step)
		}
		prev = ts
	}
	return nil
}

// ClusteringResult is the full output of one completed run. It
// exclusively owns its clusters, responses, similarity pairs,
// statistics, and timesteps; none of these are shared across runs.
// A result is persisted atomically at the end of a successful pipeline
// and is never partially visible.
type ClusteringResult struct {
	// ID is the unique identifier for the result.
	ID uuid.UUID `json:"id"`

	// RunID references the owning run.
	RunID uuid.UUID `json:"runId"`

	// Clusters are the final clusters, ordered by index.
	Clusters []Cluster `json:"clusters"`

	// Outliers are the responses not assigned to any cluster.
	Outliers []Response `json:"outliers"`

	// OutlierStats is the outlier detection record.
	OutlierStats OutlierStatistics `json:"outlierStatistics"`

	// MergingStats is the merge record.
	MergingStats MergingStatistics `json:"mergingStatistics"`

	// InterClusterSimilarities are the pairwise similarities between
	// the final clusters.
	InterClusterSimilarities []SimilarityPair `json:"interClusterSimilarities"`

	// Timesteps are the per-step completion times.
	Timesteps Timesteps `json:"timesteps"`
}

// AllResponses returns every response the run considered: clustered
// members followed by outliers.
func (r *ClusteringResult) AllResponses() []Response {
	var out []Response
	for _, c := range r.Clusters {
		out = append(out, c.Responses...)
	}
	out = append(out, r.Outliers...)
	return out
}

// ClusterByID finds a final cluster by id.
func (r *ClusteringResult) ClusterByID(id uuid.UUID) (*Cluster, bool) {
	for i := range r.Clusters {
		if r.Clusters[i].ID == id {
			return &r.Clusters[i], true
		}
	}
	return nil, false
}

// Validate checks the internal consistency of the result graph:
// the outlier/member partition, pair uniqueness, merger flags, and
// timestep ordering. The broker validates every result before
// persisting it; a violation is a protocol error, not a pipeline error.
func (r *ClusteringResult) Validate() error {
	seen := make(map[uuid.UUID]bool)
	for _, c := range r.Clusters {
		for _, resp := range c.Responses {
			if resp.IsOutlier {
				return fmt.Errorf("%w: outlier response %s assigned to cluster %s", ErrProtocol, resp.ID, c.ID)
			}
			if resp.ClusterID == nil || *resp.ClusterID != c.ID {
				return fmt.Errorf("%w: response %s does not reference its owning cluster", ErrProtocol, resp.ID)
			}
			if seen[resp.ID] {
				return fmt.Errorf("%w: response %s appears twice", ErrProtocol, resp.ID)
			}
			seen[resp.ID] = true
		}
	}

	outliers := make(map[uuid.UUID]bool)
	for _, resp := range r.Outliers {
		if !resp.IsOutlier {
			return fmt.Errorf("%w: response %s listed as outlier without the flag", ErrProtocol, resp.ID)
		}
		if resp.ClusterID != nil {
			return fmt.Errorf("%w: outlier response %s references a cluster", ErrProtocol, resp.ID)
		}
		if seen[resp.ID] {
			return fmt.Errorf("%w: response %s appears twice", ErrProtocol, resp.ID)
		}
		seen[resp.ID] = true
		outliers[resp.ID] = true
	}

	if len(outliers) != len(r.OutlierStats.Outliers) {
		return fmt.Errorf("%w: outlier statistics cover %d responses, result has %d outliers",
			ErrProtocol, len(r.OutlierStats.Outliers), len(outliers))
	}
	for _, stat := range r.OutlierStats.Outliers {
		if !outliers[stat.ResponseID] {
			return fmt.Errorf("%w: outlier statistic references non-outlier response %s", ErrProtocol, stat.ResponseID)
		}
	}

	if err := validatePairs(r.InterClusterSimilarities); err != nil {
		return err
	}

	for _, m := range r.MergingStats.Mergers {
		for _, c := range m.Clusters {
			if c.IsMergerResult {
				return fmt.Errorf("%w: merger %s input cluster %s is itself a merger result", ErrProtocol, m.ID, c.ID)
			}
		}
		produced, ok := r.ClusterByID(m.ResultClusterID)
		if !ok {
			return fmt.Errorf("%w: merger %s references missing result cluster %s", ErrProtocol, m.ID, m.ResultClusterID)
		}
		if !produced.IsMergerResult {
			return fmt.Errorf("%w: merger %s result cluster %s is not flagged as merged", ErrProtocol, m.ID, produced.ID)
		}
		if err := validatePairs(m.SimilarityPairs); err != nil {
			return err
		}
	}

	return r.Timesteps.Validate()
}

// validatePairs checks each pair relates distinct clusters and that no
// unordered pair repeats within the owning context.
func validatePairs(pairs []SimilarityPair) error {
	type key struct{ a, b uuid.UUID }
	seen := make(map[key]bool)
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return err
		}
		a, b := CanonicalPair(p.Cluster1ID, p.Cluster2ID)
		k := key{a, b}
		if seen[k] {
			return fmt.Errorf("%w: duplicate similarity pair %s/%s", ErrInvalidInput, a, b)
		}
		seen[k] = true
	}
	return nil
}
