package domain

import "github.com/google/uuid"

// Command and reply payload shapes for the channel catalog. These are
// the wire contracts both sides serialize against; field names travel
// in camelCase.

// FilePathPayload carries the input file path.
type FilePathPayload struct {
	FilePath string `json:"filePath"`
}

// RunPayload identifies a run.
type RunPayload struct {
	RunID uuid.UUID `json:"runId"`
}

// RunNamePayload renames a run.
type RunNamePayload struct {
	RunID uuid.UUID `json:"runId"`
	Name  string    `json:"name"`
}

// ClusterNamePayload renames a cluster.
type ClusterNamePayload struct {
	ClusterID uuid.UUID `json:"clusterId"`
	Name      string    `json:"name"`
}

// ErrorMessage is the payload of the error broadcast channel.
type ErrorMessage struct {
	Error string `json:"error"`
}

// RunsMessage is the reply to get-runs: summaries of every saved run.
type RunsMessage struct {
	Runs []Run `json:"runs"`
}

// CurrentRunMessage is the reply to get-current-run: the selected run
// together with its timesteps. The broker sends an empty reply when no
// run is selected or its result is not yet saved.
type CurrentRunMessage struct {
	Run       Run       `json:"run"`
	Timesteps Timesteps `json:"timesteps"`
}

// ClusterAssignmentDetail is one cluster with its member responses.
type ClusterAssignmentDetail struct {
	ID             uuid.UUID  `json:"id"`
	Index          int        `json:"index"`
	Name           string     `json:"name"`
	IsMergerResult bool       `json:"isMergerResult"`
	Responses      []Response `json:"responses"`
	Count          int        `json:"count"`
}

// ClusterAssignmentsMessage is the reply to get-cluster-assignments.
type ClusterAssignmentsMessage struct {
	Clusters []ClusterAssignmentDetail `json:"clusters"`
}

// ClusterSimilarityDetail is one cluster plus its pairwise similarity
// to every other final cluster, keyed by the counterpart cluster id.
type ClusterSimilarityDetail struct {
	ID              uuid.UUID             `json:"id"`
	Index           int                   `json:"index"`
	Name            string                `json:"name"`
	IsMergerResult  bool                  `json:"isMergerResult"`
	Responses       []Response            `json:"responses"`
	Count           int                   `json:"count"`
	SimilarityPairs map[uuid.UUID]float64 `json:"similarityPairs"`
}

// ClusterSimilaritiesMessage is the reply to get-cluster-similarities.
type ClusterSimilaritiesMessage struct {
	Clusters []ClusterSimilarityDetail `json:"clusters"`
}

// OutlierEntry is one outlier response with its nearest-cluster
// similarity.
type OutlierEntry struct {
	Response   Response `json:"response"`
	Similarity float64  `json:"similarity"`
}

// OutliersMessage is the reply to get-outliers.
type OutliersMessage struct {
	Threshold float64        `json:"threshold"`
	Outliers  []OutlierEntry `json:"outliers"`
}

// MergerDetail is one merge event: the constituent clusters and the
// similarity pairs that justified combining them.
type MergerDetail struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Clusters        []Cluster        `json:"clusters"`
	SimilarityPairs []SimilarityPair `json:"similarityPairs"`
	ResultClusterID uuid.UUID        `json:"resultClusterId"`
}

// MergersMessage is the reply to get-mergers.
type MergersMessage struct {
	Threshold float64        `json:"threshold"`
	Mergers   []MergerDetail `json:"mergers"`
}
