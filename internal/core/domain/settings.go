package domain

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted run or cluster name.
const MaxNameLength = 255

// ValidateName checks a run or cluster name supplied by a rename command.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	return nil
}

// FileSettings describes how the input file is parsed by the worker.
type FileSettings struct {
	// Delimiter separates columns in the input file.
	Delimiter string `json:"delimiter"`

	// HasHeader indicates the first row holds column names.
	HasHeader bool `json:"hasHeader"`

	// SelectedColumns are the zero-based indices of the columns holding
	// responses.
	SelectedColumns []int `json:"selectedColumns"`
}

// Validate checks the file settings shape.
func (s FileSettings) Validate() error {
	if utf8.RuneCountInString(s.Delimiter) != 1 {
		return fmt.Errorf("%w: delimiter must be a single character", ErrInvalidInput)
	}
	if len(s.SelectedColumns) == 0 {
		return fmt.Errorf("%w: at least one column must be selected", ErrInvalidInput)
	}
	for _, col := range s.SelectedColumns {
		if col < 0 {
			return fmt.Errorf("%w: column index %d is negative", ErrInvalidInput, col)
		}
	}
	return nil
}

// ClusterCountMethod selects how the number of clusters is determined.
type ClusterCountMethod string

// Available cluster count methods.
const (
	// ClusterCountAuto derives the cluster count from the data, bounded
	// by a maximum.
	ClusterCountAuto ClusterCountMethod = "auto"

	// ClusterCountManual uses an exact user-supplied count.
	ClusterCountManual ClusterCountMethod = "manual"
)

// IsValid returns true if the method is recognised.
func (m ClusterCountMethod) IsValid() bool {
	switch m {
	case ClusterCountAuto, ClusterCountManual:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m ClusterCountMethod) String() string {
	return string(m)
}

// ClusterCount is the tagged cluster-count variant: automatic with an
// upper bound, or manual with an exact count. Exactly one of MaxClusters
// and Exact is meaningful, selected by Method.
type ClusterCount struct {
	Method ClusterCountMethod

	// MaxClusters bounds the search when Method is auto.
	MaxClusters int

	// Exact is the cluster count when Method is manual.
	Exact int
}

// clusterCountWire matches the discriminated union used on the wire:
// {"clusterCountMethod":"auto","maxClusters":n} or
// {"clusterCountMethod":"manual","clusterCount":n}.
type clusterCountWire struct {
	Method      ClusterCountMethod `json:"clusterCountMethod"`
	MaxClusters *int               `json:"maxClusters,omitempty"`
	Exact       *int               `json:"clusterCount,omitempty"`
}

// MarshalJSON encodes the variant with its discriminator.
func (c ClusterCount) MarshalJSON() ([]byte, error) {
	wire := clusterCountWire{Method: c.Method}
	switch c.Method {
	case ClusterCountAuto:
		wire.MaxClusters = &c.MaxClusters
	case ClusterCountManual:
		wire.Exact = &c.Exact
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the variant by its discriminator.
func (c *ClusterCount) UnmarshalJSON(data []byte) error {
	var wire clusterCountWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Method = wire.Method
	c.MaxClusters = 0
	c.Exact = 0
	switch wire.Method {
	case ClusterCountAuto:
		if wire.MaxClusters != nil {
			c.MaxClusters = *wire.MaxClusters
		}
	case ClusterCountManual:
		if wire.Exact != nil {
			c.Exact = *wire.Exact
		}
	}
	return nil
}

// Validate checks the variant shape exhaustively by method.
func (c ClusterCount) Validate() error {
	switch c.Method {
	case ClusterCountAuto:
		if c.MaxClusters < 2 {
			return fmt.Errorf("%w: max clusters must be at least 2", ErrInvalidInput)
		}
		return nil
	case ClusterCountManual:
		if c.Exact < 1 {
			return fmt.Errorf("%w: cluster count must be at least 1", ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown cluster count method %q", ErrInvalidInput, c.Method)
	}
}

// AlgorithmSettings configures one clustering run.
type AlgorithmSettings struct {
	// Method determines the cluster count.
	Method ClusterCount `json:"method"`

	// ExcludedWords are filtered out of the input responses.
	ExcludedWords []string `json:"excludedWords"`

	// Seed makes the pipeline deterministic.
	Seed int64 `json:"seed"`

	// OutlierK is the neighbourhood size for outlier detection.
	OutlierK int `json:"outlierK"`

	// ZScoreThreshold is the outlier z-score cutoff.
	ZScoreThreshold float64 `json:"zScoreThreshold"`

	// MergeThreshold is the minimum inter-cluster similarity at which
	// clusters are merged.
	MergeThreshold float64 `json:"mergeThreshold"`
}

// DefaultAlgorithmSettings returns the settings used when the client
// does not override the advanced parameters.
func DefaultAlgorithmSettings() AlgorithmSettings {
	return AlgorithmSettings{
		Method:          ClusterCount{Method: ClusterCountAuto, MaxClusters: 10},
		ExcludedWords:   []string{},
		Seed:            42,
		OutlierK:        5,
		ZScoreThreshold: 1.5,
		MergeThreshold:  0.85,
	}
}

// Validate checks the algorithm settings shape.
func (s AlgorithmSettings) Validate() error {
	if err := s.Method.Validate(); err != nil {
		return err
	}
	if s.OutlierK < 1 {
		return fmt.Errorf("%w: outlier neighbourhood must be at least 1", ErrInvalidInput)
	}
	if s.ZScoreThreshold <= 0 {
		return fmt.Errorf("%w: z-score threshold must be positive", ErrInvalidInput)
	}
	if s.MergeThreshold <= 0 || s.MergeThreshold > 1 {
		return fmt.Errorf("%w: merge threshold must be in (0, 1]", ErrInvalidInput)
	}
	return nil
}
