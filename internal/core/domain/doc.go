// Package domain defines the core business entities for psycluster.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Run: One user-initiated clustering session
//   - ClusteringResult: The persisted output of a completed Run
//   - Cluster, Response, SimilarityPair: The result entity graph
//   - FileSettings, AlgorithmSettings: Pending run configuration
//   - Step, Status, ProgressEvent: The pipeline progress protocol
//   - Channel: The closed catalog of broker communication channels
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import the Go
// standard library and the uuid package used for entity identifiers.
// All other packages depend on domain, never the reverse.
package domain
