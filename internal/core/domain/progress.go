package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Step identifies one stage of the clustering pipeline.
type Step string

// The pipeline step catalog, in execution order.
const (
	StepStart            Step = "start"
	StepProcessInputFile Step = "process_input_file"
	StepLoadModel        Step = "load_model"
	StepEmbedResponses   Step = "embed_responses"
	StepDetectOutliers   Step = "detect_outliers"
	StepAutoClusterCount Step = "auto_cluster_count"
	StepCluster          Step = "cluster"
	StepMerge            Step = "merge"
	StepSave             Step = "save"
)

// steps is the canonical ordering. A step may only be entered once its
// predecessor has completed.
var steps = []Step{
	StepStart,
	StepProcessInputFile,
	StepLoadModel,
	StepEmbedResponses,
	StepDetectOutliers,
	StepAutoClusterCount,
	StepCluster,
	StepMerge,
	StepSave,
}

// Steps returns the ordered pipeline step catalog.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// StepIndex returns the position of a step in the pipeline order,
// or -1 if the step is unknown.
func StepIndex(s Step) int {
	for i, step := range steps {
		if step == s {
			return i
		}
	}
	return -1
}

// IsValid returns true if the step is part of the pipeline catalog.
func (s Step) IsValid() bool {
	return StepIndex(s) >= 0
}

// String returns the string representation.
func (s Step) String() string {
	return string(s)
}

// Status is the per-step progress status reported by the worker.
type Status string

// Per-step statuses. The only legal sequence for a step is
// todo -> start -> complete, or todo -> start -> error.
const (
	StatusTodo     Status = "todo"
	StatusStart    Status = "start"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// IsValid returns true if the status is recognised.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusStart, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ProgressEvent is one progress report emitted by the worker and
// republished on the cluster-progress channel.
type ProgressEvent struct {
	Step      Step
	Status    Status
	Timestamp time.Time
}

// progressEventWire is the JSON shape of a progress event. Timestamps
// travel as unix seconds, matching the worker protocol.
type progressEventWire struct {
	Step      Step    `json:"step"`
	Status    Status  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// MarshalJSON encodes the event with a unix-seconds timestamp.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressEventWire{
		Step:      e.Step,
		Status:    e.Status,
		Timestamp: UnixSeconds(e.Timestamp),
	})
}

// UnmarshalJSON decodes the event and validates step and status.
func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	var wire progressEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if !wire.Step.IsValid() {
		return fmt.Errorf("%w: unknown step %q", ErrProtocol, wire.Step)
	}
	if !wire.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrProtocol, wire.Status)
	}
	e.Step = wire.Step
	e.Status = wire.Status
	e.Timestamp = TimeFromUnixSeconds(wire.Timestamp)
	return nil
}

// UnixSeconds converts a time to fractional unix seconds for the wire.
func UnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// TimeFromUnixSeconds converts fractional unix seconds to a time.
func TimeFromUnixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
