package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_Order(t *testing.T) {
	expected := []Step{
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
	assert.Equal(t, expected, Steps())
}

func TestStepIndex(t *testing.T) {
	assert.Equal(t, 0, StepIndex(StepStart))
	assert.Equal(t, 8, StepIndex(StepSave))
	assert.Equal(t, -1, StepIndex(Step("unknown")))
}

func TestStep_IsValid(t *testing.T) {
	for _, step := range Steps() {
		assert.True(t, step.IsValid(), "step %s", step)
	}
	assert.False(t, Step("embed").IsValid())
	assert.False(t, Step("").IsValid())
}

func TestStatus_IsValid(t *testing.T) {
	for _, status := range []Status{StatusTodo, StatusStart, StatusComplete, StatusError} {
		assert.True(t, status.IsValid(), "status %s", status)
	}
	assert.False(t, Status("done").IsValid())
}

func TestProgressEvent_JSONRoundTrip(t *testing.T) {
	ev := ProgressEvent{
		Step:      StepCluster,
		Status:    StatusComplete,
		Timestamp: time.Unix(1700000000, 250_000_000),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"cluster","status":"complete","timestamp":1700000000.25}`, string(data))

	var decoded ProgressEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ev.Step, decoded.Step)
	assert.Equal(t, ev.Status, decoded.Status)
	assert.WithinDuration(t, ev.Timestamp, decoded.Timestamp, time.Millisecond)
}

func TestProgressEvent_UnmarshalRejectsUnknown(t *testing.T) {
	var ev ProgressEvent

	err := json.Unmarshal([]byte(`{"step":"compile","status":"start","timestamp":1}`), &ev)
	assert.ErrorIs(t, err, ErrProtocol)

	err = json.Unmarshal([]byte(`{"step":"cluster","status":"done","timestamp":1}`), &ev)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestUnixSeconds_ZeroTime(t *testing.T) {
	assert.Zero(t, UnixSeconds(time.Time{}))
	assert.True(t, TimeFromUnixSeconds(0).IsZero())
}
