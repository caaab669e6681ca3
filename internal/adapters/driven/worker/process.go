// Package worker launches the out-of-process clustering pipeline and
// adapts its stdio protocol to the worker port.
//
// The worker is an executable configured by command and arguments. It
// receives a single job description as one JSON line on stdin, then
// emits newline-delimited JSON messages on stdout: progress events for
// each pipeline step transition, pipeline errors, and the complete
// clustering result before the save step completes. stderr is forwarded
// to the logger. When the process exits, the event channel closes; an
// exit without a preceding terminal progress event is how an abnormal
// death (crash, kill) presents itself to the broker.
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
	"github.com/ReylordDev/psycluster/internal/logger"
)

// maxLineSize bounds one stdout line. Result lines carry full embedding
// vectors for every response, so the default scanner buffer is far too
// small.
const maxLineSize = 64 * 1024 * 1024

// message is one ndjson line from the worker's stdout.
type message struct {
	Type     string                   `json:"type"`
	Progress *domain.ProgressEvent    `json:"progress,omitempty"`
	Result   *domain.ClusteringResult `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// Message types on the worker stdout stream.
const (
	messageProgress = "progress"
	messageResult   = "result"
	messageError    = "error"
)

// Process runs the clustering pipeline as a subprocess.
type Process struct {
	command string
	args    []string
}

var _ driven.Worker = (*Process)(nil)

// NewProcess creates a worker that launches the given command for each
// run.
func NewProcess(command string, args ...string) *Process {
	return &Process{command: command, args: args}
}

// Run starts the worker process for one job. The returned channel
// carries everything the process emits and is closed when it exits.
// Cancelling ctx kills the process.
func (p *Process) Run(ctx context.Context, job driven.RunJob) (<-chan driven.WorkerEvent, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stderr: %w", err)
	}

	jobLine, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %q: %w", p.command, err)
	}
	logger.Info("Worker started (pid %d) for run %s", cmd.Process.Pid, job.RunID)

	// The job is the only thing the worker ever reads.
	go func() {
		defer stdin.Close()
		if _, err := stdin.Write(append(jobLine, '\n')); err != nil {
			logger.Warn("Writing job to worker: %v", err)
		}
	}()

	go forwardStderr(stderr, job.RunID.String())

	out := make(chan driven.WorkerEvent)
	go func() {
		defer close(out)
		p.consume(stdout, out)
		if err := cmd.Wait(); err != nil {
			logger.Warn("Worker for run %s exited: %v", job.RunID, err)
		}
	}()

	return out, nil
}

// consume decodes stdout lines into worker events until the stream
// ends.
func (p *Process) consume(stdout io.Reader, out chan<- driven.WorkerEvent) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn("Malformed worker output: %v", err)
			out <- driven.WorkerEvent{Err: fmt.Sprintf("%v: malformed worker output", domain.ErrProtocol)}
			continue
		}

		switch msg.Type {
		case messageProgress:
			if msg.Progress == nil {
				out <- driven.WorkerEvent{Err: fmt.Sprintf("%v: progress message without payload", domain.ErrProtocol)}
				continue
			}
			out <- driven.WorkerEvent{Progress: msg.Progress}

		case messageResult:
			if msg.Result == nil {
				out <- driven.WorkerEvent{Err: fmt.Sprintf("%v: result message without payload", domain.ErrProtocol)}
				continue
			}
			out <- driven.WorkerEvent{Result: msg.Result}

		case messageError:
			out <- driven.WorkerEvent{Err: msg.Error}

		default:
			logger.Warn("Unknown worker message type %q", msg.Type)
			out <- driven.WorkerEvent{Err: fmt.Sprintf("%v: unknown message type %q", domain.ErrProtocol, msg.Type)}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Reading worker output: %v", err)
	}
}

// forwardStderr relays the worker's stderr lines to the logger.
func forwardStderr(stderr io.Reader, runID string) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Debug("worker[%s]: %s", runID, scanner.Text())
	}
}
