package ultralytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
)

// artifactPrefix tags the stdout line that carries the exported path.
const artifactPrefix = "SCANBILL_ARTIFACT="

// program is run with: checkpoint path, format, JSON encoded export kwargs.
const program = `import json, sys
from ultralytics import YOLO
model = YOLO(sys.argv[1])
path = model.export(format=sys.argv[2], **json.loads(sys.argv[3]))
print("` + artifactPrefix + `" + str(path), flush=True)
`

// Backend implements backend.Backend on top of the framework's Python API.
type Backend struct {
	executor *backend.Executor
}

// NewBackend creates a new ultralytics backend for the given interpreter.
func NewBackend(python string, timeout time.Duration) (*Backend, error) {
	executor, err := backend.NewExecutor(python, timeout)
	if err != nil {
		return nil, err
	}

	return &Backend{executor: executor}, nil
}

// NewBackendWithExecutor creates a backend around an existing executor.
func NewBackendWithExecutor(executor *backend.Executor) *Backend {
	return &Backend{executor: executor}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderUltralytics
}

// Export loads the checkpoint with the framework and runs its export routine.
// Framework progress lines are logged at debug level as they arrive.
func (b *Backend) Export(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args, err := b.buildArgs(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stream, err := b.executor.Stream(ctx, args, nil)
	if err != nil {
		return nil, err
	}

	var (
		artifact string
		output   bytes.Buffer
		runErr   error
	)
	for chunk := range stream {
		if chunk.Done {
			runErr = chunk.Error
			continue
		}

		line := strings.TrimRight(string(chunk.Data), "\r\n")
		output.WriteString(line)
		output.WriteByte('\n')

		if path, ok := strings.CutPrefix(line, artifactPrefix); ok {
			artifact = strings.TrimSpace(path)
			continue
		}
		slog.Debug("ultralytics", "line", line)
	}

	if runErr != nil {
		return nil, fmt.Errorf("ultralytics export: %w", runErr)
	}

	return &backend.Response{
		ArtifactPath: artifact,
		Metadata: &backend.ResponseMetadata{
			Provider:   b.Provider(),
			Checkpoint: req.CheckpointPath,
			Format:     req.Format,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			BackendSpecific: map[string]any{
				"python": b.executor.BinaryPath(),
				"stdout": output.String(),
			},
		},
	}, nil
}

// buildArgs builds the interpreter arguments.
func (b *Backend) buildArgs(req *backend.Request) ([]string, error) {
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	kwargs, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode export parameters: %w", err)
	}

	return []string{"-c", program, req.CheckpointPath, req.Format, string(kwargs)}, nil
}

// Close cleans up resources. The interpreter is started per export, so there is nothing to release.
func (b *Backend) Close() error {
	return nil
}
