package yolocli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
)

// Backend implements backend.Backend with the framework's `yolo` command line.
type Backend struct {
	executor *backend.Executor
}

// NewBackend creates a new yolo CLI backend.
func NewBackend(binPath string, timeout time.Duration) (*Backend, error) {
	executor, err := backend.NewExecutor(binPath, timeout)
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
	return backend.BackendProviderYoloCLI
}

// Export runs `yolo export`. The command does not print the artifact file
// itself, so the response leaves ArtifactPath empty.
func (b *Backend) Export(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args := b.buildArgs(req)

	start := time.Now()
	stdout, stderr, err := b.executor.Execute(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	return &backend.Response{
		Metadata: &backend.ResponseMetadata{
			Provider:   b.Provider(),
			Checkpoint: req.CheckpointPath,
			Format:     req.Format,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			BackendSpecific: map[string]any{
				"stdout": string(stdout),
				"stderr": string(stderr),
				"args":   args,
			},
		},
	}, nil
}

// buildArgs builds `yolo` arguments. Parameters become key=value pairs in key order.
func (b *Backend) buildArgs(req *backend.Request) []string {
	args := []string{
		"export",
		"model=" + req.CheckpointPath,
		"format=" + req.Format,
	}

	keys := make([]string, 0, len(req.Parameters))
	for k := range req.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, formatValue(req.Parameters[k])))
	}

	return args
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		// The CLI parses Python literals.
		if x {
			return "True"
		}
		return "False"
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = fmt.Sprint(n)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}
