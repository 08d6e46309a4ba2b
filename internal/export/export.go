package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/xfs"
)

// Artifact is the exported model written by the framework.
type Artifact struct {
	Path       string        `json:"path"`
	Format     string        `json:"format"`
	Size       int64         `json:"size"`
	Checkpoint string        `json:"checkpoint"`
	Provider   string        `json:"provider"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// ValidateFunc checks an artifact after the framework wrote it.
type ValidateFunc func(path string) error

// Exporter converts checkpoints through a framework backend.
type Exporter struct {
	backend    backend.Backend
	validators map[string]ValidateFunc
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithValidator runs fn on every fresh artifact of the given format.
func WithValidator(format string, fn ValidateFunc) ExporterOption {
	return func(e *Exporter) {
		e.validators[format] = fn
	}
}

// NewExporter creates an exporter that delegates to b.
func NewExporter(b backend.Backend, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		backend:    b,
		validators: map[string]ValidateFunc{},
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Export converts the checkpoint into the target format. Errors raised by
// the framework are returned wrapped in ErrExportFailed with its output
// attached. A run that leaves no artifact, or an empty one, never succeeds.
func (e *Exporter) Export(ctx context.Context, ckpt *Checkpoint, format string, opts Options) (*Artifact, error) {
	f, err := LookupFormat(format)
	if err != nil {
		return nil, err
	}

	params := opts.Parameters()
	expected := f.ArtifactPath(ckpt.Path, opts)
	mk := marker{CheckpointSHA256: ckpt.SHA256, Format: f.Name, Parameters: params}

	if !opts.Force && mk.upToDate(expected) {
		size, _ := artifactSize(expected)
		slog.Info("Artifact up-to-date (marker match), skipping export", "checkpoint", ckpt.Path, "artifact", expected)
		return &Artifact{
			Path:       expected,
			Format:     f.Name,
			Size:       size,
			Checkpoint: ckpt.Path,
			Provider:   string(e.backend.Provider()),
			Skipped:    true,
		}, nil
	}

	if err := clearMarker(expected); err != nil {
		return nil, err
	}

	slog.Info("Exporting checkpoint", "checkpoint", ckpt.Path, "format", f.Name, "provider", e.backend.Provider(), "parameters", params)

	start := time.Now()
	resp, err := e.backend.Export(ctx, &backend.Request{
		CheckpointPath: ckpt.Path,
		Format:         f.Name,
		Parameters:     params,
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s: %w", ErrExportFailed, ckpt.Path, f.Name, err)
	}

	path := expected
	if resp != nil && resp.ArtifactPath != "" {
		path = resp.ArtifactPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(ckpt.Path), path)
		}
		if path != expected {
			if err := clearMarker(path); err != nil {
				return nil, err
			}
		}
	}

	size, err := artifactSize(path)
	if err != nil {
		logFrameworkOutput(resp, path)
		return nil, fmt.Errorf("%w: %s: %w", ErrEmptyArtifact, path, err)
	}
	if size == 0 {
		logFrameworkOutput(resp, path)
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyArtifact, path)
	}

	if validate, ok := e.validators[f.Name]; ok {
		if err := validate(path); err != nil {
			logFrameworkOutput(resp, path)
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, path, err)
		}
	}

	mk.write(path)

	slog.Info("Checkpoint exported", "artifact", path, "size", size, "duration", elapsed)

	return &Artifact{
		Path:       path,
		Format:     f.Name,
		Size:       size,
		Checkpoint: ckpt.Path,
		Provider:   string(e.backend.Provider()),
		Duration:   elapsed,
	}, nil
}

// logFrameworkOutput records what the framework printed for a run whose
// artifact was rejected.
func logFrameworkOutput(resp *backend.Response, artifact string) {
	if resp == nil || resp.Metadata == nil {
		return
	}
	md := resp.Metadata
	slog.Debug("Framework output for rejected artifact",
		"artifact", artifact,
		"provider", md.Provider,
		"duration", md.Duration,
		"stdout", md.BackendSpecific["stdout"],
		"stderr", md.BackendSpecific["stderr"])
}

func artifactSize(path string) (int64, error) {
	size, err := xfs.Size(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fs.ErrNotExist
	}

	return size, err
}
