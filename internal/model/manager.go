package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/config/source"
	"github.com/ekisa-team/scanbill/internal/envvar"
	"github.com/ekisa-team/scanbill/internal/export"
	"github.com/ekisa-team/scanbill/internal/metrics"
	"github.com/ekisa-team/scanbill/internal/onnxmeta"
	"github.com/ekisa-team/scanbill/internal/xfs"
)

// DownloaderFunc resolves the downloader for a source type.
type DownloaderFunc func(ctx context.Context, sourceType config.SourceType) (source.Downloader, error)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBackendFactory replaces NewBackend.
func WithBackendFactory(f BackendFactory) ManagerOption {
	return func(m *Manager) { m.newBackend = f }
}

// WithDownloader replaces source.GetDownloader.
func WithDownloader(f DownloaderFunc) ManagerOption {
	return func(m *Manager) { m.downloader = f }
}

// WithMetrics records export outcomes.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// Manager exports every configured model and tracks the result.
type Manager struct {
	registry *Registry
	backends *backend.Registry

	newBackend BackendFactory
	downloader DownloaderFunc
	metrics    *metrics.Metrics

	loadMu sync.Mutex   // serializes ExportModelsFromConfig
	mu     sync.RWMutex // guards registry and backends
}

// NewManager creates a new Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:   NewRegistry(),
		backends:   backend.NewRegistry(),
		newBackend: NewBackend,
		downloader: source.GetDownloader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// Snapshots returns the state of every model ordered by ID.
func (m *Manager) Snapshots() []Snapshot {
	instances := m.Registry().List()
	out := make([]Snapshot, len(instances))
	for i, mi := range instances {
		out[i] = mi.Snapshot()
	}
	return out
}

// ArtifactPath returns the exported artifact for a model.
func (m *Manager) ArtifactPath(id string) (string, error) {
	instance, ok := m.Registry().Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return instance.ArtifactPath()
}

// ExportModelsFromConfig resolves, loads and exports every model in cfg.
// A failing model is marked failed and does not stop the others; all
// failures are returned joined. Models no longer in cfg are dropped.
func (m *Manager) ExportModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	registry := NewRegistry()
	backends := backend.NewRegistry()

	ids := make([]string, 0, len(cfg.Models))
	for id := range cfg.Models {
		ids = append(ids, id)
		registry.Set(NewModelInstance(cfg.Models[id], id, ""))
	}
	sort.Strings(ids)

	m.mu.Lock()
	oldBackends := m.backends
	m.registry = registry
	m.backends = backends
	m.mu.Unlock()

	if err := oldBackends.Close(); err != nil {
		slog.Warn("Failed to close previous backends", "error", err)
	}

	var errs []error
	for _, id := range ids {
		instance, _ := registry.Get(id)
		if err := m.exportModel(ctx, cfg, backends, instance, modelsPath); err != nil {
			instance.SetError(err)
			slog.Error("Model export failed", "model_id", id, "error", err)
			errs = append(errs, fmt.Errorf("model %s: %w", id, err))
			continue
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) exportModel(ctx context.Context, cfg *config.Config, backends *backend.Registry, instance *ModelInstance, modelsPath string) error {
	mc := instance.Config

	src, err := mc.GetSource()
	if err != nil {
		return fmt.Errorf("failed to get model source: %w", err)
	}

	downloader, err := m.downloader(ctx, src.Type())
	if err != nil {
		return fmt.Errorf("failed to get downloader: %w", err)
	}

	path, cached, err := downloader.Download(ctx, &mc, modelsPath)
	if err != nil {
		return fmt.Errorf("failed to download checkpoint into %s: %w", modelsPath, err)
	}
	instance.SetCheckpoint(path)
	slog.Debug("Checkpoint resolved", "model_id", instance.ID, "path", path, "cached", cached)

	ckpt, err := export.Load(path)
	if err != nil {
		return err
	}

	b, err := m.backendFor(backends, backend.BackendProvider(mc.Backend), cfg.Export)
	if err != nil {
		return err
	}

	exporter := export.NewExporter(b, export.WithValidator("onnx", onnxmeta.Validate))

	opts := export.OptionsFromMap(mc.Options)
	opts.Force = mc.Force

	instance.SetStatus(ModelStatusExporting)
	start := time.Now()
	artifact, err := exporter.Export(ctx, ckpt, mc.Format, opts)
	m.metrics.ObserveExport(mc.Format, artifact != nil && artifact.Skipped, err, time.Since(start))
	if err != nil {
		return err
	}

	instance.SetExported(artifact)
	slog.Info("Model exported", "model_id", instance.ID, "artifact", artifact.Path, "skipped", artifact.Skipped)

	return nil
}

func (m *Manager) backendFor(backends *backend.Registry, provider backend.BackendProvider, cfg config.ExportConfig) (backend.Backend, error) {
	if b, ok := backends.Get(provider); ok {
		return b, nil
	}

	b, err := m.newBackend(provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", provider, err)
	}
	if err := backends.Register(b); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

// Close releases the backends.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.backends.Close()
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. SCANBILL_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.ScanbillModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
