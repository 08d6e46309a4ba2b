package model

import (
	"sync"
	"time"

	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/export"
)

// ModelStatus is the export state of a configured model.
type ModelStatus string

const (
	// ModelStatusPending indicates the model is registered but not exported yet.
	ModelStatusPending ModelStatus = "pending"

	// ModelStatusExporting indicates the framework export is running.
	ModelStatusExporting ModelStatus = "exporting"

	// ModelStatusExported indicates the artifact is on disk and current.
	ModelStatusExported ModelStatus = "exported"

	// ModelStatusFailed indicates the last export attempt failed.
	ModelStatusFailed ModelStatus = "failed"
)

// ModelInstance tracks one configured model through export.
type ModelInstance struct {
	mu sync.RWMutex

	ID             string
	Config         config.ModelConfig
	CheckpointPath string

	status     ModelStatus
	artifact   *export.Artifact
	err        string
	exportedAt *time.Time
}

// NewModelInstance creates a pending instance.
func NewModelInstance(cfg config.ModelConfig, id, checkpointPath string) *ModelInstance {
	return &ModelInstance{
		ID:             id,
		Config:         cfg,
		CheckpointPath: checkpointPath,
		status:         ModelStatusPending,
	}
}

// SetStatus sets the status of the model instance.
func (mi *ModelInstance) SetStatus(status ModelStatus) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.status = status
}

// SetCheckpoint records where the checkpoint was resolved to.
func (mi *ModelInstance) SetCheckpoint(path string) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.CheckpointPath = path
}

// SetExported records a successful export.
func (mi *ModelInstance) SetExported(a *export.Artifact) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	now := time.Now()
	mi.status = ModelStatusExported
	mi.artifact = a
	mi.err = ""
	mi.exportedAt = &now
}

// SetError records a failed export.
func (mi *ModelInstance) SetError(err error) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.status = ModelStatusFailed
	mi.err = err.Error()
}

// Status returns the current status.
func (mi *ModelInstance) Status() ModelStatus {
	mi.mu.RLock()
	defer mi.mu.RUnlock()
	return mi.status
}

// ArtifactPath returns the exported artifact, or ErrNotExported.
func (mi *ModelInstance) ArtifactPath() (string, error) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	if mi.status != ModelStatusExported || mi.artifact == nil {
		return "", ErrNotExported
	}
	return mi.artifact.Path, nil
}

// Snapshot is a point-in-time copy of an instance, safe to serialize.
type Snapshot struct {
	ID         string           `json:"id"`
	Format     string           `json:"format"`
	Backend    string           `json:"backend"`
	Checkpoint string           `json:"checkpoint"`
	Status     ModelStatus      `json:"status"`
	Artifact   *export.Artifact `json:"artifact,omitempty"`
	Error      string           `json:"error,omitempty"`
	ExportedAt *time.Time       `json:"exported_at,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
}

// Snapshot returns a copy of the instance state.
func (mi *ModelInstance) Snapshot() Snapshot {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	s := Snapshot{
		ID:         mi.ID,
		Format:     mi.Config.Format,
		Backend:    mi.Config.Backend,
		Checkpoint: mi.CheckpointPath,
		Status:     mi.status,
		Error:      mi.err,
		ExportedAt: mi.exportedAt,
		Tags:       mi.Config.Tags,
	}
	if mi.artifact != nil {
		a := *mi.artifact
		s.Artifact = &a
	}
	return s
}
