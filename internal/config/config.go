package config

import (
	"errors"
	"fmt"
	"time"
)

// SourceType represents the type of checkpoint source.
type SourceType string

const (
	// SourceTypeLocal represents a checkpoint already present on disk.
	SourceTypeLocal SourceType = "local"

	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Config holds the main configuration for the application.
type Config struct {
	Version  string                 `json:"version"            yaml:"version"`
	Storage  StorageConfig          `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Export   ExportConfig           `json:"export,omitempty"   yaml:"export,omitempty"`
	Models   map[string]ModelConfig `json:"models"             yaml:"models"`
	Detector DetectorConfig         `json:"detector,omitempty" yaml:"detector,omitempty"`
	Billing  BillingConfig          `json:"billing,omitempty"  yaml:"billing,omitempty"`
	Server   ServerConfig           `json:"server,omitempty"   yaml:"server,omitempty"`
}

// StorageConfig holds configuration for downloaded checkpoints.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ExportConfig selects and tunes the external export toolchain.
type ExportConfig struct {
	Backend string `json:"backend,omitempty"  yaml:"backend,omitempty"`
	Python  string `json:"python,omitempty"   yaml:"python,omitempty"`
	YoloBin string `json:"yolo_bin,omitempty" yaml:"yolo_bin,omitempty"`
	Timeout string `json:"timeout,omitempty"  yaml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to DefaultExportTimeout.
func (e ExportConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return DefaultExportTimeout, nil
	}

	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid export timeout %q: %w", e.Timeout, err)
	}

	return d, nil
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source  SourceConfig   `json:"source"            yaml:"source"`
	Format  string         `json:"format,omitempty"  yaml:"format,omitempty"`
	Backend string         `json:"backend,omitempty" yaml:"backend,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Force   bool           `json:"force,omitempty"   yaml:"force,omitempty"`
	Tags    []string       `json:"tags,omitempty"    yaml:"tags,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// DetectorConfig holds configuration for running the exported model.
type DetectorConfig struct {
	Model          string   `json:"model,omitempty"           yaml:"model,omitempty"`
	LibraryPath    string   `json:"library_path,omitempty"    yaml:"library_path,omitempty"`
	InputWidth     int      `json:"input_width,omitempty"     yaml:"input_width,omitempty"`
	InputHeight    int      `json:"input_height,omitempty"    yaml:"input_height,omitempty"`
	ScoreThreshold float64  `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
	NMSThreshold   float64  `json:"nms_threshold,omitempty"   yaml:"nms_threshold,omitempty"`
	Layout         string   `json:"layout,omitempty"          yaml:"layout,omitempty"`
	ClassNames     []string `json:"class_names,omitempty"     yaml:"class_names,omitempty"`
}

// BillingConfig holds tax and catalog configuration.
type BillingConfig struct {
	TaxRate *float64                `json:"tax_rate,omitempty" yaml:"tax_rate,omitempty"`
	Catalog map[string]CatalogEntry `json:"catalog,omitempty"  yaml:"catalog,omitempty"`
}

// CatalogEntry is the price list entry for a detected class.
type CatalogEntry struct {
	Name  string  `json:"name"  yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
}

// ServerConfig holds configuration for the network surfaces.
type ServerConfig struct {
	HTTPPort int         `json:"http_port,omitempty" yaml:"http_port,omitempty"`
	GRPCPort int         `json:"grpc_port,omitempty" yaml:"grpc_port,omitempty"`
	Redis    RedisConfig `json:"redis,omitempty"     yaml:"redis,omitempty"`
}

// RedisConfig holds the bill store connection.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"     yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty"       yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"   yaml:"prefix,omitempty"`
	TTL      string `json:"ttl,omitempty"      yaml:"ttl,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a checkpoint.
type ModelSource interface {
	Type() SourceType
}

// LocalSource is a checkpoint file on the local filesystem.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Filename      string   `json:"filename"                 yaml:"filename"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	switch {
	case m.Source.Local != nil && m.Source.HuggingFace != nil:
		return nil, errors.New("only one source may be configured per model")
	case m.Source.Local != nil:
		return *m.Source.Local, nil
	case m.Source.HuggingFace != nil:
		return *m.Source.HuggingFace, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetLocalSource sets the local source.
func (m *ModelConfig) SetLocalSource(source LocalSource) {
	m.Source = SourceConfig{Local: &source}
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source = SourceConfig{HuggingFace: &source}
}
