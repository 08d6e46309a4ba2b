package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
version: "1"
storage:
  models_dir: /tmp/scanbill-models
export:
  backend: yolo-cli
  timeout: 2m
models:
  yolov8n:
    source:
      local:
        path: public/models/yolov8n.pt
    options:
      imgsz: 640
      dynamic: true
  yolov8s:
    source:
      huggingface:
        repo: Ultralytics/YOLOv8
        filename: yolov8s.pt
    format: torchscript
    backend: ultralytics
detector:
  score_threshold: 0.4
billing:
  tax_rate: 0
  catalog:
    apple:
      name: Green Apple
      price: 2.5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, sampleConfig), "")
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "/tmp/scanbill-models", cfg.Storage.ModelsDir)
	require.Len(t, cfg.Models, 2)

	n := cfg.Models["yolov8n"]
	assert.Equal(t, "onnx", n.Format)
	assert.Equal(t, "yolo-cli", n.Backend, "model inherits export backend")
	assert.Equal(t, 640, n.Options["imgsz"])
	assert.Equal(t, true, n.Options["dynamic"])

	s := cfg.Models["yolov8s"]
	assert.Equal(t, "torchscript", s.Format)
	assert.Equal(t, "ultralytics", s.Backend)

	timeout, err := cfg.Export.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, timeout)

	assert.InDelta(t, 0.4, cfg.Detector.ScoreThreshold, 1e-9)
	assert.InDelta(t, 0.45, cfg.Detector.NMSThreshold, 1e-9)
	assert.Equal(t, 640, cfg.Detector.InputWidth)
	assert.Len(t, cfg.Detector.ClassNames, 80)

	require.NotNil(t, cfg.Billing.TaxRate)
	assert.Zero(t, *cfg.Billing.TaxRate, "explicit zero tax is kept")
	assert.Equal(t, CatalogEntry{Name: "Green Apple", Price: 2.5}, cfg.Billing.Catalog["apple"])

	assert.Equal(t, DefaultHTTPPort(), cfg.Server.HTTPPort)
	assert.Equal(t, "scanbill:bill:", cfg.Server.Redis.Prefix)
}

func TestLoadAndValidate_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"missing models": `version: "1"`,
		"unknown field": `
version: "1"
models:
  m:
    source: {local: {path: a.pt}}
    colour: blue
`,
		"unknown backend": `
version: "1"
models:
  m:
    source: {local: {path: a.pt}}
    backend: tensorflow
`,
		"two sources": `
version: "1"
models:
  m:
    source:
      local: {path: a.pt}
      huggingface: {repo: a/b, filename: a.pt}
`,
		"bad timeout": `
version: "1"
export: {timeout: soon}
models:
  m:
    source: {local: {path: a.pt}}
`,
		"not yaml": "version: [",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAndValidate(writeConfig(t, body), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.NoError(t, err)

	m, ok := cfg.Models[DefaultModelID]
	require.True(t, ok)
	assert.Equal(t, DefaultFormat, m.Format)
	assert.Equal(t, DefaultBackend, m.Backend)

	src, err := m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, LocalSource{Path: DefaultCheckpoint}, src)
}

func TestGetSource(t *testing.T) {
	var m ModelConfig
	_, err := m.GetSource()
	assert.Error(t, err)

	m.SetHuggingFaceSource(HuggingFaceSource{Repo: "a/b", Filename: "x.pt"})
	src, err := m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHuggingFace, src.Type())

	m.SetLocalSource(LocalSource{Path: "x.pt"})
	src, err = m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeLocal, src.Type())
	assert.Nil(t, m.Source.HuggingFace)
}

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, "", func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Len(t, w.Snapshot().Models, 2)

	updated := `
version: "1"
models:
  only:
    source: {local: {path: only.pt}}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Contains(t, cfg.Models, "only")
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	assert.Contains(t, w.Snapshot().Models, "only")
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_InvalidReloadKeepsSnapshot(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	failures := make(chan error, 4)
	w, err := NewWatcher(path, "", func(_ *Config, err error) {
		if err != nil {
			failures <- err
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("version: 2"), 0o644))

	select {
	case err := <-failures:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload failure was not reported")
	}

	assert.Len(t, w.Snapshot().Models, 2)
}
