package yolocli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBackend_Export(t *testing.T) {
	runner := new(backendtest.Runner)
	runner.On("Run", mock.Anything, "/usr/local/bin/yolo",
		[]string{"export", "model=/m/yolov8n.pt", "format=onnx", "dynamic=True", "imgsz=640", "opset=12"}, nil).
		Return([]byte("Export complete (3.1s)\nResults saved to /m\n"), []byte(nil), nil)

	b := NewBackendWithExecutor(backend.NewExecutorWithRunner("/usr/local/bin/yolo", time.Minute, runner))
	resp, err := b.Export(context.Background(), &backend.Request{
		CheckpointPath: "/m/yolov8n.pt",
		Format:         "onnx",
		Parameters:     map[string]any{"opset": 12, "imgsz": 640, "dynamic": true},
	})

	require.NoError(t, err)
	assert.Empty(t, resp.ArtifactPath)
	assert.Equal(t, backend.BackendProviderYoloCLI, resp.Metadata.Provider)
	assert.Contains(t, resp.Metadata.BackendSpecific["stdout"], "Export complete")
	runner.AssertExpectations(t)
}

func TestBackend_ExportFailure(t *testing.T) {
	runner := new(backendtest.Runner)
	runner.On("Run", mock.Anything, "yolo", mock.Anything, nil).
		Return([]byte(nil), []byte("ValueError: Invalid export format='caffe'"), errors.New("exit status 1"))

	b := NewBackendWithExecutor(backend.NewExecutorWithRunner("yolo", time.Minute, runner))
	_, err := b.Export(context.Background(), &backend.Request{CheckpointPath: "a.pt", Format: "caffe"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid export format")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "False", formatValue(false))
	assert.Equal(t, "[640,480]", formatValue([]int{640, 480}))
	assert.Equal(t, "cpu", formatValue("cpu"))
	assert.Equal(t, "0.5", formatValue(0.5))
}
