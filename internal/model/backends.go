package model

import (
	"fmt"
	"os"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/backend/ultralytics"
	"github.com/ekisa-team/scanbill/internal/backend/yolocli"
	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/envvar"
)

// BackendFactory builds the exporter backend for a provider.
type BackendFactory func(provider backend.BackendProvider, cfg config.ExportConfig) (backend.Backend, error)

// NewBackend is the default BackendFactory. SCANBILL_PYTHON overrides the
// configured interpreter.
func NewBackend(provider backend.BackendProvider, cfg config.ExportConfig) (backend.Backend, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	switch provider {
	case backend.BackendProviderUltralytics:
		python := cfg.Python
		if p := os.Getenv(envvar.ScanbillPython); p != "" {
			python = p
		}
		return ultralytics.NewBackend(python, timeout)
	case backend.BackendProviderYoloCLI:
		return yolocli.NewBackend(cfg.YoloBin, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", backend.ErrBackendNotFound, provider)
	}
}
