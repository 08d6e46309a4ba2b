package source

import (
	"context"
	"fmt"

	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/xfs"
)

// LocalDownloader resolves checkpoints that already live on disk. The file
// itself is not checked here; loading the checkpoint reports a missing file.
type LocalDownloader struct{}

// Download returns the configured path with a leading tilde expanded.
func (d *LocalDownloader) Download(_ context.Context, modelConfig *config.ModelConfig, _ string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	local, ok := src.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	return xfs.ExpandTilde(local.Path), true, nil
}
