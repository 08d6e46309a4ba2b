package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/config"
)

// ErrUnsupportedSource is returned for a source type without a downloader.
var ErrUnsupportedSource = errors.New("unsupported model source")

// Downloader makes a checkpoint available on the local filesystem.
type Downloader interface {
	// Download returns the checkpoint path and whether it was already cached.
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for the given source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeLocal:
		return &LocalDownloader{}, nil
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(backend.ExecCommandRunner{}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, sourceType)
	}
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	return nil
}
