package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ekisa-team/scanbill/internal/xfs"
)

// Checkpoint is a handle on a pretrained checkpoint file. The content is
// opaque; only the framework interprets it.
type Checkpoint struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	SHA256  string    `json:"sha256"`
	ModTime time.Time `json:"mod_time"`
}

// Load produces a handle for the checkpoint at path. It fails when the path
// does not exist or is not a regular file.
func Load(path string) (*Checkpoint, error) {
	abs, err := filepath.Abs(xfs.ExpandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	sum, err := xfs.FileSHA256(abs)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	return &Checkpoint{
		Path:    abs,
		Size:    info.Size(),
		SHA256:  sum,
		ModTime: info.ModTime(),
	}, nil
}
