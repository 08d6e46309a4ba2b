package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

const markerSuffix = ".scanbill.json"

// marker records what produced an artifact so an identical re-run can be skipped.
type marker struct {
	CheckpointSHA256 string         `json:"checkpoint_sha256"`
	Format           string         `json:"format"`
	Parameters       map[string]any `json:"parameters"`
}

func markerPath(artifact string) string {
	return artifact + markerSuffix
}

func (m marker) encode() []byte {
	// map keys are marshaled in sorted order, so equal markers encode equally.
	data, _ := json.Marshal(m)
	return data
}

// upToDate reports whether the artifact exists and its marker matches m.
func (m marker) upToDate(artifact string) bool {
	if size, err := artifactSize(artifact); err != nil || size == 0 {
		return false
	}

	content, err := os.ReadFile(markerPath(artifact))
	if err != nil {
		slog.Debug("Export marker missing or unreadable", "path", markerPath(artifact), "error", err)
		return false
	}

	if !bytes.Equal(bytes.TrimSpace(content), m.encode()) {
		slog.Info("Export inputs changed (marker mismatch), will re-export", "artifact", artifact)
		return false
	}

	return true
}

func (m marker) write(artifact string) {
	if err := os.WriteFile(markerPath(artifact), append(m.encode(), '\n'), 0o644); err != nil {
		slog.Warn("Failed to write export marker", "path", markerPath(artifact), "error", err)
	}
}

// clearMarker removes the artifact's marker. An export about to overwrite the
// artifact must not leave the old marker vouching for the new content.
func clearMarker(artifact string) error {
	if err := os.Remove(markerPath(artifact)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove export marker: %w", err)
	}
	return nil
}
