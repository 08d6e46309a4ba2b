package export

import "errors"

// Error definitions for the export package.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrNotAFile           = errors.New("checkpoint is not a regular file")
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrExportFailed       = errors.New("export failed")
	ErrEmptyArtifact      = errors.New("export produced no artifact")
	ErrInvalidArtifact    = errors.New("exported artifact failed validation")
)
