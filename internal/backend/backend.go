package backend

import (
	"context"
	"time"
)

// BackendProvider is a string identifier for an exporter backend.
type BackendProvider string

const (
	// BackendProviderUltralytics drives the framework's Python API.
	BackendProviderUltralytics BackendProvider = "ultralytics"

	// BackendProviderYoloCLI drives the framework's `yolo` command line.
	BackendProviderYoloCLI BackendProvider = "yolo-cli"
)

// Backend converts a checkpoint into an inference format by delegating to an
// external machine-learning framework.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Export runs the external export routine and waits for it to finish.
	Export(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for an export call.
type Request struct {
	// CheckpointPath is the path to the checkpoint file.
	CheckpointPath string

	// Format is the target format identifier understood by the framework.
	Format string

	// Parameters are passed through to the framework's export routine.
	Parameters map[string]any
}

// Response contains the result of an export operation.
type Response struct {
	// ArtifactPath is the output location reported by the framework. It may
	// be empty when the framework does not report one.
	ArtifactPath string

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Checkpoint      string          `json:"checkpoint"`
	Format          string          `json:"format"`
	Timestamp       time.Time       `json:"timestamp"`
	Duration        time.Duration   `json:"duration"`
	BackendSpecific map[string]any  `json:"backend_specific"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// Data is the chunk content.
	Data []byte

	// Done indicates if this is the final chunk.
	Done bool

	// Error if something went wrong.
	Error error
}
