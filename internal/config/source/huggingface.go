package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	markerFilename    = ".scanbill-downloaded"
)

// HuggingFaceDownloader downloads a checkpoint from Hugging Face through the `hf` CLI.
type HuggingFaceDownloader struct {
	runner     backend.CommandRunner
	binary     string
	retryDelay time.Duration
	maxRetries int
	timeout    time.Duration
}

// NewHuggingFaceDownloader creates a downloader that runs `hf` through runner.
func NewHuggingFaceDownloader(runner backend.CommandRunner) *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		runner:     runner,
		binary:     "hf",
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
	}
}

// Download downloads the Hugging Face checkpoint to the local cache.
func (d *HuggingFaceDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	hfSource, ok := source.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" {
		return "", false, fmt.Errorf("invalid repo name: %q", hfSource.Repo)
	}
	if hfSource.Filename == "" {
		return "", false, fmt.Errorf("no checkpoint filename configured for %s", repo)
	}

	fullPath := filepath.Join(targetDir, repo)
	checkpoint := filepath.Join(fullPath, hfSource.Filename)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(repo, hfSource.Revision, hfSource.Filename)

	if !hfSource.ForceDownload {
		if _, err := os.Stat(checkpoint); err == nil && !d.shouldRedownload(markerPath, markerContent) {
			slog.Info("Checkpoint already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", checkpoint)
			return checkpoint, true, nil
		}
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := d.buildArgs(hfSource, repo, fullPath)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading checkpoint", "repo", repo, "file", hfSource.Filename, "path", fullPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		stdout, stderr, err := d.runner.Run(attemptCtx, d.binary, args, nil)
		attemptErr := attemptCtx.Err()
		cancel()

		if err == nil {
			if _, statErr := os.Stat(checkpoint); statErr != nil {
				return "", false, fmt.Errorf("download of %s finished without %s: %w", repo, hfSource.Filename, statErr)
			}

			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			} else {
				slog.Debug("Download marker updated", "path", markerPath)
			}

			slog.Info("Checkpoint downloaded successfully", "repo", repo, "path", checkpoint, "attempt", attempt+1)
			return checkpoint, false, nil
		}

		lastErr = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
		slog.Error("Failed to download checkpoint", "repo", repo, "attempt", attempt+1, "error", err, "output", string(stdout))

		if errors.Is(attemptErr, context.DeadlineExceeded) {
			slog.Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		} else if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}
	}

	return "", false, lastErr
}

func (d *HuggingFaceDownloader) buildArgs(hfSource config.HuggingFaceSource, repo, fullPath string) []string {
	args := []string{
		"download",
		repo,
		hfSource.Filename,
		"--local-dir", fullPath,
	}

	if hfSource.Revision != "" {
		args = append(args, "--revision", hfSource.Revision)
	}
	if hfSource.RepoType != "" {
		args = append(args, "--repo-type", hfSource.RepoType)
	}
	for _, inc := range hfSource.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range hfSource.Exclude {
		args = append(args, "--exclude", exc)
	}
	if hfSource.ForceDownload {
		args = append(args, "--force-download")
	}
	if hfSource.Token != "" {
		args = append(args, "--token", hfSource.Token)
	}
	if hfSource.MaxWorkers > 0 {
		args = append(args, "--max-workers", fmt.Sprintf("%d", hfSource.MaxWorkers))
	}

	return args
}

// markerContent generates the expected content of the marker file.
// Used to detect if we need to redownload due to config change.
func (d *HuggingFaceDownloader) markerContent(repo, revision, filename string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\nfile: %s\n", repo, revision, filename)
}

// shouldRedownload checks if the checkpoint should be redownloaded by comparing marker content.
func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Model config changed (marker mismatch), will redownload",
			"marker_path", markerPath,
			"expected_snippet", expectedContent,
			"actual_snippet", string(content))
		return true
	}

	return false
}
