package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/metrics"
	"github.com/ekisa-team/scanbill/internal/model"
	grpcserver "github.com/ekisa-team/scanbill/internal/server/grpc"
	httpserver "github.com/ekisa-team/scanbill/internal/server/http"
	"github.com/ekisa-team/scanbill/internal/service"
)

const shutdownTimeout = 10 * time.Second

var (
	serveHTTPPort int
	serveGRPCPort int
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Export the configured models and serve the scanner and billing API",
	Description: `Exports every configured model, loads detector.model into onnxruntime and serves the HTTP API and the gRPC health service.
				Config changes are picked up without a restart.`,
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "http-port", Usage: "HTTP port to listen on. Defaults to server.http_port", Destination: &serveHTTPPort},
		&cli.IntFlag{Name: "grpc-port", Usage: "gRPC port to listen on. Defaults to server.grpc_port", Destination: &serveGRPCPort},
	},
	Action: serve,
}

// runtimeState applies a config to the running services. Applies are
// serialized and always use the newest config seen, whatever order the
// initial load and reloads reach the lock in.
type runtimeState struct {
	mu      sync.Mutex
	latest  atomic.Pointer[config.Config]
	manager *model.Manager
	scanner *service.Scanner
	health  *grpcserver.Server
}

// apply records cfg as the newest config and applies it.
func (s *runtimeState) apply(ctx context.Context, cfg *config.Config) {
	s.latest.Store(cfg)
	s.refresh(ctx)
}

// start applies the initial config unless a reload already delivered a
// newer one.
func (s *runtimeState) start(ctx context.Context, cfg *config.Config) {
	s.latest.CompareAndSwap(nil, cfg)
	s.refresh(ctx)
}

func (s *runtimeState) refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.latest.Load()
	if err := s.manager.ExportModelsFromConfig(ctx, cfg); err != nil {
		slog.Error("Some models failed to export", "error", err)
	}
	s.health.UpdateModels(s.manager.Snapshots())
	s.scanner.SetCatalog(newCatalog(cfg.Billing))

	var next service.Detector
	path, err := s.manager.ArtifactPath(cfg.Detector.Model)
	if err == nil {
		var d detectorCloser
		if d, err = openDetector(cfg.Detector, path); err == nil {
			next = d
		}
	}
	if err != nil {
		slog.Error("Detector unavailable", "model", cfg.Detector.Model, "error", err)
	}

	prev := s.scanner.SetDetector(next)
	if c, ok := prev.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close previous detector", "error", err)
		}
	}
}

func (s *runtimeState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.scanner.SetDetector(nil).(interface{ Close() error }); ok {
		c.Close()
	}
	if err := s.manager.Close(); err != nil {
		slog.Warn("Failed to close model manager", "error", err)
	}
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	state := &runtimeState{
		manager: model.NewManager(model.WithBackendFactory(newBackend), model.WithMetrics(m)),
		scanner: service.NewScanner(nil, nil, m),
		health:  grpcserver.NewServer(),
	}

	cfg, watcher, err := watchConfig(ctx, state)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	bills, err := newStore(cfg.Server.Redis)
	if err != nil {
		return err
	}
	defer bills.Close()
	if p, ok := bills.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("bill store unreachable: %w", err)
		}
	}

	billingService := service.NewBilling(bills, nil, taxRate(cfg.Billing), m)

	state.start(ctx, cfg)
	defer detect.Shutdown()
	defer state.close()

	httpPort, grpcPort := cfg.Server.HTTPPort, cfg.Server.GRPCPort
	if serveHTTPPort != 0 {
		httpPort = serveHTTPPort
	}
	if serveGRPCPort != 0 {
		grpcPort = serveGRPCPort
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           httpserver.NewHandler(state.scanner, billingService, state.manager, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := state.health.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err = <-errCh:
		slog.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("HTTP shutdown incomplete", "error", serr)
	}
	state.health.Stop()

	return err
}

// watchConfig loads the config and reapplies it on every change. Without a
// config file the built-in defaults are served and nothing is watched.
func watchConfig(ctx context.Context, state *runtimeState) (*config.Config, *config.Watcher, error) {
	if _, err := os.Stat(flagConfigPath); errors.Is(err, fs.ErrNotExist) {
		slog.Info("No config file, using defaults", "config", flagConfigPath)
		return config.Default(), nil, nil
	}

	watcher, err := config.NewWatcher(flagConfigPath, flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}
		slog.Info("Config changed, reapplying", "config", flagConfigPath)
		state.apply(ctx, cfg)
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Config loaded", "config", flagConfigPath)
	return watcher.Snapshot(), watcher, nil
}
