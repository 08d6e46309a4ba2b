package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/envvar"
	"github.com/ekisa-team/scanbill/internal/onnxmeta"
	"github.com/ekisa-team/scanbill/internal/store"
)

// detectorOptions maps the detector config onto detect.Options. Class
// names embedded in the model win over the configured list, since they
// describe what the model was trained on.
func detectorOptions(cfg config.DetectorConfig, modelPath string) (detect.Options, error) {
	layout, err := detect.ParseLayout(cfg.Layout)
	if err != nil {
		return detect.Options{}, err
	}

	libraryPath := cfg.LibraryPath
	if p := os.Getenv(envvar.ScanbillORTLibrary); p != "" {
		libraryPath = p
	}

	names := cfg.ClassNames
	if info, err := onnxmeta.Inspect(modelPath); err == nil {
		if embedded := info.ClassNames(); len(embedded) > 0 {
			names = embedded
		}
	} else {
		slog.Warn("Could not read model metadata", "model", modelPath, "error", err)
	}

	return detect.Options{
		ModelPath:      modelPath,
		LibraryPath:    libraryPath,
		InputWidth:     cfg.InputWidth,
		InputHeight:    cfg.InputHeight,
		ScoreThreshold: float32(cfg.ScoreThreshold),
		NMSThreshold:   float32(cfg.NMSThreshold),
		Layout:         layout,
		ClassNames:     names,
	}, nil
}

type detectorCloser interface {
	Detect(ctx context.Context, img image.Image) ([]detect.Detection, error)
	Close() error
}

// openDetector is swapped in tests; the real one needs the onnxruntime
// shared library.
var openDetector = func(cfg config.DetectorConfig, modelPath string) (detectorCloser, error) {
	opts, err := detectorOptions(cfg, modelPath)
	if err != nil {
		return nil, err
	}
	d, err := detect.New(opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newCatalog(cfg config.BillingConfig) *billing.Catalog {
	entries := make(map[string]billing.ProductInfo, len(cfg.Catalog))
	for class, e := range cfg.Catalog {
		entries[class] = billing.ProductInfo{Name: e.Name, Price: e.Price}
	}
	return billing.NewCatalog(entries)
}

func taxRate(cfg config.BillingConfig) float64 {
	if cfg.TaxRate == nil {
		return config.DefaultTaxRate
	}
	return *cfg.TaxRate
}

// newStore opens Redis when an address is configured and an in-process
// store otherwise. SCANBILL_REDIS_ADDR overrides the configured address.
func newStore(cfg config.RedisConfig) (store.BillStore, error) {
	addr := cfg.Addr
	if a := os.Getenv(envvar.ScanbillRedisAddr); a != "" {
		addr = a
	}
	if addr == "" {
		slog.Debug("No Redis address configured, bills are kept in memory")
		return store.NewMemory(), nil
	}

	opts := []store.Option{store.WithPrefix(cfg.Prefix)}
	if cfg.TTL != "" {
		ttl, err := time.ParseDuration(cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis ttl %q: %w", cfg.TTL, err)
		}
		opts = append(opts, store.WithTTL(ttl))
	}

	slog.Info("Using Redis bill store", "addr", addr, "prefix", cfg.Prefix)
	return store.NewRedis(addr, cfg.Password, cfg.DB, opts...), nil
}
