package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// DefaultCheckpoint is the checkpoint exported when nothing else is configured.
	DefaultCheckpoint = "public/models/yolov8n.pt"

	// DefaultModelID is the registry id of the default checkpoint.
	DefaultModelID = "yolov8n"

	// DefaultFormat is the export target when a model does not name one.
	DefaultFormat = "onnx"

	// DefaultBackend is the exporter used when neither the model nor the export section names one.
	DefaultBackend = "ultralytics"

	// DefaultExportTimeout bounds a single export run.
	DefaultExportTimeout = 10 * time.Minute

	// DefaultTaxRate is applied to bills when billing.tax_rate is unset.
	DefaultTaxRate = 0.1
)

// DefaultConfigPath returns the default path for SCANBILL config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scanbill", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "scanbill")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "scanbill")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "scanbill")
		}
		return filepath.Join(home, ".config", "scanbill")
	}
}

// DefaultModelsPath returns the default path for SCANBILL models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scanbill", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "scanbill", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "scanbill", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "scanbill", "models")
		}
		return filepath.Join(home, ".cache", "scanbill", "models")
	}
}

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return 8080
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return 9090
}

// Default returns the configuration used when no config file exists: the
// stock checkpoint exported to ONNX with the ultralytics backend.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Models: map[string]ModelConfig{
			DefaultModelID: {
				Source: SourceConfig{Local: &LocalSource{Path: DefaultCheckpoint}},
				Format: DefaultFormat,
			},
		},
	}
	ApplyDefaults(cfg)

	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Export.Backend == "" {
		cfg.Export.Backend = DefaultBackend
	}
	if cfg.Export.Python == "" {
		cfg.Export.Python = "python3"
	}
	if cfg.Export.YoloBin == "" {
		cfg.Export.YoloBin = "yolo"
	}

	for id, m := range cfg.Models {
		if m.Format == "" {
			m.Format = DefaultFormat
		}
		if m.Backend == "" {
			m.Backend = cfg.Export.Backend
		}
		cfg.Models[id] = m
	}

	d := &cfg.Detector
	if d.Model == "" {
		d.Model = DefaultModelID
	}
	if d.InputWidth == 0 {
		d.InputWidth = 640
	}
	if d.InputHeight == 0 {
		d.InputHeight = 640
	}
	if d.ScoreThreshold == 0 {
		d.ScoreThreshold = 0.5
	}
	if d.NMSThreshold == 0 {
		d.NMSThreshold = 0.45
	}
	if d.Layout == "" {
		d.Layout = "yolov8"
	}
	if len(d.ClassNames) == 0 {
		d.ClassNames = append([]string(nil), COCOClassNames...)
	}

	if cfg.Billing.TaxRate == nil {
		rate := DefaultTaxRate
		cfg.Billing.TaxRate = &rate
	}
	if cfg.Billing.Catalog == nil {
		cfg.Billing.Catalog = DefaultCatalog()
	}

	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = DefaultHTTPPort()
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = DefaultGRPCPort()
	}
	if cfg.Server.Redis.Prefix == "" {
		cfg.Server.Redis.Prefix = "scanbill:bill:"
	}
}

// DefaultCatalog returns the stock price list.
func DefaultCatalog() map[string]CatalogEntry {
	return map[string]CatalogEntry{
		"apple":     {Name: "Apple", Price: 1.99},
		"banana":    {Name: "Banana", Price: 0.99},
		"orange":    {Name: "Orange", Price: 1.49},
		"milk":      {Name: "Milk", Price: 3.99},
		"bread":     {Name: "Bread", Price: 2.49},
		"eggs":      {Name: "Eggs", Price: 4.99},
		"water":     {Name: "Water Bottle", Price: 1.29},
		"soda":      {Name: "Soda Can", Price: 1.99},
		"chips":     {Name: "Potato Chips", Price: 3.49},
		"chocolate": {Name: "Chocolate Bar", Price: 2.99},
	}
}

// COCOClassNames are the labels of the stock YOLOv8 checkpoints, in output order.
var COCOClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}
