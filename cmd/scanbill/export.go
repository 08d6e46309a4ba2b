package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/backend"
	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/export"
	"github.com/ekisa-team/scanbill/internal/model"
	"github.com/ekisa-team/scanbill/internal/onnxmeta"
)

// newBackend builds exporter backends; tests swap it for a fake.
var newBackend model.BackendFactory = model.NewBackend

var (
	exportFormat   string
	exportBackend  string
	exportAll      bool
	exportJSON     bool
	exportForce    bool
	exportDevice   string
	exportImgSize  int
	exportOpset    int
	exportBatch    int
	exportHalf     bool
	exportInt8     bool
	exportDynamic  bool
	exportSimplify bool
)

var exportCommand = &cli.Command{
	Name:      "export",
	Usage:     "Export a checkpoint to an inference format",
	ArgsUsage: "[checkpoint]",
	Description: `Loads the checkpoint (default ` + config.DefaultCheckpoint + `) and has the framework export it.
				The artifact is written next to the checkpoint following the framework's naming, e.g. yolov8n.pt -> yolov8n.onnx.
				A second run with the same checkpoint, format and options is skipped unless --force is given.
				Supported formats: ` + strings.Join(export.Formats(), ", "),
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Target format", Value: config.DefaultFormat, Destination: &exportFormat},
		&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "ultralytics or yolo-cli. Defaults to export.backend from the config", Destination: &exportBackend},
		&cli.BoolFlag{Name: "all", Usage: "Export every model in the config instead of one checkpoint", Destination: &exportAll},
		&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON", Destination: &exportJSON},
		&cli.BoolFlag{Name: "force", Usage: "Export even when the artifact is up to date", Destination: &exportForce},
		&cli.IntFlag{Name: "imgsz", Usage: "Input image size", Destination: &exportImgSize},
		&cli.BoolFlag{Name: "half", Usage: "FP16 quantization", Destination: &exportHalf},
		&cli.BoolFlag{Name: "int8", Usage: "INT8 quantization", Destination: &exportInt8},
		&cli.BoolFlag{Name: "dynamic", Usage: "Dynamic input axes", Destination: &exportDynamic},
		&cli.BoolFlag{Name: "simplify", Usage: "Simplify the ONNX graph", Destination: &exportSimplify},
		&cli.IntFlag{Name: "opset", Usage: "ONNX opset version", Destination: &exportOpset},
		&cli.IntFlag{Name: "batch", Usage: "Batch size", Destination: &exportBatch},
		&cli.StringFlag{Name: "device", Usage: "Device to export on, e.g. cpu or 0", Destination: &exportDevice},
	},
	Action: func(cCtx *cli.Context) error {
		if exportAll {
			return exportConfigured(cCtx)
		}

		checkpoint := config.DefaultCheckpoint
		if cCtx.NArg() > 0 {
			checkpoint = cCtx.Args().First()
		}

		opts := export.Options{
			ImgSize:  exportImgSize,
			Half:     exportHalf,
			Int8:     exportInt8,
			Dynamic:  exportDynamic,
			Simplify: exportSimplify,
			Opset:    exportOpset,
			Batch:    exportBatch,
			Device:   exportDevice,
			Force:    exportForce,
		}

		return exportCheckpoint(cCtx, checkpoint, exportFormat, exportBackend, opts, exportJSON)
	},
}

// exportDefault is the bare `scanbill` invocation: the stock checkpoint to ONNX.
func exportDefault(cCtx *cli.Context) error {
	if cCtx.NArg() > 0 {
		return fmt.Errorf("unknown command %q", cCtx.Args().First())
	}
	return exportCheckpoint(cCtx, config.DefaultCheckpoint, config.DefaultFormat, "", export.Options{}, false)
}

func exportCheckpoint(cCtx *cli.Context, path, format, provider string, opts export.Options, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if provider == "" {
		provider = cfg.Export.Backend
	}

	ckpt, err := export.Load(path)
	if err != nil {
		return err
	}

	b, err := newBackend(backend.BackendProvider(provider), cfg.Export)
	if err != nil {
		return err
	}
	defer b.Close()

	exporter := export.NewExporter(b, export.WithValidator("onnx", onnxmeta.Validate))
	artifact, err := exporter.Export(cCtx.Context, ckpt, format, opts)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cCtx.App.Writer, artifact)
	}
	status := "exported"
	if artifact.Skipped {
		status = "up to date"
	}
	_, err = fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", artifact.Path, status)
	return err
}

func exportConfigured(cCtx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := model.NewManager(model.WithBackendFactory(newBackend))
	defer manager.Close()

	exportErr := manager.ExportModelsFromConfig(cCtx.Context, cfg)

	if exportJSON {
		if err := writeJSON(cCtx.App.Writer, manager.Snapshots()); err != nil {
			return err
		}
		return exportErr
	}
	for _, s := range manager.Snapshots() {
		line := fmt.Sprintf("%-20s %-10s", s.ID, s.Status)
		if s.Artifact != nil {
			line += " " + s.Artifact.Path
		}
		if s.Error != "" {
			line += " " + s.Error
		}
		fmt.Fprintln(cCtx.App.Writer, line)
	}
	return exportErr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
