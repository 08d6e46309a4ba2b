package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/export"
)

var (
	detectModel string
	detectJSON  bool
)

type imageDetections struct {
	Image      string             `json:"image"`
	Detections []detect.Detection `json:"detections"`
}

var detectCommand = &cli.Command{
	Name:      "detect",
	Usage:     "Run the exported model on images",
	ArgsUsage: "<image> [image...]",
	Description: `Detects objects in JPEG, PNG or WebP images with onnxruntime.
				The onnxruntime shared library is taken from SCANBILL_ORT_LIBRARY or detector.library_path.`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Path to the ONNX model. Defaults to the artifact of " + config.DefaultCheckpoint, Destination: &detectModel},
		&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON", Destination: &detectJSON},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() == 0 {
			return errors.New("detect expects at least one image")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		detector, err := openDetector(cfg.Detector, modelPath(detectModel))
		if err != nil {
			return err
		}
		defer detect.Shutdown()
		defer detector.Close()

		results := make([]imageDetections, 0, cCtx.NArg())
		for _, path := range cCtx.Args().Slice() {
			dets, err := detectFile(cCtx, detector, path)
			if err != nil {
				return err
			}
			results = append(results, imageDetections{Image: path, Detections: dets})
		}

		if detectJSON {
			return writeJSON(cCtx.App.Writer, results)
		}
		w := cCtx.App.Writer
		for _, r := range results {
			fmt.Fprintf(w, "%s: %d detections\n", r.Image, len(r.Detections))
			for _, d := range r.Detections {
				fmt.Fprintf(w, "  %-16s %.2f [%.3f %.3f %.3f %.3f]\n", d.Class, d.Confidence, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
			}
		}
		return nil
	},
}

// modelPath falls back to where the default export writes its artifact.
func modelPath(path string) string {
	if path != "" {
		return path
	}
	f, _ := export.LookupFormat(config.DefaultFormat)
	return f.ArtifactPath(config.DefaultCheckpoint, export.Options{})
}

func detectFile(cCtx *cli.Context, detector detectorCloser, path string) ([]detect.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := detect.DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return detector.Detect(cCtx.Context, img)
}
