// Package detect runs a YOLO object-detection model exported to ONNX and
// turns its raw output into labelled, normalized bounding boxes.
package detect

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// Defaults match the stock 640x640 YOLO export.
const (
	DefaultInputSize      = 640
	DefaultScoreThreshold = 0.5
	DefaultNMSThreshold   = 0.45
)

// Options configure a Detector.
type Options struct {
	ModelPath      string
	LibraryPath    string
	InputWidth     int
	InputHeight    int
	ScoreThreshold float32
	NMSThreshold   float32
	Layout         Layout
	ClassNames     []string
}

func (o *Options) applyDefaults() {
	if o.InputWidth <= 0 {
		o.InputWidth = DefaultInputSize
	}
	if o.InputHeight <= 0 {
		o.InputHeight = DefaultInputSize
	}
	if o.ScoreThreshold <= 0 {
		o.ScoreThreshold = DefaultScoreThreshold
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = DefaultNMSThreshold
	}
	if o.Layout == "" {
		o.Layout = LayoutV8
	}
}

// Detector wraps one ONNX Runtime session. Detect is safe for concurrent
// use; calls are serialized on the session.
type Detector struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	opts       Options
}

// New initializes the runtime if needed and opens a session on the model.
func New(opts Options) (*Detector, error) {
	opts.applyDefaults()

	if err := Initialize(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io info %s: %w", opts.ModelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model %s has %d inputs and %d outputs", ErrOutputShape, opts.ModelPath, len(inputs), len(outputs))
	}

	inputName, outputName := inputs[0].Name, outputs[0].Name
	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath, []string{inputName}, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", opts.ModelPath, err)
	}

	slog.Info("Detector ready",
		"model", opts.ModelPath,
		"input", inputName,
		"output", outputName,
		"layout", opts.Layout,
		"classes", len(opts.ClassNames))

	return &Detector{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		opts:       opts,
	}, nil
}

// Options returns the effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect runs the model on img.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := Preprocess(img, d.opts.InputWidth, d.opts.InputHeight)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, ErrClosed
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(d.opts.InputHeight), int64(d.opts.InputWidth)), blob)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	start := time.Now()

	// A nil output is allocated by the runtime with the model's real shape.
	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %s is not float32", ErrOutputShape, d.outputName)
	}

	dets, err := Decode(out.GetData(), out.GetShape(), DecodeOptions{
		Layout:         d.opts.Layout,
		InputWidth:     d.opts.InputWidth,
		InputHeight:    d.opts.InputHeight,
		ScoreThreshold: d.opts.ScoreThreshold,
		NMSThreshold:   d.opts.NMSThreshold,
		ClassNames:     d.opts.ClassNames,
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Detection finished", "objects", len(dets), "elapsed", time.Since(start))
	return dets, nil
}

// Close destroys the session. The runtime environment stays up; call
// Shutdown at process exit.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}
