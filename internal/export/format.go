package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format describes where the framework writes the artifact for a target format.
type Format struct {
	// Name is the framework's format identifier.
	Name string

	// Suffix is appended to the checkpoint stem to form the artifact name.
	Suffix string

	// Dir is true when the artifact is a directory rather than a file.
	Dir bool
}

var formats = map[string]Format{
	"onnx":        {Name: "onnx", Suffix: ".onnx"},
	"torchscript": {Name: "torchscript", Suffix: ".torchscript"},
	"openvino":    {Name: "openvino", Suffix: "_openvino_model", Dir: true},
	"engine":      {Name: "engine", Suffix: ".engine"},
	"coreml":      {Name: "coreml", Suffix: ".mlpackage", Dir: true},
	"saved_model": {Name: "saved_model", Suffix: "_saved_model", Dir: true},
	"pb":          {Name: "pb", Suffix: ".pb"},
	"tflite":      {Name: "tflite", Suffix: "_saved_model"},
	"edgetpu":     {Name: "edgetpu", Suffix: "_saved_model"},
	"tfjs":        {Name: "tfjs", Suffix: "_web_model", Dir: true},
	"paddle":      {Name: "paddle", Suffix: "_paddle_model", Dir: true},
	"ncnn":        {Name: "ncnn", Suffix: "_ncnn_model", Dir: true},
	"mnn":         {Name: "mnn", Suffix: ".mnn"},
}

// LookupFormat resolves a case-insensitive format identifier.
func LookupFormat(name string) (Format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, name, strings.Join(Formats(), ", "))
	}

	return f, nil
}

// Formats lists the supported format identifiers in name order.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ArtifactPath returns the conventional output location for a checkpoint:
// the checkpoint's directory, its stem, and the format suffix. TFLite
// variants live inside the intermediate saved_model directory.
func (f Format) ArtifactPath(checkpointPath string, opts Options) string {
	dir := filepath.Dir(checkpointPath)
	base := filepath.Base(checkpointPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	switch f.Name {
	case "tflite":
		precision := "float32"
		switch {
		case opts.Int8:
			precision = "int8"
		case opts.Half:
			precision = "float16"
		}
		return filepath.Join(dir, stem+f.Suffix, stem+"_"+precision+".tflite")
	case "edgetpu":
		return filepath.Join(dir, stem+f.Suffix, stem+"_full_integer_quant_edgetpu.tflite")
	default:
		return filepath.Join(dir, stem+f.Suffix)
	}
}
